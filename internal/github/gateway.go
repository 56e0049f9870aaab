package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/durolink/durolink/pkg/errors"
	"github.com/durolink/durolink/pkg/logger"
	"github.com/durolink/durolink/pkg/metrics"
)

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com"

const defaultRequestTimeout = 30 * time.Second

// Soft item ceilings per call site. Traversal stops once more items
// than the cap have been yielded; it is not a strict bound.
const (
	userInstallationsCap = 10
	appInstallationsCap  = 100000
	repositoriesCap      = 300
	artifactsCap         = 100
)

// GatewayConfig customises the REST gateway, mainly for tests.
type GatewayConfig struct {
	BaseURL string
	Client  *http.Client
}

// Gateway provides authenticated, pagination-aware access to the GitHub
// REST API. Every call is attempted exactly once; any non-2xx response
// aborts the operation and surfaces as an upstream error.
type Gateway struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// NewGateway constructs a Gateway with sane defaults.
func NewGateway(cfg GatewayConfig) *Gateway {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}

	return &Gateway{
		baseURL: baseURL,
		client:  client,
		log:     logger.WithModule("github"),
	}
}

// listPages walks a paginated collection. The initial request carries
// the query parameters (including a per_page hint); follow-up requests
// use the response's rel="next" link verbatim, which already encodes
// the cursor. Items are yielded in server order across pages until no
// next link remains or more than limit items have been collected.
func listPages[P, T any](ctx context.Context, g *Gateway, op, path string, query url.Values, cred Credential, limit int, items func(P) []T) ([]T, error) {
	pageURL := g.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		pageURL += "?" + encoded
	}

	var collected []T
	for pageURL != "" {
		var page P
		next, err := g.getPage(ctx, op, pageURL, cred, &page)
		if err != nil {
			return nil, err
		}

		collected = append(collected, items(page)...)
		if limit > 0 && len(collected) > limit {
			break
		}
		pageURL = next
	}

	return collected, nil
}

// getPage performs one GET, decodes the body into out and returns the
// rel="next" URL if the response carries one.
func (g *Gateway) getPage(ctx context.Context, op, rawURL string, cred Credential, out any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("github: build request: %w", err)
	}

	body, header, err := g.do(req, op, cred, http.StatusOK)
	if err != nil {
		return "", err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return "", fmt.Errorf("github: decode %s response: %w", op, err)
	}

	return nextLink(header.Get("Link")), nil
}

// do executes the request once, injecting the credential, and returns
// the response body. Any status other than wantStatus is an upstream
// error; there is no retry.
func (g *Gateway) do(req *http.Request, op string, cred Credential, wantStatus int) ([]byte, http.Header, error) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", cred.AuthorizationHeader())

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(op, "error").Inc()
		return nil, nil, apperrors.ErrUpstream.WithInternal(err)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, nil, apperrors.ErrUpstream.WithInternal(fmt.Errorf("read %s response: %w", op, err))
	}

	if resp.StatusCode != wantStatus {
		g.log.Warn("unexpected upstream status",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("path", req.URL.Path),
		)
		return nil, nil, apperrors.ErrUpstream.WithInternal(
			fmt.Errorf("%s %s: status %d", op, req.URL.Path, resp.StatusCode))
	}

	return body, resp.Header, nil
}

// nextLink extracts the rel="next" target from an RFC 5988 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		if strings.TrimSpace(section[1]) != `rel="next"` {
			continue
		}
		target := strings.TrimSpace(section[0])
		return strings.Trim(target, "<>")
	}
	return ""
}

// ListAppInstallations returns every installation of the app identity.
// Used by the directory bootstrap; authenticated with the app JWT.
func (g *Gateway) ListAppInstallations(ctx context.Context, cred Credential) ([]Installation, error) {
	query := url.Values{"per_page": {"100"}}
	return listPages(ctx, g, "app_installations", "/app/installations", query, cred, appInstallationsCap,
		func(page []Installation) []Installation { return page })
}

// ListUserInstallations returns the installations visible to an end
// user's OAuth token.
func (g *Gateway) ListUserInstallations(ctx context.Context, cred Credential) ([]Installation, error) {
	query := url.Values{"per_page": {"10"}}
	return listPages(ctx, g, "user_installations", "/user/installations", query, cred, userInstallationsCap,
		func(page installationsPage) []Installation { return page.Installations })
}

// ListUserInstallationRepositories lists the repositories an OAuth user
// can reach through one installation.
func (g *Gateway) ListUserInstallationRepositories(ctx context.Context, cred Credential, installationID int64) ([]Repository, error) {
	path := fmt.Sprintf("/user/installations/%d/repositories", installationID)
	query := url.Values{"per_page": {"100"}}
	return listPages(ctx, g, "user_installation_repos", path, query, cred, repositoriesCap,
		func(page repositoriesPage) []Repository { return page.Repositories })
}

// ListInstallationRepositories lists the repositories reachable with an
// installation token.
func (g *Gateway) ListInstallationRepositories(ctx context.Context, cred Credential) ([]Repository, error) {
	query := url.Values{"per_page": {"100"}}
	return listPages(ctx, g, "installation_repos", "/installation/repositories", query, cred, repositoriesCap,
		func(page repositoriesPage) []Repository { return page.Repositories })
}

// ListWorkflowRuns lists successful push-triggered runs of a workflow
// on a branch, newest first. The limit is caller-chosen.
func (g *Gateway) ListWorkflowRuns(ctx context.Context, cred Credential, owner, repo, workflow, branch string, limit int) ([]WorkflowRun, error) {
	path := fmt.Sprintf("/repos/%s/%s/actions/workflows/%s/runs",
		url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(workflow))
	query := url.Values{
		"branch":   {branch},
		"event":    {"push"},
		"status":   {"success"},
		"per_page": {strconv.Itoa(clampPerPage(limit))},
	}
	return listPages(ctx, g, "workflow_runs", path, query, cred, limit,
		func(page workflowRunsPage) []WorkflowRun { return page.WorkflowRuns })
}

// ListRunArtifacts lists the artifacts uploaded by one workflow run.
func (g *Gateway) ListRunArtifacts(ctx context.Context, cred Credential, owner, repo string, runID int64) ([]Artifact, error) {
	path := fmt.Sprintf("/repos/%s/%s/actions/runs/%d/artifacts",
		url.PathEscape(owner), url.PathEscape(repo), runID)
	query := url.Values{"per_page": {"100"}}
	return listPages(ctx, g, "run_artifacts", path, query, cred, artifactsCap,
		func(page artifactsPage) []Artifact { return page.Artifacts })
}

// MintInstallationToken exchanges the app JWT for a tenant-scoped
// access token restricted to reading Actions data. A failed mint is
// fatal for the call path: nothing further is possible without a
// credential, so the error propagates without retry.
func (g *Gateway) MintInstallationToken(ctx context.Context, appJWT Credential, installationID int64) (InstallationToken, error) {
	payload := []byte(`{"permissions":{"actions":"read"}}`)
	endpoint := fmt.Sprintf("%s/app/installations/%d/access_tokens", g.baseURL, installationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("github: build mint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, _, err := g.do(req, "mint_token", appJWT, http.StatusCreated)
	if err != nil {
		return "", err
	}

	var token accessTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("github: decode access token: %w", err)
	}

	return InstallationToken(token.Token), nil
}

// CurrentAccount resolves the account behind an OAuth token.
func (g *Gateway) CurrentAccount(ctx context.Context, cred Credential) (Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/user", nil)
	if err != nil {
		return Account{}, fmt.Errorf("github: build user request: %w", err)
	}

	body, _, err := g.do(req, "current_user", cred, http.StatusOK)
	if err != nil {
		return Account{}, err
	}

	var account Account
	if err := json.Unmarshal(body, &account); err != nil {
		return Account{}, fmt.Errorf("github: decode user: %w", err)
	}

	return account, nil
}

// ArtifactZipLocation asks for an artifact archive and returns the
// signed download URL from the redirect's Location header. The link is
// valid for under a minute; the binary itself is never downloaded and
// the redirect is never followed.
func (g *Gateway) ArtifactZipLocation(ctx context.Context, cred Credential, owner, repo string, artifactID int64) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/actions/artifacts/%d/zip",
		g.baseURL, url.PathEscape(owner), url.PathEscape(repo), artifactID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("github: build zip request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", cred.AuthorizationHeader())

	client := *g.client
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("artifact_zip", "error").Inc()
		return "", apperrors.ErrUpstream.WithInternal(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	metrics.UpstreamRequests.WithLabelValues("artifact_zip", strconv.Itoa(resp.StatusCode)).Inc()

	location := resp.Header.Get("Location")
	if resp.StatusCode < 300 || resp.StatusCode >= 400 || location == "" {
		return "", apperrors.ErrUpstream.WithInternal(
			fmt.Errorf("artifact_zip %s: status %d without redirect", req.URL.Path, resp.StatusCode))
	}

	return location, nil
}

func clampPerPage(limit int) int {
	switch {
	case limit <= 0 || limit > 100:
		return 100
	default:
		return limit
	}
}
