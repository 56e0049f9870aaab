package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/durolink/durolink/internal/directory"
	"github.com/durolink/durolink/internal/github"
	"github.com/durolink/durolink/internal/githubauth"
	apperrors "github.com/durolink/durolink/pkg/errors"
	"github.com/durolink/durolink/pkg/logger"
	"github.com/durolink/durolink/pkg/metrics"
)

// Link is one download or deep-link candidate. Ordering is a contract:
// earlier candidates are more specific and ephemeral, later ones more
// stable and navigable. Presentation may reverse the order, but
// resolution always produces it in this sequence.
type Link struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	External bool   `json:"external"`
}

// Resolution is the surface handed to the presentation layer.
type Resolution struct {
	Title string `json:"title"`
	Links []Link `json:"links"`
}

// Config carries resolver settings.
type Config struct {
	// PublicURL is this service's external base URL, used to compose
	// the stable links it hands out.
	PublicURL string
}

// Resolver chains workflow, run and artifact lookups into an ordered
// list of link candidates. Aside from credential caching and remote
// reads, every stage is side-effect-free.
type Resolver struct {
	directory *directory.Directory
	authority *githubauth.Authority
	gateway   *github.Gateway
	publicURL string
	log       *zap.Logger
}

// NewResolver wires the resolution pipeline.
func NewResolver(cfg Config, d *directory.Directory, authority *githubauth.Authority, gateway *github.Gateway) (*Resolver, error) {
	if d == nil {
		return nil, errors.New("resolver: directory is required")
	}
	if authority == nil {
		return nil, errors.New("resolver: authority is required")
	}
	if gateway == nil {
		return nil, errors.New("resolver: gateway is required")
	}

	return &Resolver{
		directory: d,
		authority: authority,
		gateway:   gateway,
		publicURL: strings.TrimSuffix(strings.TrimSpace(cfg.PublicURL), "/"),
		log:       logger.WithModule("resolver"),
	}, nil
}

// tenantToken resolves the owner's installation and returns a scoped token.
func (r *Resolver) tenantToken(ctx context.Context, owner string) (github.InstallationToken, error) {
	installationID, err := r.directory.Read(ctx, owner)
	if err != nil {
		return "", err
	}
	return r.authority.InstallationToken(ctx, installationID, false)
}

// ByArtifact resolves a single artifact to its ephemeral download URL
// plus stable alternatives. The suite deep link is only emitted when a
// check suite id is known.
func (r *Resolver) ByArtifact(ctx context.Context, owner, repo string, artifactID, checkSuiteID int64) (*Resolution, error) {
	token, err := r.tenantToken(ctx, owner)
	if err != nil {
		metrics.Resolutions.WithLabelValues("artifact", "error").Inc()
		return nil, err
	}

	zipURL, err := r.gateway.ArtifactZipLocation(ctx, token, owner, repo, artifactID)
	if err != nil {
		metrics.Resolutions.WithLabelValues("artifact", "error").Inc()
		return nil, err
	}

	links := []Link{
		{URL: zipURL, Title: "Direct download (expires in under a minute)", External: true},
		{URL: fmt.Sprintf("%s/%s/%s/actions/artifacts/%d.zip", r.publicURL, owner, repo, artifactID)},
	}
	if checkSuiteID > 0 {
		links = append(links, Link{
			URL:      fmt.Sprintf("https://github.com/%s/%s/suites/%d/artifacts/%d", owner, repo, checkSuiteID, artifactID),
			Title:    "View on GitHub",
			External: true,
		})
	}

	metrics.Resolutions.WithLabelValues("artifact", "success").Inc()
	return &Resolution{
		Title: fmt.Sprintf("Artifact %d", artifactID),
		Links: links,
	}, nil
}

// ByRun locates an artifact by name within a run. Artifact names are
// not guaranteed unique upstream; the first match in server order wins.
func (r *Resolver) ByRun(ctx context.Context, owner, repo string, runID int64, artifactName string, checkSuiteID int64) (*Resolution, error) {
	token, err := r.tenantToken(ctx, owner)
	if err != nil {
		metrics.Resolutions.WithLabelValues("run", "error").Inc()
		return nil, err
	}

	artifacts, err := r.gateway.ListRunArtifacts(ctx, token, owner, repo, runID)
	if err != nil {
		metrics.Resolutions.WithLabelValues("run", "error").Inc()
		return nil, err
	}

	var match *github.Artifact
	for i := range artifacts {
		if artifacts[i].Name == artifactName {
			match = &artifacts[i]
			break
		}
	}
	if match == nil {
		metrics.Resolutions.WithLabelValues("run", "not_found").Inc()
		return nil, apperrors.ErrNotFound.WithMessage("no artifacts for run")
	}

	resolution, err := r.ByArtifact(ctx, owner, repo, match.ID, checkSuiteID)
	if err != nil {
		return nil, err
	}

	resolution.Title = fmt.Sprintf("Artifact %s of run %d", artifactName, runID)
	resolution.Links = append(resolution.Links,
		Link{URL: fmt.Sprintf("%s/%s/%s/actions/runs/%d/%s", r.publicURL, owner, repo, runID, url.PathEscape(artifactName))},
		Link{
			URL:      fmt.Sprintf("https://github.com/%s/%s/actions/runs/%d", owner, repo, runID),
			Title:    "View run on GitHub",
			External: true,
		},
	)

	return resolution, nil
}

// ByBranch resolves the newest successful push-triggered run of a
// workflow on a branch and delegates to ByRun with the run's check
// suite id.
func (r *Resolver) ByBranch(ctx context.Context, owner, repo, workflow, branch, artifactName string) (*Resolution, error) {
	workflow = normalizeWorkflow(workflow)

	token, err := r.tenantToken(ctx, owner)
	if err != nil {
		metrics.Resolutions.WithLabelValues("branch", "error").Inc()
		return nil, err
	}

	runs, err := r.gateway.ListWorkflowRuns(ctx, token, owner, repo, workflow, branch, 1)
	if err != nil {
		metrics.Resolutions.WithLabelValues("branch", "error").Inc()
		return nil, err
	}
	if len(runs) == 0 {
		metrics.Resolutions.WithLabelValues("branch", "not_found").Inc()
		return nil, apperrors.ErrNotFound.WithMessage("no artifacts for workflow and branch")
	}

	run := runs[0]
	resolution, err := r.ByRun(ctx, owner, repo, run.ID, artifactName, checkSuiteID(run.CheckSuiteURL))
	if err != nil {
		return nil, err
	}

	browseQuery := url.Values{"query": {
		fmt.Sprintf("event:push is:success workflow:%s branch:%s", workflow, branch),
	}}
	resolution.Title = fmt.Sprintf("Artifact %s of %s on %s", artifactName, workflow, branch)
	resolution.Links = append(resolution.Links,
		Link{URL: fmt.Sprintf("%s/%s/%s/workflows/%s/%s/%s", r.publicURL, owner, repo,
			url.PathEscape(workflow), url.PathEscape(branch), url.PathEscape(artifactName))},
		Link{
			URL:      fmt.Sprintf("https://github.com/%s/%s/actions?%s", owner, repo, browseQuery.Encode()),
			Title:    "Browse runs on GitHub",
			External: true,
		},
	)

	return resolution, nil
}

// normalizeWorkflow appends ".yml" unless the reference is purely
// numeric (a workflow id) or already carries the suffix.
func normalizeWorkflow(workflow string) string {
	if workflow == "" {
		return workflow
	}
	if _, err := strconv.ParseInt(workflow, 10, 64); err == nil {
		return workflow
	}
	if strings.HasSuffix(workflow, ".yml") {
		return workflow
	}
	return workflow + ".yml"
}

// checkSuiteID extracts the numeric id from the trailing path segment
// of a run's check suite URL. An unparseable URL yields zero, which
// suppresses the suite deep link.
func checkSuiteID(checkSuiteURL string) int64 {
	trimmed := strings.TrimSuffix(checkSuiteURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return 0
	}
	id, err := strconv.ParseInt(trimmed[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return id
}
