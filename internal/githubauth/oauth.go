package githubauth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/durolink/durolink/internal/github"
	apperrors "github.com/durolink/durolink/pkg/errors"
)

// OAuthConfig carries the app's OAuth client settings. Endpoint is
// overridable so tests can point the exchange at a fake server.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
}

// OAuthExchanger turns browser authorization codes into opaque user
// tokens. The browser redirect mechanics live in the handlers; only the
// code-for-token exchange happens here.
type OAuthExchanger struct {
	cfg *oauth2.Config
}

// NewOAuthExchanger builds an exchanger against the GitHub endpoint.
func NewOAuthExchanger(cfg OAuthConfig) *OAuthExchanger {
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = githuboauth.Endpoint
	}

	return &OAuthExchanger{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
		},
	}
}

// AuthCodeURL returns the GitHub authorize URL for the given state.
func (e *OAuthExchanger) AuthCodeURL(state string) string {
	return e.cfg.AuthCodeURL(state)
}

// Exchange swaps an authorization code for a user token. GitHub answers
// an expired or reused code with bad_verification_code, which maps to
// ErrAuthExchangeRejected so the handler can restart the login flow;
// every other failure propagates as-is.
func (e *OAuthExchanger) Exchange(ctx context.Context, code string) (github.OAuthToken, error) {
	token, err := e.cfg.Exchange(ctx, code)
	if err != nil {
		if isBadVerificationCode(err) {
			return "", apperrors.ErrAuthExchangeRejected.WithInternal(err)
		}
		return "", err
	}

	return github.OAuthToken(token.AccessToken), nil
}

func isBadVerificationCode(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "bad_verification_code" {
		return true
	}
	return strings.Contains(err.Error(), "bad_verification_code")
}
