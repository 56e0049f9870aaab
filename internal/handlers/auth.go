package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/durolink/durolink/internal/directory"
	"github.com/durolink/durolink/internal/github"
	"github.com/durolink/durolink/internal/githubauth"
	apperrors "github.com/durolink/durolink/pkg/errors"
	"github.com/durolink/durolink/pkg/logger"
	"github.com/durolink/durolink/pkg/response"
)

const (
	stateCookie    = "oauth_state"
	stateCookieTTL = 600
)

// AuthHandler drives the browser OAuth flow. Its purpose is directory
// freshness, not sessions: a successful callback discovers the caller's
// installations and records them immediately, so a tenant who has just
// installed the app resolves without waiting for the next full sync.
type AuthHandler struct {
	exchanger *githubauth.OAuthExchanger
	gateway   *github.Gateway
	authority *githubauth.Authority
	directory *directory.Directory
	log       *zap.Logger
}

func NewAuthHandler(exchanger *githubauth.OAuthExchanger, gateway *github.Gateway, authority *githubauth.Authority, d *directory.Directory) *AuthHandler {
	return &AuthHandler{
		exchanger: exchanger,
		gateway:   gateway,
		authority: authority,
		directory: d,
		log:       logger.WithModule("auth"),
	}
}

// GET /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, stateCookieTTL, "/", "", false, true)
	c.Redirect(http.StatusFound, h.exchanger.AuthCodeURL(state))
}

type installationInfo struct {
	Account      github.Account `json:"account"`
	Repositories []string       `json:"repositories"`
}

// GET /auth/callback
func (h *AuthHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	expected, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != expected {
		response.Error(c, apperrors.NewBadRequest("state mismatch"))
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", false, true)

	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		response.Error(c, apperrors.NewBadRequest("code is required"))
		return
	}

	ctx := requestContext(c)
	token, err := h.exchanger.Exchange(ctx, code)
	if err != nil {
		// Expired or reused codes restart the flow instead of erroring.
		if errors.Is(err, apperrors.ErrAuthExchangeRejected) {
			h.log.Info("code exchange rejected, restarting login")
			c.Redirect(http.StatusFound, "/auth/login")
			return
		}
		response.Error(c, err)
		return
	}

	account, err := h.gateway.CurrentAccount(ctx, token)
	if err != nil {
		response.Error(c, err)
		return
	}

	installations, err := h.gateway.ListUserInstallations(ctx, token)
	if err != nil {
		response.Error(c, err)
		return
	}

	infos := make([]installationInfo, 0, len(installations))
	for _, inst := range installations {
		if err := h.directory.Write(ctx, inst.Account.Login, inst.ID); err != nil {
			response.Error(c, err)
			return
		}

		names, err := h.installationRepositories(ctx, token, inst.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		infos = append(infos, installationInfo{Account: inst.Account, Repositories: names})
	}

	h.log.Info("callback recorded installations",
		zap.String("login", account.Login), zap.Int("count", len(infos)))
	response.Success(c, http.StatusOK, gin.H{
		"account":       account,
		"installations": infos,
	})
}

// installationRepositories lists what the app can reach in one
// installation. The caller has just come through the grant screen, so
// any cached installation token may reflect a repository selection that
// no longer holds; the token is force-refreshed before the listing. A
// suspended installation cannot mint at all, in which case the
// user-scoped listing stands in.
func (h *AuthHandler) installationRepositories(ctx context.Context, userToken github.OAuthToken, installationID int64) ([]string, error) {
	instToken, err := h.authority.InstallationToken(ctx, installationID, true)
	if err == nil {
		repos, err := h.gateway.ListInstallationRepositories(ctx, instToken)
		if err != nil {
			return nil, err
		}
		return repoNames(repos), nil
	}

	h.log.Warn("installation token mint failed, listing with user token",
		zap.Int64("installation_id", installationID), zap.Error(err))
	repos, err := h.gateway.ListUserInstallationRepositories(ctx, userToken, installationID)
	if err != nil {
		return nil, err
	}
	return repoNames(repos), nil
}

func repoNames(repos []github.Repository) []string {
	names := make([]string, 0, len(repos))
	for _, repo := range repos {
		names = append(names, repo.FullName)
	}
	return names
}
