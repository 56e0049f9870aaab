package handlers

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/durolink/durolink/internal/cache"
	"github.com/durolink/durolink/internal/database/testutil"
	"github.com/durolink/durolink/internal/directory"
	"github.com/durolink/durolink/internal/github"
	"github.com/durolink/durolink/internal/githubauth"
	"github.com/durolink/durolink/internal/resolver"
)

const (
	testZipURL = "https://artifacts.example/signed/777.zip?sig=abc"
	testPublic = "https://durolink.test"
)

// testStack wires the resolution pipeline against a fake upstream. The
// token store is exposed so tests can seed stale credentials.
type testStack struct {
	db        *gorm.DB
	gateway   *github.Gateway
	authority *githubauth.Authority
	tokens    cache.Store
	directory *directory.Directory
	resolver  *resolver.Resolver
}

func writeTestKey(t *testing.T) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "app.pem")
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	return path
}

// newUpstream fakes the GitHub endpoints the handlers reach, for both
// the app-credential resolution path and the user OAuth path.
func newUpstream(t *testing.T) *github.Gateway {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.GET("/app/installations", func(c *gin.Context) {
		c.String(http.StatusOK, `[{"id":101,"account":{"login":"octocat","type":"User"}}]`)
	})
	router.POST("/app/installations/:id/access_tokens", func(c *gin.Context) {
		if c.Param("id") == "909" {
			c.String(http.StatusNotFound, `{"message":"installation suspended"}`)
			return
		}
		c.String(http.StatusCreated, `{"token":"ghs_`+c.Param("id")+`"}`)
	})
	router.GET("/repos/:owner/:repo/actions/workflows/:workflow/runs", func(c *gin.Context) {
		if c.Param("workflow") != "build.yml" {
			c.String(http.StatusOK, `{"workflow_runs":[]}`)
			return
		}
		c.String(http.StatusOK,
			`{"workflow_runs":[{"id":4242,"head_branch":"main","event":"push","status":"completed","conclusion":"success","check_suite_url":"https://api.github.com/repos/octocat/hello-world/check-suites/9913"}]}`)
	})
	router.GET("/repos/:owner/:repo/actions/runs/:run/artifacts", func(c *gin.Context) {
		c.String(http.StatusOK, `{"artifacts":[{"id":777,"name":"binaries","size_in_bytes":2048},{"id":778,"name":"out.zip","size_in_bytes":64}]}`)
	})
	router.GET("/repos/:owner/:repo/actions/artifacts/:artifact/zip", func(c *gin.Context) {
		c.Redirect(http.StatusFound, testZipURL)
	})
	router.GET("/user", func(c *gin.Context) {
		require.Equal(t, "token gho_user", c.GetHeader("Authorization"))
		c.String(http.StatusOK, `{"login":"newbie","type":"User"}`)
	})
	router.GET("/user/installations", func(c *gin.Context) {
		require.Equal(t, "token gho_user", c.GetHeader("Authorization"))
		c.String(http.StatusOK, `{"total_count":2,"installations":[{"id":303,"account":{"login":"newbie","type":"User"}},{"id":909,"account":{"login":"ghost","type":"User"}}]}`)
	})
	// Reached with the installation 303 token only; minting for 909 fails.
	router.GET("/installation/repositories", func(c *gin.Context) {
		require.Equal(t, "token ghs_303", c.GetHeader("Authorization"))
		c.String(http.StatusOK, `{"total_count":2,"repositories":[{"id":1,"name":"tool","full_name":"newbie/tool","owner":{"login":"newbie"}},{"id":2,"name":"site","full_name":"newbie/site","owner":{"login":"newbie"}}]}`)
	})
	// The user-scoped fallback for the installation that cannot mint.
	router.GET("/user/installations/:id/repositories", func(c *gin.Context) {
		require.Equal(t, "token gho_user", c.GetHeader("Authorization"))
		require.Equal(t, "909", c.Param("id"))
		c.String(http.StatusOK, `{"total_count":1,"repositories":[{"id":3,"name":"haunt","full_name":"ghost/haunt","owner":{"login":"ghost"}}]}`)
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return github.NewGateway(github.GatewayConfig{BaseURL: srv.URL})
}

func newTestStack(t *testing.T, synced bool) *testStack {
	t.Helper()

	gateway := newUpstream(t)

	tokens := cache.NewMemoryStore()
	authority, err := githubauth.NewAuthority(
		githubauth.AppConfig{AppID: 1234, PrivateKeyPath: writeTestKey(t)},
		tokens, gateway)
	require.NoError(t, err)

	db := testutil.MustOpenTestDB(t)
	dir, err := directory.NewDirectory(db, cache.NewMemoryStore())
	require.NoError(t, err)

	if synced {
		syncer, err := directory.NewSyncer(dir, authority, gateway)
		require.NoError(t, err)
		require.NoError(t, syncer.Run(context.Background()))
	}

	res, err := resolver.NewResolver(resolver.Config{PublicURL: testPublic}, dir, authority, gateway)
	require.NoError(t, err)

	return &testStack{db: db, gateway: gateway, authority: authority, tokens: tokens, directory: dir, resolver: res}
}

func newResolveRouter(t *testing.T, synced bool) (*gin.Engine, *testStack) {
	t.Helper()

	stack := newTestStack(t, synced)
	handler := NewResolveHandler(stack.resolver)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/:owner/:repo/workflows/:workflow/:branch/:artifact", handler.ByBranch)
	router.GET("/:owner/:repo/actions/runs/:run/:artifact", handler.ByRun)
	router.GET("/:owner/:repo/actions/artifacts/:artifact", handler.ByArtifact)
	router.GET("/health", Health(stack.db, stack.directory))

	return router, stack
}
