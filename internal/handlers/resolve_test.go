package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type resolvePayload struct {
	Success bool `json:"success"`
	Data    struct {
		Title string `json:"title"`
		Links []struct {
			URL      string `json:"url"`
			External bool   `json:"external"`
		} `json:"links"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doResolve(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, resolvePayload) {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var payload resolvePayload
	if rec.Header().Get("Content-Type") != "" && rec.Code != http.StatusFound {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestByBranchReturnsOrderedLinks(t *testing.T) {
	router, _ := newResolveRouter(t, true)

	rec, payload := doResolve(t, router, "/octocat/hello-world/workflows/build/main/binaries")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, payload.Success)
	require.Len(t, payload.Data.Links, 7)
	require.Equal(t, testZipURL, payload.Data.Links[0].URL)
	require.Contains(t, payload.Data.Links[6].URL, "github.com/octocat/hello-world/actions?query=")
}

func TestByBranchZipRedirects(t *testing.T) {
	router, _ := newResolveRouter(t, true)

	rec, _ := doResolve(t, router, "/octocat/hello-world/workflows/build/main/binaries.zip")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, testZipURL, rec.Header().Get("Location"))
}

func TestByRunUnknownArtifact(t *testing.T) {
	router, _ := newResolveRouter(t, true)

	rec, payload := doResolve(t, router, "/octocat/hello-world/actions/runs/4242/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", payload.Error.Code)
	require.Equal(t, "no artifacts for run", payload.Error.Message)
}

func TestByRunNamedZipArtifactNeedsFormatJSON(t *testing.T) {
	router, _ := newResolveRouter(t, true)

	// Plain form: the suffix selects the download form, so the name
	// searched is "out" and nothing matches.
	rec, payload := doResolve(t, router, "/octocat/hello-world/actions/runs/4242/out.zip")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "no artifacts for run", payload.Error.Message)

	// format=json keeps the suffix as part of the artifact name.
	rec, payload = doResolve(t, router, "/octocat/hello-world/actions/runs/4242/out.zip?format=json")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, payload.Success)
	require.Equal(t, testZipURL, payload.Data.Links[0].URL)
}

func TestByRunRejectsNonNumericRunID(t *testing.T) {
	router, _ := newResolveRouter(t, true)

	rec, payload := doResolve(t, router, "/octocat/hello-world/actions/runs/latest/binaries")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BAD_REQUEST", payload.Error.Code)
}

func TestInvalidOwnerRejected(t *testing.T) {
	router, _ := newResolveRouter(t, true)

	rec, payload := doResolve(t, router, "/bad.owner/hello-world/actions/artifacts/777")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BAD_REQUEST", payload.Error.Code)
}

func TestByArtifactZipRedirects(t *testing.T) {
	router, _ := newResolveRouter(t, true)

	rec, _ := doResolve(t, router, "/octocat/hello-world/actions/artifacts/777.zip")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, testZipURL, rec.Header().Get("Location"))
}

func TestUnknownOwnerMapsTo404(t *testing.T) {
	router, _ := newResolveRouter(t, true)

	rec, payload := doResolve(t, router, "/stranger/hello-world/actions/artifacts/777")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "INSTALLATION_NOT_FOUND", payload.Error.Code)
}

func TestDirectoryWarmupMapsTo503(t *testing.T) {
	router, _ := newResolveRouter(t, false)

	rec, payload := doResolve(t, router, "/octocat/hello-world/actions/artifacts/777")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "DIRECTORY_NOT_READY", payload.Error.Code)
}

func TestHealthReportsDirectoryState(t *testing.T) {
	router, _ := newResolveRouter(t, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"directory_ready":false`)
}
