package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/durolink/durolink/pkg/errors"
)

func TestSuccessEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	Success(c, http.StatusOK, map[string]string{"title": "Artifact 42"})

	require.Equal(t, http.StatusOK, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Nil(t, body.Error)
}

func TestErrorEnvelopeUsesAppErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"app error", appErrors.ErrMissingTenant, http.StatusNotFound, "INSTALLATION_NOT_FOUND"},
		{"upstream", appErrors.ErrUpstream, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"generic", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{"nil", nil, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			Error(c, tc.err)

			require.Equal(t, tc.status, rec.Code)

			var body Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.False(t, body.Success)
			require.Equal(t, tc.code, body.Error.Code)
		})
	}
}
