package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/durolink/durolink/pkg/errors"
	"github.com/durolink/durolink/pkg/response"
	"github.com/durolink/durolink/pkg/validator"
)

// repoRef holds the owner and repository path segments shared by every
// resolution route. Owner names cannot carry dots, repository names can.
type repoRef struct {
	Owner string `json:"owner" validate:"required,max=39,excludesall=/."`
	Repo  string `json:"repo" validate:"required,max=100,excludesall=/"`
}

// bindRepoRef validates the repository path segments, writing a 400 on failure.
func bindRepoRef(c *gin.Context) (repoRef, bool) {
	ref := repoRef{Owner: c.Param("owner"), Repo: c.Param("repo")}
	if err := validator.ValidateStruct(ref); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return ref, false
	}
	return ref, true
}

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// pathID parses a numeric path parameter, writing a 400 on failure.
func pathID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, apperrors.NewBadRequest(name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}

// artifactParam reads the artifact path segment and reports whether the
// caller asked for an immediate redirect to the signed archive. A
// trailing ".zip" normally selects the download form; format=json keeps
// the suffix as a literal part of the artifact name, which is the only
// way to get the link listing for an artifact actually named "*.zip".
func artifactParam(c *gin.Context) (string, bool) {
	raw := c.Param("artifact")
	if c.Query("format") == "json" {
		return raw, false
	}
	return splitZipSuffix(raw)
}

func splitZipSuffix(raw string) (string, bool) {
	if trimmed, ok := strings.CutSuffix(raw, ".zip"); ok && trimmed != "" {
		return trimmed, true
	}
	return raw, false
}
