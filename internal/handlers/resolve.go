package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/durolink/durolink/internal/resolver"
	apperrors "github.com/durolink/durolink/pkg/errors"
	"github.com/durolink/durolink/pkg/response"
)

// ResolveHandler exposes the three resolution entry points. Each route
// has a plain form returning the ordered link candidates as JSON and a
// ".zip" form that redirects straight to the signed archive URL. A
// format=json query turns the suffix handling off entirely.
type ResolveHandler struct {
	resolver *resolver.Resolver
}

func NewResolveHandler(r *resolver.Resolver) *ResolveHandler {
	return &ResolveHandler{resolver: r}
}

// GET /:owner/:repo/workflows/:workflow/:branch/:artifact
func (h *ResolveHandler) ByBranch(c *gin.Context) {
	ref, ok := bindRepoRef(c)
	if !ok {
		return
	}
	workflow := c.Param("workflow")
	branch := c.Param("branch")
	artifact, download := artifactParam(c)

	res, err := h.resolver.ByBranch(requestContext(c), ref.Owner, ref.Repo, workflow, branch, artifact)
	if err != nil {
		response.Error(c, err)
		return
	}

	respond(c, res, download)
}

// GET /:owner/:repo/actions/runs/:run/:artifact
func (h *ResolveHandler) ByRun(c *gin.Context) {
	ref, ok := bindRepoRef(c)
	if !ok {
		return
	}
	runID, ok := pathID(c, "run")
	if !ok {
		return
	}
	artifact, download := artifactParam(c)

	res, err := h.resolver.ByRun(requestContext(c), ref.Owner, ref.Repo, runID, artifact, suiteIDQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	respond(c, res, download)
}

// GET /:owner/:repo/actions/artifacts/:artifact
func (h *ResolveHandler) ByArtifact(c *gin.Context) {
	ref, ok := bindRepoRef(c)
	if !ok {
		return
	}
	raw, download := artifactParam(c)
	artifactID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || artifactID <= 0 {
		response.Error(c, apperrors.NewBadRequest("artifact must be a positive integer"))
		return
	}

	res, err := h.resolver.ByArtifact(requestContext(c), ref.Owner, ref.Repo, artifactID, suiteIDQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	respond(c, res, download)
}

// suiteIDQuery reads the optional check suite hint. Zero suppresses the
// suite deep link.
func suiteIDQuery(c *gin.Context) int64 {
	id, err := strconv.ParseInt(c.Query("check_suite_id"), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func respond(c *gin.Context, res *resolver.Resolution, download bool) {
	if download && len(res.Links) > 0 {
		c.Redirect(http.StatusFound, res.Links[0].URL)
		return
	}
	response.Success(c, http.StatusOK, res)
}
