package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/durolink/durolink/internal/directory"
	apperrors "github.com/durolink/durolink/pkg/errors"
	"github.com/durolink/durolink/pkg/response"
)

// Health reports process liveness, database reachability and whether
// the installation directory has completed its first sync.
func Health(db *gorm.DB, d *directory.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(requestContext(c))
		}
		if err != nil {
			response.Error(c, apperrors.ErrInternalServer.WithInternal(err))
			return
		}

		response.Success(c, http.StatusOK, gin.H{
			"status":          "ok",
			"directory_ready": d.Ready(),
		})
	}
}
