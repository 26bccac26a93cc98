package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/regprofile/internal/monitoring"
	appErrors "github.com/charlesng35/regprofile/pkg/errors"
	"github.com/charlesng35/regprofile/pkg/response"
)

var errDatabaseUnavailable = appErrors.New("SERVICE_UNAVAILABLE", "Database is unavailable", http.StatusServiceUnavailable)

// Health reports readiness, including a database ping when a handle is provided.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err != nil {
				response.Error(c, errDatabaseUnavailable.WithInternal(err))
				return
			}
			ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
			defer cancel()
			if err := sqlDB.PingContext(ctx); err != nil {
				response.Error(c, errDatabaseUnavailable.WithInternal(err))
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}

// Readiness evaluates dependency probes and reports 503 when any is down.
func Readiness(probes *monitoring.Readiness) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(requestContext(c), 5*time.Second)
		defer cancel()

		report := probes.Evaluate(ctx)
		status := http.StatusOK
		if !report.Ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}
