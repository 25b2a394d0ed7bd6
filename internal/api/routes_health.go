package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/app"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, manager *monitoring.HealthManager) {
	if !cfg.Monitoring.Health.Enabled || manager == nil {
		r.GET("/health", disabledHealthHandler)
		r.GET("/health/live", disabledHealthHandler)
		r.GET("/health/ready", disabledHealthHandler)
		return
	}

	r.GET("/health", func(c *gin.Context) {
		report := manager.EvaluateReadiness(c.Request.Context())
		c.JSON(reportStatus(report), gin.H{
			"success":    report.Success,
			"status":     report.Status,
			"checked_at": time.Now().UTC(),
		})
	})

	r.GET("/health/live", func(c *gin.Context) {
		writeHealthReport(c, manager.EvaluateLiveness(c.Request.Context()))
	})

	r.GET("/health/ready", func(c *gin.Context) {
		writeHealthReport(c, manager.EvaluateReadiness(c.Request.Context()))
	})
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}

// Degraded dependencies still serve traffic; only down fails the probe.
func reportStatus(report monitoring.HealthReport) int {
	if report.Status == monitoring.StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport) {
	c.JSON(reportStatus(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": time.Now().UTC(),
	})
}
