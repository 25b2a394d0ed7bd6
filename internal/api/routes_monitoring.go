package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/monitoring"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/response"
)

func registerMonitoringRoutes(r *gin.Engine) {
	r.GET("/monitoring/jobs", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"jobs": monitoring.Jobs()})
	})
}
