package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/app"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/middleware"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/monitoring"
)

// NewRouter builds the operational Gin engine: health probes, maintenance job
// status and the Prometheus scrape endpoint. Credential operations are not
// exposed over HTTP.
func NewRouter(cfg *app.Config, health *monitoring.HealthManager) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger("/health", "/health/live", "/health/ready", metricsPath(cfg)))
	r.Use(middleware.Metrics())

	registerHealthRoutes(r, cfg, health)
	registerMonitoringRoutes(r)

	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(metricsPath(cfg), gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func metricsPath(cfg *app.Config) string {
	if cfg.Monitoring.Prometheus.Endpoint == "" {
		return "/metrics"
	}
	return cfg.Monitoring.Prometheus.Endpoint
}
