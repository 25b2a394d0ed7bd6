package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/api"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/app"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/app/maintenance"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/monitoring"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/monitoring/checks"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/logger"
)

const defaultShutdownTimeout = 15 * time.Second

func newServeCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the maintenance scheduler and the health and metrics listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), state, func(ctx context.Context, rt *runtimeStack) error {
				return serve(ctx, state.cfg, rt)
			})
		},
	}
}

func serve(ctx context.Context, cfg *app.Config, rt *runtimeStack) error {
	log := logger.WithModule("bootstrap")

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	health := newHealthManager(cfg, rt)

	if cfg.Maintenance.Enabled {
		cleaner := maintenance.NewCleaner(rt.Store, rt.Audit,
			maintenance.WithExpirySchedule(cfg.Maintenance.ExpirySchedule),
			maintenance.WithAuditSchedule(cfg.Maintenance.AuditSchedule),
			maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
		)
		if err := cleaner.Start(); err != nil {
			return fmt.Errorf("start maintenance jobs: %w", err)
		}
		defer func() {
			stopCtx := cleaner.Stop()
			<-stopCtx.Done()
		}()
	}

	router, err := api.NewRouter(cfg, health)
	if err != nil {
		return fmt.Errorf("build ops router: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Server.OpsAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("ops listener started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("ops listener: %w", err)
		}
		return nil
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("ops listener: %w", err)
	}

	log.Info("stopped gracefully")
	return nil
}

func newHealthManager(cfg *app.Config, rt *runtimeStack) *monitoring.HealthManager {
	health := monitoring.NewHealthManager()
	health.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	health.RegisterReadiness(checks.Database(rt.DB, 2*time.Second))
	health.RegisterReadiness(checks.Schema(rt.DB))
	if cfg.Maintenance.Enabled {
		health.RegisterReadiness(checks.Maintenance(0))
	}
	return health
}
