package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/app"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/auditctx"
)

// cliState is shared by every subcommand of one invocation.
type cliState struct {
	configPath string
	actor      auditctx.Actor
	cfg        *app.Config
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:   "checkin",
		Short: "Issue, render and validate single-use check-in credentials",
		Long: `checkin manages signed QR credentials for event check-in.
Each subject holds at most one active credential; issuing again supersedes
the previous one and a credential is accepted exactly once at the gate.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadApplicationConfig(state.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := app.ConfigureLogging(cfg.Server.LogLevel, cfg.Server.LogFormat); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}
			state.cfg = cfg
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&state.configPath, "config", "", "Path to configuration directory or file")
	root.PersistentFlags().StringVar(&state.actor.Operator, "operator", "", "Operator recorded in the audit log")
	root.PersistentFlags().StringVar(&state.actor.Station, "station", "", "Gate or station recorded in the audit log")

	root.AddCommand(
		newIssueCmd(state),
		newBatchCmd(state),
		newValidateCmd(state),
		newQRCmd(state),
		newCardCmd(state),
		newSheetCmd(state),
		newArchiveCmd(state),
		newHistoryCmd(state),
		newServeCmd(state),
	)

	return root
}

func loadApplicationConfig(path string) (*app.Config, error) {
	if strings.TrimSpace(path) == "" {
		return app.LoadConfig()
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return app.LoadConfig(path)
	case err == nil:
		return app.LoadConfig(filepath.Dir(path))
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config path %q does not exist", path)
	default:
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
