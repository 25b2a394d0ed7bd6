package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/credential"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/logger"
)

func newBatchCmd(state *cliState) *cobra.Command {
	var (
		eventID string
		all     bool
		retries int
	)

	cmd := &cobra.Command{
		Use:   "batch [subject-id...]",
		Short: "Issue credentials for many subjects concurrently",
		Long: `batch issues one credential per subject. A failure for one subject never
affects the others; failed subjects can be retried with --retries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), state, func(ctx context.Context, rt *runtimeStack) error {
				subjects, err := rt.subjectsFromArgs(args, all)
				if err != nil {
					return err
				}

				outcomes := runBatch(ctx, rt.Batcher, subjects, eventID, retries)

				t := table.NewWriter()
				t.SetOutputMirror(cmd.OutOrStdout())
				t.AppendHeader(table.Row{"Subject", "Credential", "Issued", "Error"})
				for _, o := range outcomes {
					if o.OK() {
						t.AppendRow(table.Row{o.SubjectID, o.Credential.CredentialID, o.Credential.IssuedAt.Format(time.RFC3339), ""})
						continue
					}
					t.AppendRow(table.Row{o.SubjectID, "", "", errorText(o.Err)})
				}
				failed := credential.FailedSubjects(outcomes)
				t.AppendFooter(table.Row{"Total", len(outcomes), "Failed", len(failed)})
				t.SetStyle(table.StyleLight)
				t.Render()

				if len(failed) > 0 {
					return fmt.Errorf("%d of %d subjects failed", len(failed), len(outcomes))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&eventID, "event", "e", "", "Event the credentials are scoped to")
	cmd.Flags().BoolVar(&all, "all", false, "Issue for every subject in the configured directory")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retry failed subjects this many times")
	return cmd
}

// runBatch issues for subjects and re-runs failed subjects up to retries
// times, merging the retried outcomes back into their original positions.
func runBatch(ctx context.Context, b *credential.Batcher, subjects []string, eventID string, retries int) []credential.BatchOutcome {
	outcomes := b.IssueBatch(ctx, subjects, eventID)

	for attempt := 1; attempt <= retries; attempt++ {
		failed := credential.FailedSubjects(outcomes)
		if len(failed) == 0 || ctx.Err() != nil {
			break
		}
		logger.WithModule("batch").Info("retrying failed subjects",
			zap.Int("attempt", attempt),
			zap.Int("subjects", len(failed)),
		)

		retried := b.IssueBatch(ctx, failed, eventID)
		next := 0
		for i := range outcomes {
			if outcomes[i].OK() {
				continue
			}
			outcomes[i] = retried[next]
			next++
		}
	}

	return outcomes
}

func errorText(err error) string {
	if err == nil {
		return "unknown failure"
	}
	return truncate(err.Error(), 60)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
