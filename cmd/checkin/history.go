package main

import (
	"context"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newHistoryCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <subject-id>",
		Short: "List every credential issued to a subject, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), state, func(ctx context.Context, rt *runtimeStack) error {
				creds, err := rt.Store.ListBySubject(ctx, args[0])
				if err != nil {
					return err
				}

				t := table.NewWriter()
				t.SetOutputMirror(cmd.OutOrStdout())
				t.AppendHeader(table.Row{"Credential", "Event", "Issued", "Active", "Reason", "Validated"})
				for _, c := range creds {
					active := "NO"
					if c.IsActive {
						active = "YES"
					}
					t.AppendRow(table.Row{
						c.CredentialID,
						c.EventIDValue(),
						c.IssuedAt.Format(time.RFC3339),
						active,
						string(c.DeactivationReason),
						formatOptionalTime(c.LastValidatedAt),
					})
				}
				t.SetStyle(table.StyleLight)
				t.Render()
				return nil
			})
		},
	}
	return cmd
}

func formatOptionalTime(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.Format(time.RFC3339)
}
