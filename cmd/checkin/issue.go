package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newIssueCmd(state *cliState) *cobra.Command {
	var (
		eventID string
		qrPath  string
	)

	cmd := &cobra.Command{
		Use:   "issue <subject-id>",
		Short: "Issue a credential for one subject, superseding any active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), state, func(ctx context.Context, rt *runtimeStack) error {
				cred, err := rt.Issuer.Issue(ctx, args[0], eventID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "subject:    %s\n", cred.SubjectID)
				fmt.Fprintf(out, "credential: %s\n", cred.CredentialID)
				fmt.Fprintf(out, "issued at:  %s\n", cred.IssuedAt.Format(time.RFC3339))
				if cred.ExpiresAt != nil {
					fmt.Fprintf(out, "expires at: %s\n", cred.ExpiresAt.Format(time.RFC3339))
				}
				fmt.Fprintf(out, "payload:    %s\n", cred.RenderedPayload)

				if qrPath != "" {
					if err := os.WriteFile(qrPath, cred.QRImage, 0o644); err != nil {
						return fmt.Errorf("write qr image: %w", err)
					}
					fmt.Fprintf(out, "qr image:   %s\n", qrPath)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&eventID, "event", "e", "", "Event the credential is scoped to")
	cmd.Flags().StringVar(&qrPath, "qr", "", "Write the QR PNG to this path")
	return cmd
}
