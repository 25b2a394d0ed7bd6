package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newQRCmd(state *cliState) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "qr <subject-id>",
		Short: "Write the PNG of a subject's active credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), state, func(ctx context.Context, rt *runtimeStack) error {
				png, cred, err := rt.Cards.QRImage(ctx, args[0])
				if err != nil {
					return err
				}
				path := output
				if path == "" {
					path = cred.SubjectID + "-qr.png"
				}
				if err := os.WriteFile(path, png, 0o644); err != nil {
					return fmt.Errorf("write qr image: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", path, cred.CredentialID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <subject>-qr.png)")
	return cmd
}

func newCardCmd(state *cliState) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "card <subject-id>",
		Short: "Render the printable card of a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), state, func(ctx context.Context, rt *runtimeStack) error {
				doc, err := rt.Cards.Card(ctx, args[0])
				if err != nil {
					return err
				}
				path := output
				if path == "" {
					path = args[0] + "-card.html"
				}
				if err := os.WriteFile(path, doc, 0o644); err != nil {
					return fmt.Errorf("write card: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <subject>-card.html)")
	return cmd
}

func newSheetCmd(state *cliState) *cobra.Command {
	var (
		output string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "sheet [subject-id...]",
		Short: "Render a printable sheet with the cards of many subjects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), state, func(ctx context.Context, rt *runtimeStack) error {
				subjects, err := rt.subjectsFromArgs(args, all)
				if err != nil {
					return err
				}

				doc, report, err := rt.Cards.Sheet(ctx, subjects)
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, doc, 0o644); err != nil {
					return fmt.Errorf("write sheet: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "wrote %s with %d cards\n", output, len(report.Included))
				if len(report.Skipped) > 0 {
					fmt.Fprintf(out, "skipped: %s\n", strings.Join(report.Skipped, ", "))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "credentials-sheet.html", "Output file")
	cmd.Flags().BoolVar(&all, "all", false, "Include every subject in the configured directory")
	return cmd
}

func newArchiveCmd(state *cliState) *cobra.Command {
	var (
		output string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "archive [subject-id...]",
		Short: "Write a zip archive with one card per subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), state, func(ctx context.Context, rt *runtimeStack) error {
				subjects, err := rt.subjectsFromArgs(args, all)
				if err != nil {
					return err
				}

				var buf bytes.Buffer
				report, err := rt.Cards.Archive(ctx, &buf, subjects)
				if err != nil {
					return err
				}
				if len(report.Included) == 0 {
					return fmt.Errorf("no card could be rendered: %w", report.Err)
				}
				if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write archive: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "wrote %s with %d cards\n", output, len(report.Included))
				if len(report.Skipped) > 0 {
					fmt.Fprintf(out, "skipped: %s\n", strings.Join(report.Skipped, ", "))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "credentials.zip", "Output file")
	cmd.Flags().BoolVar(&all, "all", false, "Include every subject in the configured directory")
	return cmd
}
