package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newValidateCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [payload]",
		Short: "Validate and consume a scanned credential payload",
		Long: `validate checks the payload signature and consumes the credential. A
credential is accepted once; later scans report it as used. Pass "-" or no
argument to read the payload from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readPayload(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			return withRuntime(cmd.Context(), state, func(ctx context.Context, rt *runtimeStack) error {
				result, err := rt.Validator.Validate(ctx, raw)

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(result); encErr != nil {
					return encErr
				}

				if err != nil {
					return err
				}
				return result.Err()
			})
		},
	}
	return cmd
}

func readPayload(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
