package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/gavel-rewards/infrastructure/judges"
)

func newExtractScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract-score [TEXT]",
		Short: "Parse a judge answer into a score in [0,1]",
		Long:  "Extract-score runs the score extractor on TEXT, or on stdin when TEXT is omitted, and prints the normalized score.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 1 {
				raw = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				raw = strings.TrimSpace(string(data))
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%g\n", judges.ExtractScore(raw).Float64())
			return err
		},
	}
}
