package main

import (
	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath  string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gavel-rewards",
		Short: "Score research reports and emit participant rewards",
		Long: "gavel-rewards fetches the sources cited by every participant's report, " +
			"asks LLM judges to rate relevance and accuracy, and combines the ratings " +
			"into one reward in [0,1] per participant.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "gavel-rewards.yaml", "Path to the pipeline configuration")
	cmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address (overrides metrics.addr)")

	cmd.AddCommand(
		newEvaluateCmd(opts),
		newFetchCmd(opts),
		newExtractScoreCmd(),
	)
	return cmd
}
