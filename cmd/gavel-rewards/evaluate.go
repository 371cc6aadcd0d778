package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/gavel-rewards/internal/application"
)

type evaluateOptions struct {
	roundPath string
	outPath   string
	seed      uint64
}

func newEvaluateCmd(root *rootOptions) *cobra.Command {
	opts := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a round and emit one reward per participant",
		Long: "Evaluate loads a round file (JSON or YAML) holding the user prompt and every " +
			"participant's report, scores it with the configured judges and writes " +
			"[{participant_id, reward}] as JSON.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvaluate(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.roundPath, "round", "r", "", "Path to the round file (required)")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "Write rewards to this file instead of stdout")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Seed the sampler for a reproducible round (overrides round.seed)")
	_ = cmd.MarkFlagRequired("round")

	return cmd
}

func runEvaluate(cmd *cobra.Command, root *rootOptions, opts *evaluateOptions) error {
	round, err := application.LoadRound(opts.roundPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := setup(ctx, root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.close()

	oracle, err := rt.newOracle()
	if err != nil {
		return err
	}
	s, err := rt.newScraper()
	if err != nil {
		return err
	}

	seed := rt.config.Round.Seed
	if cmd.Flags().Changed("seed") {
		seed = &opts.seed
	}
	aggregator, err := rt.newAggregator(oracle, s, seed)
	if err != nil {
		return err
	}

	if timeout := rt.config.Round.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	events := aggregator.Evaluate(ctx, round)

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode rewards: %w", err)
	}
	data = append(data, '\n')

	if opts.outPath == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(opts.outPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write rewards: %w", err)
	}
	rt.logger.Info("rewards written", "path", opts.outPath, "participants", len(events))
	return nil
}
