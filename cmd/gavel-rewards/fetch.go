package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

const previewRunes = 120

// fetchReport is the diagnostic output of the fetch command.
type fetchReport struct {
	Attempts   int            `json:"attempts"`
	Resolved   []resolvedPage `json:"resolved"`
	Unresolved []string       `json:"unresolved"`
}

type resolvedPage struct {
	URL     string `json:"url"`
	Chars   int    `json:"chars"`
	Preview string `json:"preview"`
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch URL...",
		Short: "Resolve URLs through the configured scraper with retries",
		Long: "Fetch runs the retrying batch fetcher alone, with the scraper, group size and " +
			"attempt bound from the config, and reports which URLs resolved.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, root, args)
		},
	}
}

func runFetch(cmd *cobra.Command, root *rootOptions, urls []string) error {
	ctx := cmd.Context()
	rt, err := setup(ctx, root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.close()

	s, err := rt.newScraper()
	if err != nil {
		return err
	}

	result := rt.newFetcher(s).Fetch(ctx, urls, rt.config.Scraper.GroupSize, rt.config.Scraper.MaxAttempts)

	report := fetchReport{
		Attempts:   result.Attempts,
		Resolved:   make([]resolvedPage, 0, len(result.Content)),
		Unresolved: result.Unresolved,
	}
	if report.Unresolved == nil {
		report.Unresolved = []string{}
	}
	for url, text := range result.Content {
		report.Resolved = append(report.Resolved, resolvedPage{
			URL:     url,
			Chars:   utf8.RuneCountInString(text),
			Preview: preview(text),
		})
	}
	slices.SortFunc(report.Resolved, func(a, b resolvedPage) int {
		return strings.Compare(a.URL, b.URL)
	})

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode fetch report: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// preview returns the first previewRunes runes of text.
func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	return string([]rune(text)[:previewRunes]) + "..."
}
