// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/termsource/internal/lookup"
	"github.com/pdiddy/termsource/pkg/types"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <term>",
	Short: "Look up reference sources for a term",
	Long: `Lookup queries every enabled provider for the term in parallel, scores and
deduplicates the answers, and prints the citations that fit the token budget.
Use --ranked to see the full ranked list with score components instead.

Providers that fail or time out are reported as warnings; the lookup still
returns whatever the other providers found.`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	a, err := newApp(loadedConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	req := lookupRequestFromFlags(cmd, args[0])
	asJSON, _ := cmd.Flags().GetBool("json")
	ranked, _ := cmd.Flags().GetBool("ranked")
	ctx := context.Background()

	if ranked {
		out, err := a.coord.Lookup(ctx, req)
		if err != nil {
			return err
		}
		if asJSON {
			return lookup.FormatJSON(out, os.Stdout)
		}
		lookup.FormatTable(out, os.Stdout)
		return nil
	}

	budget, _ := cmd.Flags().GetInt("budget")
	topK, _ := cmd.Flags().GetInt("top-k")
	src, err := a.pipeline.Sources(ctx, req, budget, topK)
	if err != nil {
		return err
	}
	if asJSON {
		return lookup.FormatJSON(src, os.Stdout)
	}
	lookup.FormatSources(src, os.Stdout)
	return nil
}

func lookupRequestFromFlags(cmd *cobra.Command, term string) types.LookupRequest {
	tags, _ := cmd.Flags().GetStringSlice("tags")
	providers, _ := cmd.Flags().GetStringSlice("providers")
	language, _ := cmd.Flags().GetString("language")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return types.LookupRequest{
		Term:        term,
		Language:    language,
		ContextTags: tags,
		MaxResults:  maxResults,
		Timeout:     timeout,
		Providers:   providers,
	}
}

func init() {
	lookupCmd.Flags().StringSlice("tags", nil, "context tags counted as boost keywords (comma-separated)")
	lookupCmd.Flags().StringSlice("providers", nil, "providers to query (default: all enabled)")
	lookupCmd.Flags().String("language", "", "language hint for multilingual providers")
	lookupCmd.Flags().Int("max-results", 0, "maximum results per provider (0 = provider default)")
	lookupCmd.Flags().Duration("timeout", 0, "per-provider timeout overriding the profile timeouts")
	lookupCmd.Flags().Int("budget", 0, "token budget for selected citations (0 = configured default)")
	lookupCmd.Flags().Int("top-k", 0, "maximum citations to select (0 = configured default)")
	lookupCmd.Flags().Bool("json", false, "output as JSON")
	lookupCmd.Flags().Bool("ranked", false, "print the full ranked list instead of selected citations")

	rootCmd.AddCommand(lookupCmd)
}
