// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/termsource/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached provider answers",
	Long: `Cache removes stored provider answers from the configured cache backend.
Only the sqlite and redis backends persist between runs.`,
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <term>",
	Short: "Remove every provider's cached answer for a term",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(loadedConfig.Cache)
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := c.Invalidate(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d cached entries for %q\n", n, cache.NormalizeTerm(args[0]))
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every cached entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(loadedConfig.Cache)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Purge(context.Background()); err != nil {
			return err
		}
		fmt.Println("Cache purged")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
