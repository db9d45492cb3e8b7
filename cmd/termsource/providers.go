// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/termsource/internal/config"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured provider profiles",
	Long: `Providers prints every configured provider profile with its authority
weight, timeout and cache TTL. Use --yaml to print the profiles in config
file form.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asYAML, _ := cmd.Flags().GetBool("yaml")
		if asYAML {
			data, err := config.Marshal(map[string]any{"providers": loadedConfig.Providers})
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}

		names := make([]string, 0, len(loadedConfig.Providers))
		for n := range loadedConfig.Providers {
			names = append(names, n)
		}
		sort.Strings(names)

		fmt.Printf("%-12s  %-7s  %-6s  %-8s  %-9s  %s\n", "Provider", "Enabled", "Weight", "Timeout", "Cache TTL", "Legal")
		fmt.Println(strings.Repeat("-", 60))
		for _, n := range names {
			p := loadedConfig.Providers[n]
			fmt.Printf("%-12s  %-7t  %-6.2f  %-8s  %-9s  %t\n",
				n, p.Enabled, p.Weight, p.Timeout, p.CacheTTL, p.IsLegalSource)
		}
		return nil
	},
}

func init() {
	providersCmd.Flags().Bool("yaml", false, "print profiles as YAML")
	rootCmd.AddCommand(providersCmd)
}
