// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the termsource CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/termsource/internal/config"
	"github.com/pdiddy/termsource/internal/secrets"
	"github.com/pdiddy/termsource/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Loaded at startup by the root command.
var (
	loadedConfig  types.Config
	loadedSecrets map[string]string
	logger        *slog.Logger
)

// rootCmd is the base command for the termsource CLI.
var rootCmd = &cobra.Command{
	Use:   "termsource",
	Short: "Look up attributable reference sources for government terms",
	Long: `termsource queries encyclopedic, lexical, legal and web sources for a term,
scores every answer on a common scale, and selects a token-bounded list of
citations for a definition generator.

Use lookup for a one-off query, serve to expose the same pipeline over HTTP,
and cache to manage stored provider answers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		loadedConfig = cfg
		logger = config.NewLogger(os.Stderr, cfg.LogLevel)
		slog.SetDefault(logger)

		s, err := secrets.Load(secrets.DefaultDir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logger.Debug("secrets_loaded", slog.String("keys", strings.Join(secrets.Names(s), ",")))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./termsource.yaml or ~/.config/termsource/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if err := config.SetDefaults(viper.GetViper()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("termsource")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "termsource"))
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
