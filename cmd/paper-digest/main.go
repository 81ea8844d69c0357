// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-digest CLI.
package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/internal/secrets"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// envFiles are loaded in order; earlier files win.
var envFiles = []string{"/config/.env", ".env"}

// rootCmd is the base command for the paper-digest CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-digest",
	Short: "Personal arXiv digest: fetch, score, summarize, notify",
	Long: `paper-digest pulls new arXiv submissions in your categories, scores them
against your interest profile with a language model, writes personalized
summaries for the relevant ones, and sends a digest to Telegram, Pushover, or
a webhook.

Run it once with "run", keep it running with "serve" (HTTP API plus the daily
schedule), or work on single papers with "add", "resummarize", and "score".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd)

		loaded, err := secrets.LoadEnv(envFiles...)
		if err != nil {
			return err
		}
		for _, f := range loaded {
			slog.Debug("loaded env file", "path", f)
		}

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./paper-digest.yaml or ~/.config/paper-digest/paper-digest.yaml)")
	pf.String("db", "", "SQLite database path (default data/paper_digest.db)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("log-json", false, "log as JSON")

	viper.BindPFlag("store.path", pf.Lookup("db"))
}

// credentialKeys have no default value, so they are bound to the
// environment explicitly.
var credentialKeys = []string{
	"ai.api_key", "ai.base_url",
	"notify.telegram_bot_token", "notify.telegram_chat_id",
	"notify.pushover_user_key", "notify.pushover_api_token",
	"notify.webhook_url",
}

func initConfig() {
	// Defaults go in first so every key is known to viper and can be
	// overridden by the config file or the environment.
	defaults, err := yaml.Marshal(types.DefaultConfig())
	if err == nil {
		viper.SetConfigType("yaml")
		viper.ReadConfig(bytes.NewReader(defaults))
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-digest")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-digest"))
		}
	}

	viper.SetEnvPrefix("PAPER_DIGEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, k := range credentialKeys {
		viper.BindEnv(k)
	}

	if err := viper.MergeInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig returns the effective configuration: defaults, then the config
// file, then PAPER_DIGEST_* variables, then .secrets/ for credentials that
// are still empty.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg, nil
}

func setupLogging(cmd *cobra.Command) {
	levelName, _ := cmd.Flags().GetString("log-level")
	asJSON, _ := cmd.Flags().GetBool("log-json")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if asJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
