// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the prescreen CLI. It extracts
// eligibility criteria from trial protocols and screens candidate records
// against the most selective of them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/trial-prescreen/internal/logging"
	"github.com/pdiddy/trial-prescreen/internal/report"
	"github.com/pdiddy/trial-prescreen/internal/secrets"
	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// appConfig is the merged configuration, loaded before any subcommand runs.
var appConfig = types.DefaultConfig()

// logger is the process logger built from appConfig.Log.
var logger = slog.Default()

// rootCmd is the base command for the prescreen CLI.
var rootCmd = &cobra.Command{
	Use:   "prescreen",
	Short: "Pre-screen clinical trial candidates against protocol eligibility criteria",
	Long: `prescreen reads a trial protocol, extracts its inclusion and exclusion
criteria, ranks them by how many candidates each is expected to eliminate,
and screens candidate records against the most selective ones.

Verdicts are pass, fail or needs_review. Criteria the built-in rules cannot
decide are marked for manual review, or escalated to Claude with --review.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		appConfig = cfg

		log, err := logging.Setup(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		logger = log
		slog.SetDefault(log)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./prescreen.yaml or ~/.config/prescreen/prescreen.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("store-dir", "", "directory holding prescreen.db (default: results)")
	pf.String("secrets-dir", secrets.DefaultDir, "directory of secret files")
	pf.String("color", "auto", "color output: auto, always, never")

	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.format", pf.Lookup("log-format"))
	viper.BindPFlag("store.dir", pf.Lookup("store-dir"))
}

func initConfig() {
	if err := secrets.LoadDotenv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("prescreen")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "prescreen"))
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, the config file and PRESCREEN_* environment
// variables into a PipelineConfig. Nested keys map to variables with dots
// replaced by underscores, e.g. PRESCREEN_SCREENING_WORKERS.
func loadConfig(v *viper.Viper) (types.PipelineConfig, error) {
	v.SetEnvPrefix("PRESCREEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, types.DefaultConfig())

	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return types.PipelineConfig{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d types.PipelineConfig) {
	v.SetDefault("extraction.min_statement_length", d.Extraction.MinStatementLength)
	v.SetDefault("extraction.stop_at_section", d.Extraction.StopAtSection)
	v.SetDefault("extraction.cache_size", d.Extraction.CacheSize)
	v.SetDefault("screening.pareto_limit", d.Screening.ParetoLimit)
	v.SetDefault("screening.workers", d.Screening.Workers)
	v.SetDefault("review.model", d.Review.Model)
	v.SetDefault("review.api_key", d.Review.APIKey)
	v.SetDefault("review.max_retries", d.Review.MaxRetries)
	v.SetDefault("review.enabled", d.Review.Enabled)
	v.SetDefault("review.confidence_threshold", d.Review.ConfidenceThreshold)
	v.SetDefault("review.timeout", d.Review.Timeout)
	v.SetDefault("store.dir", d.Store.Dir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.textfile_path", d.Metrics.TextfilePath)
}

// newPrinter builds a printer for cmd's output honoring --color.
func newPrinter(cmd *cobra.Command) (*report.Printer, error) {
	raw, _ := cmd.Flags().GetString("color")
	mode, err := report.ParseColorMode(raw)
	if err != nil {
		return nil, err
	}
	return report.NewPrinter(cmd.OutOrStdout(), mode), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
