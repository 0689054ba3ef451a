// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the truthlens CLI: the edge server,
// one-shot verification, and operator commands for the offline queue and
// the caches.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/channi23/OrangeLens/internal/config"
	"github.com/channi23/OrangeLens/internal/httputil"
	"github.com/channi23/OrangeLens/internal/logging"
	"github.com/channi23/OrangeLens/internal/secrets"
	"github.com/channi23/OrangeLens/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the effective configuration, resolved before any subcommand runs.
	cfg *types.Config

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "truthlens",
	Short: "Offline-resilient edge for the TruthLens fact-verification service",
	Long: `truthlens fronts the TruthLens verification service. The serve command
runs the edge server: it accepts share-target submissions, serves the
application shell cache-first, proxies verification requests and replays
the ones that failed while offline.

The verify command checks a single claim from the terminal. The queue and
cache commands inspect and maintain the offline queue and the caches.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Read(viper.GetViper()); err != nil {
			return err
		}
		if f := viper.ConfigFileUsed(); f != "" {
			fmt.Fprintln(os.Stderr, "Using config file:", f)
		}

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, nil)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}

		loaded, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		s.Apply(secrets.VerifyAPIKey, &loaded.Verify.APIKey)
		s.Apply(secrets.CacheDSN, &loaded.Cache.DSN)
		s.Apply(secrets.QueueDSN, &loaded.Queue.DSN)
		cfg = loaded

		l, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		logger = l
		httputil.Logger = logger.Named("http")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./truthlens.yaml or ~/.config/truthlens/truthlens.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of plain-text secret files")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	config.Setup(viper.GetViper(), cfgFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
