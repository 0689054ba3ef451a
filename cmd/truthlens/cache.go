// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/channi23/OrangeLens/internal/cachestore"
	"github.com/channi23/OrangeLens/internal/worker"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the cache store",
}

func openStore(ctx context.Context) (cachestore.Store, error) {
	return cachestore.New(ctx, cfg.Cache.StorageConfig)
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cache names and their entry counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		names, err := store.Keys(ctx)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(w, "No caches.")
			return nil
		}

		var rows [][]string
		for _, name := range names {
			h, err := store.Open(ctx, name)
			if err != nil {
				return err
			}
			keys, err := h.Entries(ctx)
			if err != nil {
				return err
			}
			status := "stale"
			if cfg.Cache.Names.IsCurrent(name) {
				status = "current"
			}
			rows = append(rows, []string{name, status, strconv.Itoa(len(keys))})
		}
		return renderTable(w, []string{"Cache", "Status", "Entries"}, rows)
	},
}

var cacheInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Fetch the application shell into the static cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		shell, _, err := worker.NewShell(store, *cfg, logger.Named("shell"))
		if err != nil {
			return err
		}
		n, err := shell.Install(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed %d asset(s) into %s\n", n, cfg.Cache.Names.Static)
		return nil
	},
}

var cacheActivateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Delete every cache that is not current",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		shell, _, err := worker.NewShell(store, *cfg, logger.Named("shell"))
		if err != nil {
			return err
		}
		report, err := shell.Activate(ctx)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(report.Deleted) == 0 {
			fmt.Fprintln(w, "Nothing to delete.")
		} else {
			fmt.Fprintf(w, "Deleted: %s\n", strings.Join(report.Deleted, ", "))
		}
		fmt.Fprintf(w, "Kept: %s\n", strings.Join(report.Kept, ", "))
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete one cache and all its entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		ok, err := store.Delete(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no cache named %q", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd, cacheInstallCmd, cacheActivateCmd, cacheDeleteCmd)
	rootCmd.AddCommand(cacheCmd)
}
