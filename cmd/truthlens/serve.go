// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/channi23/OrangeLens/internal/worker"
	"github.com/channi23/OrangeLens/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the edge server",
	Long: `Serve runs the edge server. It activates the current caches (deleting
caches left by earlier versions), optionally installs the application shell
first, and then serves:

  POST /verify             share-target submissions, redirected to the shell
  GET  /shared/<id>        shared images, from the cache only
  POST /api/v1/verify      verification, queued while the backend is unreachable
  POST /sync/<tag>         manual reconnect signal (background-verify)
  GET  anything else       the application shell, cache first

A connectivity monitor replays queued requests when the backend comes back.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("origin", "", "application shell origin URL")
	serveCmd.Flags().String("dir", "", "install the application shell from this build directory")
	serveCmd.Flags().Bool("install", false, "install the application shell before serving")
	serveCmd.Flags().Bool("ephemeral", false, "keep caches in memory only")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("shell.origin", serveCmd.Flags().Lookup("origin"))
	viper.BindPFlag("shell.dir", serveCmd.Flags().Lookup("dir"))
	viper.BindPFlag("shell.install_on_start", serveCmd.Flags().Lookup("install"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	c := *cfg
	if ephemeral, _ := cmd.Flags().GetBool("ephemeral"); ephemeral {
		c.Cache.Backend = types.BackendMemory
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := worker.New(ctx, c, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	return srv.Run(ctx)
}
