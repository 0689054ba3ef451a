// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/channi23/OrangeLens/internal/offlinequeue"
	"github.com/channi23/OrangeLens/internal/verify"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and drain the offline submission queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued requests, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := offlinequeue.Open(cmd.Context(), cfg.Queue, logger.Named("queue"))
		if err != nil {
			return err
		}
		defer q.Close()

		items, err := q.List(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}
		if len(items) == 0 {
			fmt.Fprintln(w, "Queue is empty.")
			return nil
		}

		var rows [][]string
		for _, it := range items {
			kind, text := "?", ""
			if it.Request != nil {
				kind, text = string(it.Request.Kind()), it.Request.Text
			}
			rows = append(rows, []string{
				strconv.FormatInt(it.ID, 10),
				it.EnqueuedAt.Format(time.DateTime),
				kind,
				truncate(text, 40),
				strconv.Itoa(it.Attempts),
				truncate(it.LastError, 40),
			})
		}
		if err := renderTable(w, []string{"ID", "Enqueued", "Kind", "Text", "Attempts", "Last error"}, rows); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%d queued\n", len(items))
		return nil
	},
}

var queueDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Replay queued requests now",
	Long: `Drain replays queued requests in FIFO order against the verification
service. It stops at the first request that still fails; that request and
everything behind it stay queued.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := offlinequeue.Open(cmd.Context(), cfg.Queue, logger.Named("queue"))
		if err != nil {
			return err
		}
		defer q.Close()

		report, err := q.Drain(cmd.Context(), verify.NewClient(cfg.Verify, logger.Named("verify")))
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Delivered %d, dropped %d, remaining %d\n", report.Delivered, report.Dropped, report.Remaining)
		if report.Deferred {
			fmt.Fprintln(w, "Head request is backing off; try again later.")
		}
		if report.LastError != "" {
			fmt.Fprintf(w, "Stopped: %s\n", report.LastError)
		}
		return nil
	},
}

var queuePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every queued request",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := offlinequeue.Open(cmd.Context(), cfg.Queue, logger.Named("queue"))
		if err != nil {
			return err
		}
		defer q.Close()

		n, err := q.Purge(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d request(s)\n", n)
		return nil
	},
}

func init() {
	queueListCmd.Flags().Bool("json", false, "output items as JSON")

	queueCmd.AddCommand(queueListCmd, queueDrainCmd, queuePurgeCmd)
	rootCmd.AddCommand(queueCmd)
}
