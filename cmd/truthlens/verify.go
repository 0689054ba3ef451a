// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/channi23/OrangeLens/internal/offlinequeue"
	"github.com/channi23/OrangeLens/internal/verify"
	"github.com/channi23/OrangeLens/pkg/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [claim...]",
	Short: "Verify a claim and/or an image",
	Long: `Verify submits a claim, an image, or both to the verification service and
prints the verdict, confidence, explanation and citations.

Text-only claims are sent as JSON; anything with an image is sent as
multipart form data. With --queue a request that cannot reach the service
is kept in the offline queue for the next drain. With --retry a failed
submission is resent unchanged up to that many times.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().String("image", "", "path to an image file to verify")
	verifyCmd.Flags().String("mode", "", "verification mode: fast or deep")
	verifyCmd.Flags().String("language", "", "language code, or auto")
	verifyCmd.Flags().Bool("queue", false, "queue the request if the service is unreachable")
	verifyCmd.Flags().Bool("json", false, "output the result as JSON")
	verifyCmd.Flags().Int("retry", 0, "resend a failed request up to this many times")
	verifyCmd.Flags().Duration("retry-delay", time.Second, "wait between resends")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	text := strings.Join(args, " ")

	mode, _ := cmd.Flags().GetString("mode")
	if mode == "" {
		mode = string(cfg.Verify.Mode)
	}
	language, _ := cmd.Flags().GetString("language")
	if language == "" {
		language = cfg.Verify.Language
	}

	var img *types.Image
	if path, _ := cmd.Flags().GetString("image"); path != "" {
		var err error
		if img, err = readImage(path); err != nil {
			return err
		}
	}

	req, err := types.NewVerificationRequest(text, img, types.Mode(mode), language)
	if err != nil {
		return err
	}

	client := verify.NewClient(cfg.Verify, logger.Named("verify"))

	var queue verify.Enqueuer
	if useQueue, _ := cmd.Flags().GetBool("queue"); useQueue {
		q, err := offlinequeue.Open(ctx, cfg.Queue, logger.Named("queue"))
		if err != nil {
			return err
		}
		defer q.Close()
		queue = q
	}

	o := verify.NewOrchestrator(client, queue, nil, logger)
	out, err := o.Submit(ctx, req)
	if err != nil {
		return err
	}

	retries, _ := cmd.Flags().GetInt("retry")
	delay, _ := cmd.Flags().GetDuration("retry-delay")
	if out, err = retryOutcome(cmd, o, out, retries, delay); err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	w := cmd.OutOrStdout()
	switch out.Kind {
	case verify.OutcomeSuccess:
		if asJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(out.Result)
		}
		return printResult(w, out.Result)
	case verify.OutcomeQueued:
		fmt.Fprintf(w, "Service unreachable; queued as item %d (request %s).\n", out.Queued.ID, req.ID)
		return nil
	default:
		if out.RawBody != "" {
			fmt.Fprintf(os.Stderr, "Response body:\n%s\n", out.RawBody)
		}
		return fmt.Errorf("verification %s: %w", out.Kind, out.Err)
	}
}

// retryOutcome resends the orchestrator's last request while the outcome
// offers a retry and attempts remain.
func retryOutcome(cmd *cobra.Command, o *verify.Orchestrator, out *verify.Outcome, retries int, delay time.Duration) (*verify.Outcome, error) {
	ctx := cmd.Context()
	for attempt := 1; attempt <= retries && out.RetryOffered(); attempt++ {
		fmt.Fprintf(cmd.ErrOrStderr(), "Verification %s: %v; retrying (%d/%d)\n", out.Kind, out.Err, attempt, retries)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		next, err := o.Retry(ctx)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

func readImage(path string) (*types.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image %s is empty", path)
	}
	return &types.Image{
		Data:        data,
		ContentType: http.DetectContentType(data),
		Filename:    filepath.Base(path),
	}, nil
}
