// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify submits claims to the remote verification service and
// tracks the per-session submission state around it.
package verify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/channi23/OrangeLens/internal/httputil"
	"github.com/channi23/OrangeLens/internal/logging"
	"github.com/channi23/OrangeLens/pkg/types"
)

// HealthPath is the backend liveness endpoint.
const HealthPath = "/healthz"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// Client sends verification requests over HTTP.
type Client struct {
	http       *http.Client
	baseURL    string
	strategies Strategies
	maxRetries int
	logger     *zap.Logger
}

// NewClient returns a Client for cfg.
func NewClient(cfg types.VerifyConfig, logger *zap.Logger) *Client {
	logger = logging.OrNop(logger)
	return &Client{
		http:       httputil.NewClient(cfg.HTTPConfig),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		strategies: NewStrategies(cfg),
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// Strategies returns the submission strategies in use.
func (c *Client) Strategies() Strategies { return c.strategies }

// Submit sends req and parses the response. Errors are classified as
// *NetworkError, *HTTPStatusError, *ParseError or *InputValidationError;
// a cancelled context is returned as ctx.Err().
func (c *Client) Submit(ctx context.Context, req *types.VerificationRequest) (*types.VerificationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	strategy := c.strategies.Select(req)
	httpReq, err := strategy.Build(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	body, status, err := c.do(ctx, httpReq)
	if err != nil {
		c.logger.Debug("verification request failed",
			zap.String("request_id", req.ID),
			zap.String("strategy", strategy.Name()),
			zap.Error(err))
		return nil, err
	}
	elapsed := time.Since(start)

	c.logger.Debug("verification response",
		zap.String("request_id", req.ID),
		zap.String("strategy", strategy.Name()),
		zap.Int("status", status),
		zap.Duration("latency", elapsed))

	if status < 200 || status > 299 {
		return nil, &HTTPStatusError{StatusCode: status, Body: string(body)}
	}

	res, err := ParseResult(body)
	if err != nil {
		return nil, err
	}
	res.ClientLatency = elapsed
	return res, nil
}

// Ping checks that the backend answers its health endpoint with a 2xx.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}
	body, status, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return &HTTPStatusError{StatusCode: status, Body: string(body)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, int, error) {
	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.maxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, &NetworkError{Err: fmt.Errorf("reading response: %w", err)}
	}
	return body, resp.StatusCode, nil
}
