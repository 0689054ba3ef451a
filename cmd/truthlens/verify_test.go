// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/channi23/OrangeLens/internal/config"
	"github.com/channi23/OrangeLens/pkg/types"
)

// backend answers 500 for the first failures requests and a verdict after
// that, recording every body it received.
type backend struct {
	failures int

	mu     sync.Mutex
	bodies [][]byte
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.bodies = append(b.bodies, body)
	n := len(b.bodies)
	b.mu.Unlock()

	if n <= b.failures {
		http.Error(w, `{"error":"Express call failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"verdict":"false","confidence":0.91,"explanation":"Debunked."}`))
}

func (b *backend) received() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.bodies...)
}

func setupVerify(t *testing.T, b *backend, flags map[string]string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	c := config.Default()
	c.Verify.BaseURL = srv.URL
	cfg = &c
	logger = zaptest.NewLogger(t)
	t.Cleanup(func() {
		cfg = nil
		logger = zap.NewNop()
	})

	for name, value := range flags {
		f := verifyCmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		require.NoError(t, f.Value.Set(value))
		t.Cleanup(func() { _ = f.Value.Set(f.DefValue) })
	}

	var out bytes.Buffer
	verifyCmd.SetContext(context.Background())
	verifyCmd.SetOut(&out)
	verifyCmd.SetErr(io.Discard)
	t.Cleanup(func() {
		verifyCmd.SetOut(nil)
		verifyCmd.SetErr(nil)
	})
	return verifyCmd, &out
}

func TestRunVerify_RetryResendsSameRequest(t *testing.T) {
	b := &backend{failures: 1}
	cmd, out := setupVerify(t, b, map[string]string{"retry": "2", "retry-delay": "0s", "json": "true"})

	require.NoError(t, runVerify(cmd, []string{"the", "moon", "is", "cheese"}))

	bodies := b.received()
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])

	var res types.VerificationResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, types.VerdictFalse, res.Verdict)
	assert.Equal(t, "Debunked.", res.Explanation)
}

func TestRunVerify_RetriesExhausted(t *testing.T) {
	b := &backend{failures: 10}
	cmd, _ := setupVerify(t, b, map[string]string{"retry": "2", "retry-delay": "0s"})

	err := runVerify(cmd, []string{"still failing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification failed")
	assert.Len(t, b.received(), 3)
}

func TestRunVerify_NoRetryByDefault(t *testing.T) {
	b := &backend{failures: 1}
	cmd, _ := setupVerify(t, b, nil)

	require.Error(t, runVerify(cmd, []string{"one shot"}))
	assert.Len(t, b.received(), 1)
}
