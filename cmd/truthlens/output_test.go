// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channi23/OrangeLens/pkg/types"
)

func TestPrintResult(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	err := printResult(&buf, &types.VerificationResult{
		Verdict:     types.VerdictUnknown,
		RawVerdict:  "error",
		Confidence:  0.42,
		Explanation: "Express call failed",
		KeyFacts:    []string{"fact one"},
		Citations: []types.Citation{
			{Title: "Fact check", URL: "https://example.org/a", Publisher: "Example", Rating: "False"},
		},
		Metrics:       types.Metrics{CostUSD: 0.0012},
		ClientLatency: 1500 * time.Millisecond,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Verdict:     N/A (error)")
	assert.Contains(t, out, "Confidence:  42%")
	assert.Contains(t, out, "Express call failed")
	assert.Contains(t, out, "fact one")
	assert.Contains(t, out, "https://example.org/a")
	assert.Contains(t, out, "Latency: 1.5s")
	assert.Contains(t, out, "Cost: $0.0012")
}

func TestPrintResult_StripsMarkup(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	err := printResult(&buf, &types.VerificationResult{
		Verdict:     types.VerdictFalse,
		Explanation: "<p>Claim is <b>not</b> supported &amp; was retracted.</p><script>x()</script>",
		KeyFacts:    []string{"<i>Published</i> 2019"},
		Citations:   []types.Citation{{Title: "<em>Retraction</em> notice", URL: "https://example.org/r"}},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Explanation: Claim is not supported & was retracted.\n")
	assert.Contains(t, out, "  - Published 2019\n")
	assert.Contains(t, out, "Retraction notice")
	assert.NotContains(t, out, "<")
	assert.NotContains(t, out, "x()")
}

func TestVerdictColor(t *testing.T) {
	assert.Same(t, trueColor, verdictColor(types.VerdictTrue))
	assert.Same(t, falseColor, verdictColor(types.VerdictFalse))
	assert.Same(t, unknownColor, verdictColor(types.Verdict("bogus")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("  short ", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé...", truncate("éééééééé", 6))
}

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		name string
		sc   types.StorageConfig
		want string
	}{
		{"sqlite path", types.StorageConfig{Backend: types.BackendSQLite, DSN: "data/x.db"}, "data/x.db"},
		{"empty", types.StorageConfig{Backend: types.BackendPostgres}, ""},
		{"postgres", types.StorageConfig{Backend: types.BackendPostgres, DSN: "postgres://u:p@h/db"}, redacted},
		{"redis", types.StorageConfig{Backend: types.BackendRedis, DSN: "redis://:pw@h:6379/0"}, redacted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, redactDSN(tt.sc))
		})
	}
}

func TestReadImage(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "shot.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o644))

	img, err := readImage(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, "shot.png", img.Filename)

	empty := filepath.Join(dir, "empty.jpg")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = readImage(empty)
	assert.ErrorContains(t, err, "empty")

	_, err = readImage(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}
