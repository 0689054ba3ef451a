// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/channi23/OrangeLens/pkg/types"
)

// Timestamp layouts accepted from the backend. The second one is what a
// timezone-naive isoformat() produces.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// ParseResult decodes a verification response body. Any JSON object is
// accepted: missing or mistyped fields fall back to their defaults. A body
// that is not a JSON object is a *ParseError.
func ParseResult(body []byte) (*types.VerificationResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ParseError{Body: string(body), Err: errors.New("response is not a JSON object")}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, &ParseError{Body: string(body), Err: err}
	}

	res := &types.VerificationResult{
		Verdict:     types.VerdictUnknown,
		Explanation: types.NoExplanation,
		Citations:   []types.Citation{},
	}

	if raw, ok := stringField(fields, "verdict"); ok {
		res.Verdict = types.ParseVerdict(raw)
		if res.Verdict == types.VerdictUnknown && raw != "" {
			res.RawVerdict = raw
		}
	}

	if c, ok := numberField(fields, "confidence"); ok {
		res.Confidence = clamp01(c)
	}

	if e, ok := stringField(fields, "explanation"); ok && strings.TrimSpace(e) != "" {
		res.Explanation = e
	} else if e, ok := stringField(fields, "error"); ok && e != "" {
		res.Explanation = e
	}

	res.Citations = parseCitations(fields["citations"])
	res.RequestID, _ = stringField(fields, "request_id")
	res.Reasoning, _ = stringField(fields, "reasoning")
	res.Language, _ = stringField(fields, "language")
	if m, ok := stringField(fields, "mode"); ok {
		res.Mode = types.Mode(m)
	}
	if raw, ok := fields["key_facts"]; ok {
		var facts []string
		if json.Unmarshal(raw, &facts) == nil {
			res.KeyFacts = facts
		}
	}
	if ts, ok := stringField(fields, "timestamp"); ok {
		res.Timestamp = parseTimestamp(ts)
	}

	if raw, ok := fields["metrics"]; ok {
		var metrics map[string]json.RawMessage
		if json.Unmarshal(raw, &metrics) == nil {
			res.Metrics.LatencyMS, _ = numberField(metrics, "latency_ms")
			res.Metrics.CostUSD, _ = numberField(metrics, "cost_usd")
		}
	}
	if res.Metrics.CostUSD == 0 {
		res.Metrics.CostUSD, _ = numberField(fields, "cost")
	}

	return res, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// numberField reads a number, also accepting numeric strings.
func numberField(fields map[string]json.RawMessage, name string) (float64, bool) {
	raw, ok := fields[name]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

type citationJSON struct {
	Title     string          `json:"title"`
	URL       string          `json:"url"`
	Publisher json.RawMessage `json:"publisher"`
	Rating    string          `json:"rating"`
	Date      string          `json:"date"`
}

// parseCitations keeps the order of well-formed entries and skips the rest.
func parseCitations(raw json.RawMessage) []types.Citation {
	out := []types.Citation{}
	if len(raw) == 0 {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		var c citationJSON
		if err := json.Unmarshal(item, &c); err != nil {
			continue
		}
		out = append(out, types.Citation{
			Title:     c.Title,
			URL:       c.URL,
			Publisher: publisherName(c.Publisher),
			Rating:    c.Rating,
			Date:      c.Date,
		})
	}
	return out
}

func publisherName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Name string `json:"name"`
		Site string `json:"site"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		if obj.Name != "" {
			return obj.Name
		}
		return obj.Site
	}
	return ""
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
