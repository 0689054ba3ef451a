// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/microcosm-cc/bluemonday"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/channi23/OrangeLens/pkg/types"
)

var (
	trueColor       = color.New(color.FgGreen, color.Bold)
	falseColor      = color.New(color.FgRed, color.Bold)
	misleadingColor = color.New(color.FgYellow, color.Bold)
	unverifiedColor = color.New(color.FgCyan)
	unknownColor    = color.New(color.FgHiBlack)
)

// markup strips any HTML the backend puts in explanations and citations
// before it reaches the terminal.
var markup = bluemonday.StrictPolicy()

func plainText(s string) string {
	if s == "" {
		return ""
	}
	return html.UnescapeString(markup.Sanitize(s))
}

func verdictColor(v types.Verdict) *color.Color {
	switch v {
	case types.VerdictTrue:
		return trueColor
	case types.VerdictFalse:
		return falseColor
	case types.VerdictMisleading:
		return misleadingColor
	case types.VerdictUnverified:
		return unverifiedColor
	default:
		return unknownColor
	}
}

func printResult(w io.Writer, res *types.VerificationResult) error {
	label := res.Verdict.Display()
	if res.RawVerdict != "" {
		label += " (" + res.RawVerdict + ")"
	}
	fmt.Fprintf(w, "Verdict:     %s\n", verdictColor(res.Verdict).Sprint(label))
	fmt.Fprintf(w, "Confidence:  %.0f%%\n", res.Confidence*100)
	fmt.Fprintf(w, "Explanation: %s\n", plainText(res.Explanation))

	if len(res.KeyFacts) > 0 {
		fmt.Fprintln(w, "\nKey facts:")
		for _, f := range res.KeyFacts {
			fmt.Fprintf(w, "  - %s\n", plainText(f))
		}
	}

	if len(res.Citations) > 0 {
		fmt.Fprintln(w, "\nCitations:")
		var rows [][]string
		for i, c := range res.Citations {
			rows = append(rows, []string{strconv.Itoa(i + 1), truncate(plainText(c.Title), 60), plainText(c.Publisher), plainText(c.Rating), c.URL})
		}
		if err := renderTable(w, []string{"#", "Title", "Publisher", "Rating", "URL"}, rows); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nLatency: %s", res.ClientLatency.Round(1e6))
	if res.Metrics.CostUSD > 0 {
		fmt.Fprintf(w, "  Cost: $%.4f", res.Metrics.CostUSD)
	}
	fmt.Fprintln(w)
	return nil
}

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
