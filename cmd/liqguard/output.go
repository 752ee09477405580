package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"liquidityGuard/internal/amount"
	"liquidityGuard/internal/apperr"
)

func printPresentation(w io.Writer, p apperr.Presentation) {
	switch p.Terminal {
	case apperr.TerminalSuccess:
		fmt.Fprintf(w, "success: %s\n", p.Message)
	case apperr.TerminalBlocked:
		fmt.Fprintf(w, "configuration required: %s\n", p.Message)
	default:
		line := "error: " + p.Message
		if p.Retryable {
			line += " (retry)"
		}
		fmt.Fprintln(w, line)
	}
}

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cells ...string) {
	fmt.Fprintln(tw, strings.Join(cells, "\t"))
}

func optionalFloat(v *float64, format func(float64) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}

func optionalString(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

func ratio(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func usd(v float64) string {
	return amount.USD(v)
}
