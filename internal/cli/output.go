package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
)

var (
	labelColor   = color.New(color.Bold)
	valueColor   = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
)

func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// printField writes one aligned "Label: value" line.
func printField(w io.Writer, label string, value interface{}) {
	fmt.Fprintf(w, "  %s %s\n", labelColor.Sprintf("%-18s", label+":"), valueColor.Sprint(value))
}

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	successColor.Fprintln(w, "  "+title)
	fmt.Fprintln(w, strings.Repeat("=", 60))
}

// formatAmount groups the integer digits of d and keeps its fraction as is.
func formatAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + formatAmount(d.Neg())
	}
	whole := d.Truncate(0)
	out := humanize.BigComma(whole.BigInt())
	if frac := d.Sub(whole); !frac.IsZero() {
		out += strings.TrimPrefix(frac.String(), "0")
	}
	return out
}

// formatAmountString formats a decimal string, leaving unparsable input untouched.
func formatAmountString(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return formatAmount(d)
}

// formatTimestamp renders an RFC3339 timestamp with a relative hint.
func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return fmt.Sprintf("%s (%s)", t.UTC().Format("2006-01-02 15:04:05"), humanize.Time(t))
}

// startSpinner shows progress on w unless output is JSON. The returned func stops it.
func (a *App) startSpinner(w io.Writer, suffix string) func() {
	if a.jsonOutput {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	s.Start()
	return s.Stop
}
