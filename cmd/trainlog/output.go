package main

import (
	"fmt"
	"os"
)

// Records and JSON go to stdout so they stay pipeable; these human-facing
// status lines all go to stderr.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + ansiReset
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(ansiGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(ansiRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(ansiYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

// printField renders an indented "label: value" line for status-style output.
func printField(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(ansiBold, label+":"), fmt.Sprintf(format, args...))
}

// dateLabel is the accent used for the leading date column in listings.
func dateLabel(date string) string {
	return colorize(ansiCyan, date)
}
