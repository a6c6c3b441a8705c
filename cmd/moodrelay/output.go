package main

import (
	"fmt"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

// moodColor picks green for Happy, red for Sad and cyan otherwise.
func moodColor(mood string) string {
	switch mood {
	case "Happy":
		return colorGreen
	case "Sad":
		return colorRed
	default:
		return colorCyan
	}
}

// scoreColor colors a sentiment score by sign.
func scoreColor(score float64) string {
	switch {
	case score > 0:
		return colorGreen
	case score < 0:
		return colorRed
	default:
		return colorCyan
	}
}

func formatScore(score float64) string {
	return colorize(scoreColor(score), fmt.Sprintf("%+.2f", score))
}
