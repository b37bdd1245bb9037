package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
)

var (
	// Check if output supports colors
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// Color functions
	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// ShowHeader displays a formatted header
func ShowHeader(title string) {
	width := 60
	if len(title)+4 > width {
		width = len(title) + 4
	}
	padding := (width - len(title) - 2) / 2

	fmt.Println("\n+" + strings.Repeat("-", width-2) + "+")
	fmt.Printf("|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", width-2-padding-len(title)),
	)
	fmt.Println("+" + strings.Repeat("-", width-2) + "+")
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	fmt.Printf("%s %s\n", ColorSuccess("SUCCESS:"), message)
}

// ShowWarning displays a warning message
func ShowWarning(message string) {
	fmt.Printf("%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	fmt.Printf("%s %s\n", ColorInfo("INFO:"), message)
}

// Suggestion returns a hint for failures that errors do not annotate
// themselves, mostly transport and tooling problems.
func Suggestion(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "az login"), strings.Contains(lower, "please run 'az"):
		return "Sign in with 'az login' and retry"
	case strings.Contains(lower, "executable file not found"):
		return "Install the Azure CLI or set auth.az_path in fabdrop.yaml"
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"):
		return "Check network access and the service URLs in fabdrop.yaml"
	case strings.Contains(lower, "permission denied"):
		return "Check file permissions for the data file and output directories"
	case strings.Contains(lower, "context deadline exceeded"):
		return "The service did not answer in time; increase polling.max_attempts or retry"
	default:
		return ""
	}
}
