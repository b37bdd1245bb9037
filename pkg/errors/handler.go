package errors

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Exit codes returned by Handler.Handle.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// Handler renders errors for the terminal and picks the process exit code.
type Handler struct {
	out     io.Writer
	verbose bool
	// LogFile is mentioned in critical errors so users can attach it.
	LogFile string
}

// NewHandler creates a handler writing to out.
func NewHandler(out io.Writer, verbose bool) *Handler {
	return &Handler{out: out, verbose: verbose}
}

// Handle prints err and returns the exit code for it.
func (h *Handler) Handle(err error) int {
	if err == nil {
		return ExitOK
	}
	fmt.Fprint(h.out, h.Render(err))
	return ExitFailure
}

// Render formats err as the user-facing abort message: the error kind, a
// short diagnostic, any remote context, and suggestions.
func (h *Handler) Render(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = Wrap(err, ErrCodeInternal, err.Error())
		appErr.Cause = nil
	}

	var b strings.Builder
	header := fmt.Sprintf("[%s] %s: %s", appErr.Code, appErr.Code.Kind(), appErr.Message)
	b.WriteString("\n")
	b.WriteString(severityColor(appErr.Severity).Sprint(header))
	b.WriteString("\n")

	if appErr.Cause != nil {
		fmt.Fprintf(&b, "  cause: %v\n", appErr.Cause)
	}

	if len(appErr.Context) > 0 {
		keys := make([]string, 0, len(appErr.Context))
		for k := range appErr.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "body" && !h.verbose {
				fmt.Fprintf(&b, "  %s: %s\n", k, truncateString(fmt.Sprint(appErr.Context[k]), 300))
				continue
			}
			fmt.Fprintf(&b, "  %s: %v\n", k, appErr.Context[k])
		}
	}

	if len(appErr.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for i, suggestion := range appErr.Suggestions {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, suggestion)
		}
	}

	if appErr.Severity == SeverityCritical && h.LogFile != "" {
		fmt.Fprintf(&b, "\nSee %s for the full run log.\n", h.LogFile)
	}

	if h.verbose && appErr.Stack != "" {
		b.WriteString("\nStack:\n")
		b.WriteString(appErr.Stack)
	}

	return b.String()
}

func severityColor(s ErrorSeverity) *color.Color {
	switch s {
	case SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case SeverityError:
		return color.New(color.FgHiRed)
	case SeverityWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}
