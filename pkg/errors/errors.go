package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Lookup and parse errors (1xxx)
	ErrCodeNotFound  ErrorCode = "FDE1001"
	ErrCodeMalformed ErrorCode = "FDE1002"

	// Remote service errors (2xxx)
	ErrCodeRemoteRejected ErrorCode = "FDE2001"

	// Row/column coercion notices (3xxx). Reported, never returned as failures.
	ErrCodeValidationSkipped ErrorCode = "FDE3001"

	// Credential errors (4xxx)
	ErrCodeAuth ErrorCode = "FDE4001"

	// Configuration and user input errors (5xxx)
	ErrCodeConfigInvalid ErrorCode = "FDE5001"

	// System errors (9xxx)
	ErrCodeInternal ErrorCode = "FDE9001"
)

// kindNames maps codes to the short kind shown to users.
var kindNames = map[ErrorCode]string{
	ErrCodeNotFound:          "NotFound",
	ErrCodeMalformed:         "Malformed",
	ErrCodeRemoteRejected:    "RemoteRejected",
	ErrCodeValidationSkipped: "ValidationSkipped",
	ErrCodeAuth:              "AuthError",
	ErrCodeConfigInvalid:     "ConfigInvalid",
	ErrCodeInternal:          "Internal",
}

// Kind returns the short name of an error code
func (c ErrorCode) Kind() string {
	if name, ok := kindNames[c]; ok {
		return name
	}
	return "Unknown"
}

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run cannot continue at all
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NonRetriable marks the error as final for azcore's retry and bearer token
// policies, which then return it unwrapped.
func (e *AppError) NonRetriable() {}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit its context
	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// NotFound reports a missing named thing: an assignment, a remote item or a local file.
func NotFound(what, name string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s '%s' not found", what, name)).
		WithContext("kind", what).
		WithContext("name", name)
}

// Malformed reports input that cannot be parsed. offset is -1 when unknown.
func Malformed(message string, offset int) *AppError {
	err := New(ErrCodeMalformed, message)
	if offset >= 0 {
		_ = err.WithContext("offset", offset)
	}
	return err
}

// RemoteRejected reports a non-success answer from a remote service.
func RemoteRejected(operation string, status int, body string) *AppError {
	msg := fmt.Sprintf("%s rejected", operation)
	if status > 0 {
		msg = fmt.Sprintf("%s rejected with status %d", operation, status)
	}
	err := New(ErrCodeRemoteRejected, msg).
		WithContext("operation", operation).
		WithContext("status", status)
	if body != "" {
		_ = err.WithContext("body", truncateString(body, 2000))
	}
	if status == 401 || status == 403 {
		_ = err.WithSuggestions(
			"Run 'az login' and retry",
			"Check that your account has access to the workspace",
		)
	}
	return err
}

// AuthError reports a failure to obtain an access token.
func AuthError(resource string, cause error) *AppError {
	err := New(ErrCodeAuth, fmt.Sprintf("could not obtain a token for %s", resource)).
		WithContext("resource", resource).
		WithSuggestions(
			"Run 'az login' to refresh the Azure CLI session",
			"Or store a token with 'fabdrop auth set'",
		)
	err.Cause = cause
	return err
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'fabdrop config init' to reconfigure",
		)
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if ae, ok := err.(*AppError); ok && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
