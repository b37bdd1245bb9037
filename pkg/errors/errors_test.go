package errors

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "basic error",
			err:      New(ErrCodeNotFound, "workspace missing"),
			expected: "[FDE1001] ERROR: workspace missing",
		},
		{
			name: "error with suggestions",
			err: New(ErrCodeNotFound, "workspace missing").
				WithSuggestions("Check the name", "Run az login"),
			expected: "[FDE1001] ERROR: workspace missing\nSuggestions:\n  1. Check the name\n  2. Run az login",
		},
		{
			name: "error with context",
			err: New(ErrCodeNotFound, "workspace missing").
				WithContext("workspace", "scm-dev"),
			expected: "[FDE1001] ERROR: workspace missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := fmt.Errorf("connection refused")
	inner := New(ErrCodeRemoteRejected, "load failed").WithContext("table", "fact_Spend")

	appErr := Wrap(baseErr, ErrCodeInternal, "write failed")
	require.NotNil(t, appErr)
	assert.Equal(t, baseErr, appErr.Cause)
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))

	outer := Wrap(inner, ErrCodeRemoteRejected, "pipeline step failed")
	assert.Equal(t, "fact_Spend", outer.Context["table"])
	assert.True(t, HasCode(fmt.Errorf("step: %w", outer), ErrCodeRemoteRejected))
	assert.False(t, HasCode(baseErr, ErrCodeRemoteRejected))
	assert.Equal(t, ErrCodeInternal, GetErrorCode(baseErr))
}

func TestAppErrorIsNonRetriable(t *testing.T) {
	var err error = AuthError("https://api.fabric.microsoft.com", fmt.Errorf("az login required"))
	_, ok := err.(interface{ NonRetriable() })
	assert.True(t, ok)
}

func TestConstructors(t *testing.T) {
	nf := NotFound("dataset", "SLS MBR")
	assert.Equal(t, ErrCodeNotFound, nf.Code)
	assert.Contains(t, nf.Message, "'SLS MBR'")

	rr := RemoteRejected("table load", 403, "forbidden")
	assert.Equal(t, 403, rr.Context["status"])
	assert.NotEmpty(t, rr.Suggestions)

	m := Malformed("unbalanced braces", 12)
	assert.Equal(t, 12, m.Context["offset"])
	assert.NotContains(t, Malformed("bad", -1).Context, "offset")

	assert.Equal(t, "RemoteRejected", ErrCodeRemoteRejected.Kind())
	assert.Equal(t, "Unknown", ErrorCode("X").Kind())
}

func TestRetryLogic(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	config := &RetryConfig{
		MaxRetries:   maxAttempts - 1,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		RetryableError: func(err error) bool {
			return true
		},
	}

	err := Retry(context.Background(), config, func(ctx context.Context) error {
		attempts++
		if attempts < maxAttempts {
			return New(ErrCodeAuth, "token command failed").AsRecoverable()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, maxAttempts, attempts)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func(ctx context.Context) error {
		attempts++
		return New(ErrCodeConfigInvalid, "bad flag")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPoll(t *testing.T) {
	cfg := PollConfig{Interval: time.Millisecond, MaxAttempts: 4}

	t.Run("succeeds", func(t *testing.T) {
		calls := 0
		err := Poll(context.Background(), "refresh", cfg, func(ctx context.Context, attempt int) (bool, error) {
			calls++
			return attempt == 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("terminal failure", func(t *testing.T) {
		failed := New(ErrCodeRemoteRejected, "refresh failed")
		err := Poll(context.Background(), "refresh", cfg, func(ctx context.Context, attempt int) (bool, error) {
			return false, failed
		})
		assert.Equal(t, failed, err)
	})

	t.Run("budget exhausted", func(t *testing.T) {
		calls := 0
		err := Poll(context.Background(), "refresh", cfg, func(ctx context.Context, attempt int) (bool, error) {
			calls++
			return false, nil
		})
		require.Error(t, err)
		assert.Equal(t, 4, calls)
		assert.Equal(t, ErrCodeRemoteRejected, GetErrorCode(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Poll(ctx, "refresh", PollConfig{InitialWait: time.Second, MaxAttempts: 1}, func(ctx context.Context, attempt int) (bool, error) {
			return true, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHandlerRender(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	h := NewHandler(&out, false)

	code := h.Handle(RemoteRejected("update from git", 409, "conflict").
		WithContext("workspace", "scm-dev"))
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out.String(), "[FDE2001] RemoteRejected: update from git rejected with status 409")
	assert.Contains(t, out.String(), "workspace: scm-dev")
	assert.Contains(t, out.String(), "body: conflict")

	out.Reset()
	assert.Equal(t, ExitFailure, h.Handle(fmt.Errorf("plain failure")))
	assert.Contains(t, out.String(), "Internal: plain failure")

	assert.Equal(t, ExitOK, h.Handle(nil))
}
