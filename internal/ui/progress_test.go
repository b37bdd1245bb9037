package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     string
	}{
		{500 * time.Millisecond, "500ms"},
		{45 * time.Second, "45.0s"},
		{3*time.Minute + 7*time.Second, "3m7s"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.duration))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "...6789", truncate("0123456789", 7))
}

func TestSpinnerWithoutTerminal(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	s := NewSpinner("Waiting for refresh")
	s.out = &buf

	s.Start()
	s.UpdateMessage("still waiting")
	s.Stop(true, "Refresh completed")
	s.Stop(false, "ignored")

	out := buf.String()
	assert.Contains(t, out, "Waiting for refresh...\n")
	assert.Contains(t, out, "✓ Refresh completed")
	assert.NotContains(t, out, "ignored")
}

func TestSpinnerAnimates(t *testing.T) {
	original := supportsColor
	supportsColor = true
	defer func() { supportsColor = original }()

	var buf bytes.Buffer
	s := NewSpinner("Loading")
	s.out = &buf
	s.Start()
	time.Sleep(250 * time.Millisecond)
	s.Stop(false, "Load failed")

	out := buf.String()
	assert.Contains(t, out, "Loading")
	assert.Contains(t, out, "Load failed")
}
