package observability

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "fabdrop/pkg/errors"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesToOutputAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "fabdrop.log")

	logger, err := NewLogger(LoggerConfig{Level: "info", File: path, Output: &buf})
	require.NoError(t, err)
	logger.WithField("table", "dim_Date").Info("table loaded")
	logger.Debug("hidden")
	require.NoError(t, logger.Close())

	assert.Contains(t, buf.String(), "table loaded")
	assert.Contains(t, buf.String(), "table=dim_Date")
	assert.NotContains(t, buf.String(), "hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(data))

	// A second run appends.
	logger, err = NewLogger(LoggerConfig{File: path, Output: &bytes.Buffer{}})
	require.NoError(t, err)
	logger.Run().Info("second run")
	require.NoError(t, logger.Close())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "table loaded")
	assert.Contains(t, string(data), "run="+logger.RunID[:8])
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		config  LoggerConfig
		want    logrus.Level
		wantErr bool
	}{
		{"default", LoggerConfig{}, logrus.InfoLevel, false},
		{"warn", LoggerConfig{Level: "WARN"}, logrus.WarnLevel, false},
		{"verbose wins", LoggerConfig{Level: "error", Verbose: true}, logrus.DebugLevel, false},
		{"unknown", LoggerConfig{Level: "loud"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Output = &bytes.Buffer{}
			logger, err := NewLogger(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
			assert.NoError(t, logger.Close())
		})
	}
}

func TestRecorder(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := NewRecorder(log)
	clock := time.Date(2026, 2, 24, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	require.NoError(t, r.Run("Export data", func() (string, error) { return "6 tables", nil }))
	r.Skip("Deploy report", "--data-only")
	boom := errors.New("boom")
	err := r.Run("Refresh", func() (string, error) { return "", boom })
	assert.Same(t, boom, err)

	steps := r.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, Step{Number: 1, Name: "Export data", Status: StepDone, Detail: "6 tables", Duration: time.Second}, steps[0])
	assert.Equal(t, StepSkipped, steps[1].Status)
	assert.Equal(t, "--data-only", steps[1].Detail)
	assert.Equal(t, StepFailed, steps[2].Status)
	assert.Equal(t, 3, steps[2].Number)
	assert.Equal(t, 2*time.Second, r.Total())

	assert.Equal(t, "STEP 1: Export data", hook.AllEntries()[0].Message)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Info("nothing")
	assert.NotNil(t, log.Out)
}
