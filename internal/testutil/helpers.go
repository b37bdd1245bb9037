package testutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fabdrop/internal/common"
	"fabdrop/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// TestHelper provides common test utilities
type TestHelper struct {
	t *testing.T
}

// NewTestHelper creates a new test helper
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// WriteFile writes content to a file in the given directory
func (h *TestHelper) WriteFile(dir, filename, content string) string {
	h.t.Helper()
	path := filepath.Join(dir, filename)

	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal); err != nil {
		h.t.Fatalf("Failed to create directories: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), common.FilePermissionNormal); err != nil {
		h.t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of path or fails the test
func (h *TestHelper) ReadFile(path string) string {
	h.t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		h.t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

// DataFile writes the sample data.js into a temp dir and returns its path
func (h *TestHelper) DataFile() string {
	return h.WriteFile(h.t.TempDir(), "data.js", SampleDataJS)
}

// CaptureOutput captures stdout and stderr during function execution
func (h *TestHelper) CaptureOutput(f func()) (stdout, stderr string) {
	oldStdout, oldStderr := os.Stdout, os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout, os.Stderr = wOut, wErr

	outc := make(chan string)
	errc := make(chan string)
	go func() { b, _ := io.ReadAll(rOut); outc <- string(b) }()
	go func() { b, _ := io.ReadAll(rErr); errc <- string(b) }()

	defer func() {
		os.Stdout, os.Stderr = oldStdout, oldStderr
	}()
	f()

	wOut.Close()
	wErr.Close()
	return <-outc, <-errc
}

// DiscardLogger returns a logger that writes nowhere
func DiscardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.DebugLevel)
	return log
}

// RecordingLogger returns a silent logger plus a hook capturing its entries
func RecordingLogger() (*logrus.Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

// TestConfig returns a configuration with fast polling for tests
func TestConfig() *models.Config {
	cfg := models.DefaultConfig()
	cfg.Workspace = "scm-dev"
	cfg.Polling = models.PollingConfig{
		Interval:    time.Millisecond,
		MaxAttempts: 5,
		InitialWait: 0,
	}
	cfg.Auth.Provider = "env"
	return cfg
}
