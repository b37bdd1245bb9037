// Package observability builds the run logger and records pipeline steps.
package observability

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"fabdrop/internal/common"
	apperrors "fabdrop/pkg/errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	// Level is a logrus level name; Verbose forces debug.
	Level   string
	Verbose bool
	// File receives a copy of every line. Empty disables the run log.
	File   string
	Output io.Writer
}

// Logger is the process logger plus the run log it writes to.
type Logger struct {
	*logrus.Logger
	RunID string
	file  *os.File
}

// NewLogger creates a logger writing text lines to Output (stdout by
// default) and appending them to File.
func NewLogger(config LoggerConfig) (*Logger, error) {
	level := logrus.InfoLevel
	if config.Level != "" {
		parsed, err := logrus.ParseLevel(strings.ToLower(config.Level))
		if err != nil {
			return nil, apperrors.ConfigError("unknown log level "+config.Level, "logging.level")
		}
		level = parsed
	}
	if config.Verbose {
		level = logrus.DebugLevel
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	l := &Logger{Logger: logrus.New(), RunID: uuid.NewString()}
	if config.File != "" {
		if dir := filepath.Dir(config.File); dir != "." {
			if err := os.MkdirAll(dir, common.DirPermissionNormal); err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create log directory")
			}
		}
		f, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, common.FilePermissionNormal)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to open log file").
				WithContext("path", config.File)
		}
		l.file = f
		out = io.MultiWriter(out, f)
	}

	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
	return l, nil
}

// Run returns an entry tagged with the run id, so lines of one run can be
// found in an appended log file.
func (l *Logger) Run() *logrus.Entry {
	return l.WithField("run", l.RunID[:8])
}

// Close closes the run log.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Discard returns a logger that writes nowhere.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
