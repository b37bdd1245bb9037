// Package rollback keeps compressed copies of the data file so an import or
// a KPI sync can be undone.
package rollback

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"fabdrop/internal/common"
	apperrors "fabdrop/pkg/errors"

	"github.com/sirupsen/logrus"
)

// Latest selects the newest backup in Get and Restore.
const Latest = "latest"

// Backup describes one saved copy of a file.
type Backup struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	// Size is the uncompressed size.
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	Location string `json:"location"`
}

// Manager writes backups to a directory and keeps the newest Keep of them.
type Manager struct {
	dir  string
	keep int
	now  func() time.Time
	log  logrus.FieldLogger
	mu   sync.Mutex
}

// NewManager returns a manager for dir. The directory is created on the first
// backup. keep <= 0 keeps every backup.
func NewManager(dir string, keep int, log logrus.FieldLogger) *Manager {
	return &Manager{dir: dir, keep: keep, now: time.Now, log: log}
}

// Dir returns the backup directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Create saves a gzip copy of path. A missing file is not backed up and
// returns nil, nil.
func (m *Manager) Create(path string) (*Backup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read "+path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dir, common.DirPermissionNormal); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create backup directory")
	}
	sum := checksum(data)
	stamp := m.now().UTC()
	backup := &Backup{
		ID:        fmt.Sprintf("%s-%s", stamp.Format("20060102-150405"), sum[:8]),
		Source:    path,
		Timestamp: stamp,
		Size:      int64(len(data)),
		Checksum:  sum,
	}
	location, err := common.JoinPath(m.dir, backup.ID+".gz")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "invalid backup path")
	}
	backup.Location = location

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Name = filepath.Base(path)
	zw.ModTime = stamp
	if _, err := zw.Write(data); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to compress backup")
	}
	if err := zw.Close(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to compress backup")
	}
	if err := common.WriteFileAtomic(location, buf.Bytes(), common.FilePermissionSecure); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to write backup")
	}
	if err := m.saveMetadata(backup); err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{"backup": backup.ID, "source": path, "bytes": backup.Size}).Debug("backup created")

	if err := m.prune(); err != nil {
		m.log.WithError(err).Warn("failed to prune old backups")
	}
	return backup, nil
}

// List returns the backups, newest first.
func (m *Manager) List() ([]*Backup, error) {
	files, err := filepath.Glob(filepath.Join(m.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	backups := make([]*Backup, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file) // #nosec G304 - globbed from the backup directory
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read "+file)
		}
		var b Backup
		if err := json.Unmarshal(data, &b); err != nil {
			m.log.WithError(err).WithField("file", file).Warn("ignoring unreadable backup metadata")
			continue
		}
		backups = append(backups, &b)
	}
	sort.Slice(backups, func(i, j int) bool {
		if backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].ID > backups[j].ID
		}
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// Get returns the backup with id, a unique id prefix, or Latest.
func (m *Manager) Get(id string) (*Backup, error) {
	backups, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(backups) == 0 {
		return nil, apperrors.NotFound("backup", id).WithSuggestions("Backups are written before each import and KPI sync")
	}
	if id == "" || id == Latest {
		return backups[0], nil
	}
	var match []*Backup
	for _, b := range backups {
		if b.ID == id {
			return b, nil
		}
		if strings.HasPrefix(b.ID, id) {
			match = append(match, b)
		}
	}
	switch len(match) {
	case 0:
		return nil, apperrors.NotFound("backup", id)
	case 1:
		return match[0], nil
	default:
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("backup id '%s' is ambiguous (%d matches)", id, len(match)))
	}
}

// Restore verifies backup id and writes its content to path. The file being
// replaced is backed up first.
func (m *Manager) Restore(id, path string) (*Backup, error) {
	backup, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	data, err := m.read(backup)
	if err != nil {
		return nil, err
	}
	if _, err := m.Create(path); err != nil {
		return nil, err
	}
	perm := os.FileMode(common.FilePermissionNormal)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := common.WriteFileAtomic(path, data, perm); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to restore "+path)
	}
	m.log.WithFields(logrus.Fields{"backup": backup.ID, "file": path}).Info("backup restored")
	return backup, nil
}

func (m *Manager) read(backup *Backup) ([]byte, error) {
	location, err := common.ValidatePath(backup.Location, m.dir)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "backup outside "+m.dir)
	}
	f, err := os.Open(location) // #nosec G304 - path is validated
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeNotFound, "backup file missing").
			WithContext("location", location)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "backup is not gzip data")
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "failed to decompress backup")
	}
	if sum := checksum(data); sum != backup.Checksum {
		return nil, apperrors.New(apperrors.ErrCodeMalformed, "backup checksum mismatch").
			WithContext("expected", backup.Checksum).
			WithContext("actual", sum)
	}
	return data, nil
}

func (m *Manager) saveMetadata(backup *Backup) error {
	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal backup metadata: %w", err)
	}
	path, err := common.JoinPath(m.dir, backup.ID+".json")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "invalid backup path")
	}
	if err := common.WriteFileAtomic(path, data, common.FilePermissionSecure); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to write backup metadata")
	}
	return nil
}

// prune removes backups beyond the newest keep. Callers hold m.mu.
func (m *Manager) prune() error {
	if m.keep <= 0 {
		return nil
	}
	backups, err := m.List()
	if err != nil {
		return err
	}
	for _, b := range backups[min(m.keep, len(backups)):] {
		for _, ext := range []string{".gz", ".json"} {
			path, err := common.JoinPath(m.dir, b.ID+ext)
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		m.log.WithField("backup", b.ID).Debug("backup pruned")
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
