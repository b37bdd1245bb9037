// Package artifact holds generated item definitions as in-memory file trees.
package artifact

import (
	"bytes"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"fabdrop/internal/common"
	apperrors "fabdrop/pkg/errors"

	"github.com/google/uuid"
)

// idPrefix scopes deterministic ids to this dataset's items.
const idPrefix = "slsmbr:"

// ID returns a name-based (version 5) UUID for key. The same key always
// yields the same id, so redeploys update items instead of duplicating them.
func ID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(idPrefix+key)).String()
}

// FileSet maps slash-separated relative paths to file contents.
type FileSet map[string][]byte

// AddString stores text at p.
func (fs FileSet) AddString(p, content string) {
	fs[path.Clean(p)] = []byte(content)
}

// AddJSON stores v as two-space indented JSON without HTML escaping.
func (fs FileSet) AddJSON(p string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode "+p)
	}
	fs[path.Clean(p)] = bytes.TrimRight(buf.Bytes(), "\n")
	return nil
}

// Paths returns every path in lexical order.
func (fs FileSet) Paths() []string {
	paths := make([]string, 0, len(fs))
	for p := range fs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Under returns a copy with every path placed below dir.
func (fs FileSet) Under(dir string) FileSet {
	dir = strings.Trim(dir, "/")
	out := make(FileSet, len(fs))
	for p, content := range fs {
		if dir == "" {
			out[p] = content
			continue
		}
		out[dir+"/"+p] = content
	}
	return out
}

// Merge copies other into fs, replacing equal paths.
func (fs FileSet) Merge(other FileSet) {
	for p, content := range other {
		fs[p] = content
	}
}

// Size is the total content length in bytes.
func (fs FileSet) Size() int {
	n := 0
	for _, content := range fs {
		n += len(content)
	}
	return n
}

// Write materializes the set below dir and returns the written file paths.
// Paths that would escape dir are rejected before anything is written.
func (fs FileSet) Write(dir string) ([]string, error) {
	targets := make(map[string]string, len(fs))
	for _, p := range fs.Paths() {
		target, err := common.JoinPath(dir, p)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "invalid artifact path").
				WithContext("path", p)
		}
		targets[p] = target
	}

	written := make([]string, 0, len(fs))
	for _, p := range fs.Paths() {
		target := targets[p]
		if err := os.MkdirAll(filepath.Dir(target), common.DirPermissionNormal); err != nil {
			return written, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create directory").
				WithContext("path", filepath.Dir(target))
		}
		if err := common.WriteFileAtomic(target, fs[p], common.FilePermissionNormal); err != nil {
			return written, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to write artifact").
				WithContext("path", target)
		}
		written = append(written, target)
	}
	return written, nil
}
