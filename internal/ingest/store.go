package ingest

import (
	"fmt"
	"os"

	"fabdrop/internal/common"
	"fabdrop/internal/dataset"
	"fabdrop/internal/literal"
	"fabdrop/internal/rollback"
	apperrors "fabdrop/pkg/errors"
)

// PreviewLength is how much of the new declaration a dry run prints.
const PreviewLength = 2000

// Backuper saves the current file before Write replaces it.
// *rollback.Manager implements it.
type Backuper interface {
	Create(path string) (*rollback.Backup, error)
}

// Store reads and rewrites the dataset declaration of one data file.
type Store struct {
	Path    string
	Catalog *Catalog
	Backups Backuper
}

// NewStore creates a store for path.
func NewStore(path string, catalog *Catalog) *Store {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Store{Path: path, Catalog: catalog}
}

// Read returns the file content.
func (s *Store) Read() ([]byte, error) {
	buf, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("data file", s.Path).
				WithSuggestions("Pass --data-js or set data_file in fabdrop.yaml")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read "+s.Path)
	}
	return buf, nil
}

// Load reads the file and parses the current dataset.
func (s *Store) Load() (*dataset.Document, []byte, error) {
	buf, err := s.Read()
	if err != nil {
		return nil, nil, err
	}
	doc, _, err := literal.ReadDocument(buf, s.Catalog.Variable, s.Catalog.VersionKey)
	if err != nil {
		return nil, buf, apperrors.Wrap(err, apperrors.GetErrorCode(err),
			fmt.Sprintf("failed to read %s from %s", s.Catalog.Variable, s.Path))
	}
	return doc, buf, nil
}

// Render returns buf with the declaration replaced by doc.
func (s *Store) Render(buf []byte, doc *dataset.Document) ([]byte, error) {
	return literal.Apply(buf, s.Catalog.Variable, literal.Serialize(doc, s.Catalog.Layout()))
}

// Write persists content. Nothing is written unless the whole new buffer
// was produced.
func (s *Store) Write(content []byte) error {
	if s.Backups != nil {
		if _, err := s.Backups.Create(s.Path); err != nil {
			return apperrors.Wrap(err, apperrors.GetErrorCode(err), "failed to back up "+s.Path)
		}
	}
	perm := os.FileMode(common.FilePermissionNormal)
	if info, err := os.Stat(s.Path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := common.WriteFileAtomic(s.Path, content, perm); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to write "+s.Path)
	}
	return nil
}

// Update renders doc into the current file and writes it.
func (s *Store) Update(doc *dataset.Document) error {
	buf, err := s.Read()
	if err != nil {
		return err
	}
	out, err := s.Render(buf, doc)
	if err != nil {
		return err
	}
	return s.Write(out)
}

// Preview returns up to PreviewLength characters of content starting at
// the declaration, with a note of how much was cut.
func (s *Store) Preview(content []byte) string {
	span, err := literal.Locate(content, s.Catalog.Variable)
	if err != nil {
		return ""
	}
	rest := []rune(string(content[span.DeclStart:]))
	if len(rest) <= PreviewLength {
		return string(rest)
	}
	return string(rest[:PreviewLength]) + fmt.Sprintf("\n... (%d more characters)", len(rest)-PreviewLength)
}
