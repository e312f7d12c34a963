package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidDocumentID возвращается, если id документа выводит путь за root.
var ErrInvalidDocumentID = errors.New("invalid document id")

// ============================================================
// File Storage
// ============================================================

// FileStorage хранит загруженные IFC-файлы и результаты экспорта,
// по каталогу на каждый сохраненный документ.
type FileStorage struct {
	root string
}

func NewFileStorage(root string) *FileStorage {
	return &FileStorage{root: root}
}

// DocumentDir возвращает каталог документа; он обязан лежать прямо под root.
func (s *FileStorage) DocumentDir(docID string) (string, error) {
	if docID == "" || docID != filepath.Base(docID) || docID == "." || docID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentID, docID)
	}
	dir := filepath.Join(s.root, docID)
	rel, err := filepath.Rel(s.root, dir)
	if err != nil || rel != docID {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentID, docID)
	}
	return dir, nil
}

// SourcePath - где хранится загруженный файл документа. Из filename
// берется только базовое имя.
func (s *FileStorage) SourcePath(docID, filename string) (string, error) {
	dir, err := s.DocumentDir(docID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "source", safeName(filename, "model.ifc")), nil
}

func (s *FileStorage) ExportsDir(docID string) (string, error) {
	dir, err := s.DocumentDir(docID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "exports"), nil
}

// ExportPath возвращает файл экспорта; расширение всегда .ifc.
func (s *FileStorage) ExportPath(docID, name string) (string, error) {
	dir, err := s.ExportsDir(docID)
	if err != nil {
		return "", err
	}
	base := safeName(name, "export.ifc")
	base = strings.TrimSuffix(base, filepath.Ext(base)) + ".ifc"
	return filepath.Join(dir, base), nil
}

func (s *FileStorage) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// SaveFile пишет data в target, создавая каталог.
func (s *FileStorage) SaveFile(target string, data []byte) error {
	if err := s.EnsureDir(filepath.Dir(target)); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}

func (s *FileStorage) Remove(docID string) error {
	dir, err := s.DocumentDir(docID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func safeName(name, def string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return def
	}
	return base
}
