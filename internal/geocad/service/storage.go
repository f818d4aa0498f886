package service

import (
	"fmt"
	"os"
	"path/filepath"
)

// ============================================================
// File Storage
// ============================================================

type FileStorage struct {
	root string
}

func NewFileStorage(root string) *FileStorage {
	return &FileStorage{root: root}
}

func (s *FileStorage) DrawingDir(drawingID string) string {
	return filepath.Join(s.root, drawingID)
}

// SourcePath - загруженный CAD-файл.
func (s *FileStorage) SourcePath(drawingID string) string {
	return filepath.Join(s.DrawingDir(drawingID), "source.dxf")
}

// RegeneratedPath - CAD-файл, пересобранный из сохранённых записей.
func (s *FileStorage) RegeneratedPath(drawingID string) string {
	return filepath.Join(s.DrawingDir(drawingID), "regenerated.dxf")
}

func (s *FileStorage) EnsureDir(drawingID string) error {
	if err := os.MkdirAll(s.DrawingDir(drawingID), 0o755); err != nil {
		return fmt.Errorf("mkdir drawing dir: %w", err)
	}
	return nil
}

// SaveFile пишет во временный файл и переименовывает, чтобы читатели не видели
// частично записанный файл.
func (s *FileStorage) SaveFile(drawingID, target string, data []byte) error {
	if err := s.EnsureDir(drawingID); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(target), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(target), err)
	}
	return nil
}

func (s *FileStorage) Remove(drawingID string) error {
	if err := os.RemoveAll(s.DrawingDir(drawingID)); err != nil {
		return fmt.Errorf("remove drawing dir: %w", err)
	}
	return nil
}
