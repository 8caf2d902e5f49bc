package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage stores images under a base directory, one subdirectory per
// Kind, with uuid filenames so original names never collide.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	for _, kind := range []Kind{KindOriginal, KindLabel, KindStitched} {
		if err := os.MkdirAll(filepath.Join(basePath, string(kind)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (ls *LocalStorage) Save(kind Kind, data []byte, info FileInfo) (string, error) {
	ext := strings.ToLower(filepath.Ext(info.Filename))
	if ext == "" {
		ext = ".png"
	}

	relPath := filepath.Join(string(kind), fmt.Sprintf("%s%s", uuid.New().String(), ext))
	fullPath := filepath.Join(ls.basePath, relPath)

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return relPath, nil
}

func (ls *LocalStorage) Open(path string) (io.ReadSeekCloser, error) {
	fullPath, err := ls.resolve(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (ls *LocalStorage) ReadFile(path string) ([]byte, error) {
	fullPath, err := ls.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (ls *LocalStorage) Delete(path string) error {
	fullPath, err := ls.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Path returns the absolute filesystem path for a stored file. The path is
// informational (responses, diagnostics); content access goes through Open
// and ReadFile.
func (ls *LocalStorage) Path(path string) string {
	full, err := ls.resolve(path)
	if err != nil {
		return ""
	}
	return full
}

func (ls *LocalStorage) resolve(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") || filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("invalid path")
	}
	return filepath.Join(ls.basePath, cleanPath), nil
}
