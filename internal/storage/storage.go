package storage

import "io"

// Kind selects the storage area for a saved image.
type Kind string

const (
	KindOriginal Kind = "originals"
	KindLabel    Kind = "labels"
	KindStitched Kind = "stitched"
)

// FileInfo describes an incoming file.
type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Storage persists pipeline images. Save returns a storage-relative path
// usable with Open, ReadFile, Path, and Delete.
type Storage interface {
	Save(kind Kind, data []byte, info FileInfo) (string, error)
	Open(path string) (io.ReadSeekCloser, error)
	ReadFile(path string) ([]byte, error)
	Delete(path string) error
	Path(path string) string
}
