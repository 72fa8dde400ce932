package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

/*
FileStore serves objects from a local directory, one file per object. Reads
go through os.File seeks rather than loading whole objects, which is what
makes multi-gigabyte octree files servable on a laptop.
*/

////////////////////////////////////////////////////////////////////////////////

// FileStore is a storage provider backed by a local directory.
type FileStore struct {
	root string
}

// NewFileStore creates a new FileStore rooted at the given directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Put stores an object as a file in the root directory.
func (f *FileStore) Put(_ context.Context, object string, data []byte) error {
	if err := os.WriteFile(filepath.Join(f.root, object), data, 0600); err != nil {
		return fmt.Errorf("write failure: %w", err)
	}
	return nil
}

// GetRange reads a byte range from an object file.
func (f *FileStore) GetRange(_ context.Context, object string, offset int64, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, ErrInvalidRange
	}
	file, err := os.Open(filepath.Join(f.root, object))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open failure: %w", err)
	}
	defer file.Close()
	buf := make([]byte, length)
	if _, err := file.ReadAt(buf, offset); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrInvalidRange
		}
		return nil, fmt.Errorf("read failure: %w", err)
	}
	return buf, nil
}

// Delete removes an object file.
func (f *FileStore) Delete(_ context.Context, object string) error {
	if err := os.Remove(filepath.Join(f.root, object)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("deletion failure: %w", err)
	}
	return nil
}

func (f *FileStore) String() string {
	return fmt.Sprintf("file(%s)", f.root)
}
