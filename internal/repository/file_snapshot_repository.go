package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/noah-isme/gradebook/internal/models"
	"github.com/noah-isme/gradebook/pkg/storage"
)

// DatabaseFileName is the name of the JSON document on disk.
const DatabaseFileName = "db.json"

// FileSnapshotRepository stores the gradebook as an indented JSON file.
type FileSnapshotRepository struct {
	storage  *storage.LocalStorage
	filename string
}

// NewFileSnapshotRepository stores the snapshot at path.
func NewFileSnapshotRepository(path string) (*FileSnapshotRepository, error) {
	local, err := storage.NewLocalStorage(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return &FileSnapshotRepository{storage: local, filename: filepath.Base(path)}, nil
}

// ResolveDatabasePath picks where db.json lives. An explicit path wins; a
// db.json next to the executable makes the install portable; otherwise the
// file lives in dataDir.
func ResolveDatabasePath(explicit, dataDir string) string {
	if explicit != "" {
		return explicit
	}
	if exe, err := os.Executable(); err == nil {
		portable := filepath.Join(filepath.Dir(exe), DatabaseFileName)
		if info, err := os.Stat(portable); err == nil && !info.IsDir() {
			return portable
		}
	}
	return filepath.Join(dataDir, DatabaseFileName)
}

// Path returns the file backing the repository.
func (r *FileSnapshotRepository) Path() string {
	return r.storage.Path(r.filename)
}

// Load reads the snapshot. A missing file yields ErrSnapshotNotFound.
func (r *FileSnapshotRepository) Load(ctx context.Context) (*models.Database, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.storage.Read(r.filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return decodeSnapshot(data)
}

// Save replaces the file atomically.
func (r *FileSnapshotRepository) Save(ctx context.Context, db models.Database) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeSnapshot(db, true)
	if err != nil {
		return err
	}
	return r.storage.WriteAtomic(r.filename, data)
}
