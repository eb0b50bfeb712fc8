package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileName is the slot file inside the CLI config directory.
const FileName = "current_profile_id"

// FileStorage keeps the slot in a small file.
type FileStorage struct{ path string }

// NewFileStorage stores the slot as dir/current_profile_id.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{path: filepath.Join(dir, FileName)}
}

// Load returns the stored value, or "" when nothing is stored.
func (f *FileStorage) Load() (string, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Save writes v, creating the directory if needed.
func (f *FileStorage) Save(v string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.path, []byte(v), 0o600)
}

// Clear removes the slot. Clearing an empty slot is not an error.
func (f *FileStorage) Clear() error {
	err := os.Remove(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
