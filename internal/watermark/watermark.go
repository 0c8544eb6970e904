// Package watermark persists the last successful sync time per owner in a small JSON file.
package watermark

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
)

// FileName is the default file name inside the client config directory.
const FileName = "watermarks.json"

// File stores owner → timestamp in a JSON object. Safe for concurrent use within one process.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a store backed by path. The file is created on first Set.
func NewFile(path string) *File {
	return &File{path: path}
}

// Get returns the zero time when the owner has never synced.
func (f *File) Get(ownerID uuid.UUID) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return time.Time{}, err
	}
	return m[ownerID.String()], nil
}

// Set records ts for the owner and rewrites the file atomically.
func (f *File) Set(ownerID uuid.UUID, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return err
	}
	m[ownerID.String()] = ts.UTC()
	return f.save(m)
}

// Reset forgets the owner's watermark, forcing a full pull next time.
func (f *File) Reset(ownerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := m[ownerID.String()]; !ok {
		return nil
	}
	delete(m, ownerID.String())
	return f.save(m)
}

func (f *File) load() (map[string]time.Time, error) {
	m := map[string]time.Time{}
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("watermark: read: %w", err)
	}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("watermark: decode %s: %w", f.path, err)
	}
	return m, nil
}

func (f *File) save(m map[string]time.Time) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("watermark: encode: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("watermark: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".watermarks-*")
	if err != nil {
		return fmt.Errorf("watermark: temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("watermark: write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("watermark: chmod: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("watermark: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("watermark: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("watermark: rename: %w", err)
	}
	return nil
}
