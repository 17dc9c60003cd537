package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// mountMarker is laid down by Format. A directory without it is treated as
// an unformatted medium, mirroring a filesystem superblock check.
const mountMarker = ".formatted"

// DirStore adapts a host directory to the Storage capability. It is the
// production medium on Linux hosts; the record file and the marker are the
// only content it manages.
type DirStore struct {
	root    string
	mounted bool
}

// NewDirStore creates a DirStore rooted at path. Nothing is touched until
// Mount or Format is called.
func NewDirStore(path string) *DirStore {
	return &DirStore{root: path}
}

// Mount verifies the directory exists and carries the format marker.
func (d *DirStore) Mount() error {
	info, err := os.Stat(d.root)
	if err != nil {
		return fmt.Errorf("storage root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", d.root)
	}
	if _, err := os.Stat(filepath.Join(d.root, mountMarker)); err != nil {
		return fmt.Errorf("storage root %s is not formatted: %w", d.root, err)
	}
	d.mounted = true
	return nil
}

// Unmount releases the medium.
func (d *DirStore) Unmount() {
	d.mounted = false
}

// Format re-initializes the medium: the directory is recreated empty and
// marked. All previous content is destroyed.
func (d *DirStore) Format() error {
	if err := os.RemoveAll(d.root); err != nil {
		return fmt.Errorf("clear storage root: %w", err)
	}
	if err := os.MkdirAll(d.root, 0o700); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d.root, mountMarker), nil, 0o600); err != nil {
		return fmt.Errorf("write format marker: %w", err)
	}
	return nil
}

// ReadFile returns the whole content of a named file.
func (d *DirStore) ReadFile(name string) ([]byte, error) {
	if !d.mounted {
		return nil, fmt.Errorf("storage not mounted")
	}
	return os.ReadFile(filepath.Join(d.root, name))
}

// WriteFile replaces the whole content of a named file.
func (d *DirStore) WriteFile(name string, data []byte) error {
	if !d.mounted {
		return fmt.Errorf("storage not mounted")
	}
	return os.WriteFile(filepath.Join(d.root, name), data, 0o600)
}
