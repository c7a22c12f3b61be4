// Package store provides crash-safe JSON record persistence.
//
// Writes go to a temporary file in the destination directory and are renamed
// into place, so a reader at any moment observes either the prior or the new
// complete record, never a torn one. Readers of a single committed record
// therefore need no lock; read-modify-write sequences must be wrapped in a
// filelock by the caller.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/crew/internal/errors"
)

// WriteJSON atomically writes record to path as indented JSON.
// Parent directories are created as needed.
func WriteJSON(path string, record any) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	// The temp file must live in the same directory as the target so the
	// rename stays within one filesystem and is atomic.
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// ReadJSON reads the record at path into out. Returns errors.ErrNotFound if
// the file is absent and errors.ErrCorrupt if the content cannot be decoded.
func ReadJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, errors.ErrNotFound)
		}
		return fmt.Errorf("read record: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %v", path, errors.ErrCorrupt, err)
	}
	return nil
}

// Exists reports whether a record is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
