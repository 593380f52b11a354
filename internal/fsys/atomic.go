package fsys

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// AtomicWriter writes files atomically by writing to a temp file in the same
// directory and renaming it over the destination. Used for the index
// snapshot (§4.4) and for the rebuilt blob/index pair written by Vacuum.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter returns an AtomicWriter backed by fs.
func NewAtomicWriter(fs FS) *AtomicWriter {
	return &AtomicWriter{fs: fs}
}

// Write copies r to a temp file next to path and renames it over path. On
// any failure the temp file is removed and the destination is left
// untouched. No fsync is performed: durability across power loss is out of
// scope (see pkg/bcache's flush-discipline notes).
func (w *AtomicWriter) Write(path string, r io.Reader, perm os.FileMode) error {
	if path == "" {
		return fmt.Errorf("fsys: invalid path %q", path)
	}

	tmpPath := path + ".tmp"

	tmpFile, err := w.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("fsys: create temp file %q: %w", tmpPath, err)
	}

	cleanup := func() error {
		closeErr := tmpFile.Close()
		removeErr := w.fs.Remove(tmpPath)
		if removeErr != nil && errors.Is(removeErr, os.ErrNotExist) {
			removeErr = nil
		}

		return errors.Join(closeErr, removeErr)
	}

	if _, err := io.Copy(tmpFile, r); err != nil {
		return errors.Join(fmt.Errorf("fsys: write temp file %q: %w", tmpPath, err), cleanup())
	}

	if err := tmpFile.Close(); err != nil {
		_ = w.fs.Remove(tmpPath)

		return fmt.Errorf("fsys: close temp file %q: %w", tmpPath, err)
	}

	if err := w.fs.Rename(tmpPath, path); err != nil {
		_ = w.fs.Remove(tmpPath)

		return fmt.Errorf("fsys: rename %q to %q: %w", tmpPath, path, err)
	}

	return nil
}
