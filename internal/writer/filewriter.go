// Package writer exposes sinks for serialized hive images.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileWriter writes hive bytes to Path.
//
// With Exclusive set the file is created with O_EXCL and the write fails if
// Path already exists. Otherwise the image goes to a temp sibling that is
// renamed over Path.
type FileWriter struct {
	Path      string
	Exclusive bool
	// FullSync requests a cache-flushing sync where the platform has one.
	FullSync bool
}

// WriteHive writes buf and syncs it to stable storage.
func (w *FileWriter) WriteHive(buf []byte) error {
	if w.Exclusive {
		return w.writeExclusive(buf)
	}
	return w.writeReplace(buf)
}

func (w *FileWriter) writeExclusive(buf []byte) error {
	f, err := os.OpenFile(w.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := w.fill(f, buf); err != nil {
		_ = f.Close()
		_ = os.Remove(w.Path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(w.Path)
		return fmt.Errorf("close %s: %w", w.Path, err)
	}
	return nil
}

func (w *FileWriter) writeReplace(buf []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(w.Path), ".offreg-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := w.fill(tmpFile, buf); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	return Replace(tmpPath, w.Path)
}

func (w *FileWriter) fill(f *os.File, buf []byte) error {
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("write %s: %w", f.Name(), err)
	}
	if err := syncFile(f, w.FullSync); err != nil {
		return fmt.Errorf("sync %s: %w", f.Name(), err)
	}
	return nil
}

// Replace renames src over dst. src is removed if the rename fails.
func Replace(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		_ = os.Remove(src)
		return fmt.Errorf("rename %s: %w", filepath.Base(src), err)
	}
	return nil
}
