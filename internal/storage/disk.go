package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	tempSuffix = ".part"
)

// dirReady runs after a destination directory is ensured and before the rename into it.
// Tests replace it to remove the directory in that window.
var dirReady = func(string) {}

// EnsureDir creates dir and any missing parents. It reports whether the directory was newly created.
func EnsureDir(dir string) (bool, error) {
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%w: %s is a file", ErrPathConflict, dir)
		}
		return false, nil
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		if isPathConflict(err) {
			return false, fmt.Errorf("%w: create dir %s: %w", ErrPathConflict, dir, err)
		}
		return false, fmt.Errorf("create dir %s: %w", dir, err)
	}
	return true, nil
}

// RemoveFile unlinks path. A file that is already gone is not an error.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// RemoveTree deletes dir recursively, tolerating partial absence.
func RemoveTree(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove tree %s: %w", dir, err)
	}
	return nil
}

// PruneEmptyDirs removes empty directories from dir upwards, stopping before stop.
func PruneEmptyDirs(dir, stop string) {
	for IsWithin(stop, dir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// WriteStream copies r into a temporary file under tmpDir and renames it to path once the
// copy completes. tmpDir must be on the same filesystem as path. On error or cancellation
// the temporary file is removed and nothing is left at path.
func WriteStream(ctx context.Context, tmpDir, path string, r io.Reader) (int64, error) {
	f, err := createTemp(tmpDir)
	if err != nil {
		return 0, err
	}
	tmp := f.Name()

	written, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return written, fmt.Errorf("write %s: %w", path, err)
	}

	if err := moveIntoPlace(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return written, err
	}
	return written, nil
}

// createTemp opens a fresh file in dir, recreating dir once if it vanished in between.
func createTemp(dir string) (*os.File, error) {
	for attempt := 0; ; attempt++ {
		if _, err := EnsureDir(dir); err != nil {
			return nil, err
		}
		name := filepath.Join(dir, uuid.NewString()+tempSuffix)
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if err == nil {
			return f, nil
		}
		if attempt == 0 && errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
}

// moveIntoPlace renames tmp to path. A concurrent prune may remove the destination directory
// after it is ensured, so a missing directory is recreated once.
func moveIntoPlace(tmp, path string) error {
	dir := filepath.Dir(path)
	for attempt := 0; ; attempt++ {
		if _, err := EnsureDir(dir); err != nil {
			return err
		}
		dirReady(dir)

		err := os.Rename(tmp, path)
		switch {
		case err == nil:
			return nil
		case attempt == 0 && errors.Is(err, fs.ErrNotExist):
			continue
		case isPathConflict(err):
			return fmt.Errorf("%w: rename into %s: %w", ErrPathConflict, path, err)
		default:
			return fmt.Errorf("rename into %s: %w", path, err)
		}
	}
}

func isPathConflict(err error) bool {
	return errors.Is(err, syscall.ENOTDIR) ||
		errors.Is(err, syscall.EISDIR) ||
		errors.Is(err, syscall.ENOTEMPTY) ||
		errors.Is(err, syscall.EEXIST)
}

// RemoveStaleFiles deletes regular files directly in dir last modified before cutoff.
// A missing dir is not an error. It returns the number of files removed.
func RemoveStaleFiles(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read dir %s: %w", dir, err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := RemoveFile(filepath.Join(dir, entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ctxReader stops a copy as soon as the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
