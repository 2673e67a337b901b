package storage

import "errors"

var (
	// ErrUnknownAdapter is returned when an adapter name is not one of the supported layouts.
	// It signals a configuration problem and should not be retried.
	ErrUnknownAdapter = errors.New("unknown storage adapter")
	// ErrOutsideRoot indicates a computed path escapes the directory it must live in.
	ErrOutsideRoot = errors.New("path escapes storage root")
	// ErrPathConflict is returned when a file sits where a directory is needed, or the reverse.
	ErrPathConflict = errors.New("path conflicts with an existing file or directory")
)

// ErrIO wraps disk failures (mkdir, write, unlink) so callers can tell them apart from validation errors.
var ErrIO = errors.New("storage i/o failure")
