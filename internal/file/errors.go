package file

import (
	"errors"

	"github.com/abduss/objectd/internal/storage"
)

var (
	// ErrObjectNotFound signals that no confirmed object matches the lookup.
	ErrObjectNotFound = errors.New("object not found")
	// ErrObjectConflict is returned when another object already holds the bucket/key pair.
	ErrObjectConflict = errors.New("object key already exists")
	// ErrInvalidKey is returned for empty, reserved or non-canonical keys.
	ErrInvalidKey = errors.New("invalid object key")
	// ErrParentNotFound is returned when an upload names a parent that does not exist.
	ErrParentNotFound = errors.New("parent object not found")
	// ErrStorageIO marks failures writing or removing physical files.
	ErrStorageIO = storage.ErrIO
)
