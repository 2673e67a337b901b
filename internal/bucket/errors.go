package bucket

import "errors"

var (
	// ErrBucketNotFound indicates the requested bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrBucketExists is returned when a bucket with the same normalized name already exists.
	ErrBucketExists = errors.New("bucket already exists")
	// ErrInvalidBucketName is returned for names outside [a-z0-9-]{3,63}.
	ErrInvalidBucketName = errors.New("invalid bucket name")
)
