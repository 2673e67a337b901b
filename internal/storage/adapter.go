package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AdapterType names a physical layout strategy. The set is closed: blob and keypath.
type AdapterType string

const (
	// AdapterBlob shards files by generated object id: files/{bucket}/{id[:2]}/{id}.
	AdapterBlob AdapterType = "blob"
	// AdapterKeypath mirrors the logical key on disk: files/{bucket}/{sanitized key}.
	AdapterKeypath AdapterType = "keypath"
)

const (
	filesDir = "files"
	tempDir  = "tmp"
)

// ObjectRef carries the fields an adapter needs to place an object on disk.
type ObjectRef struct {
	ID         string
	BucketName string
	Key        string
}

// Adapter maps buckets and objects to physical paths under a fixed base directory.
// Implementations are pure: they never touch the filesystem.
type Adapter interface {
	Type() AdapterType
	BucketPath(bucketName string) string
	FilePath(obj ObjectRef) string
	// TempDir holds in-flight uploads for a bucket, outside the bucket's key namespace.
	TempDir(bucketName string) string
}

// ParseAdapterType validates an adapter name.
func ParseAdapterType(name string) (AdapterType, error) {
	switch t := AdapterType(strings.ToLower(strings.TrimSpace(name))); t {
	case AdapterBlob, AdapterKeypath:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAdapter, name)
	}
}

// NewAdapter returns the adapter registered under name, rooted at basePath.
func NewAdapter(name string, basePath string) (Adapter, error) {
	t, err := ParseAdapterType(name)
	if err != nil {
		return nil, err
	}
	switch t {
	case AdapterBlob:
		return blobAdapter{base: basePath}, nil
	default:
		return keypathAdapter{base: basePath}, nil
	}
}

// FilesRoot is the directory holding every bucket directory.
func FilesRoot(basePath string) string {
	return filepath.Join(basePath, filesDir)
}

// TempRoot is the directory holding every bucket's upload staging directory. It shares
// the base path with FilesRoot so staged files can be renamed into place.
func TempRoot(basePath string) string {
	return filepath.Join(basePath, tempDir)
}

type blobAdapter struct {
	base string
}

func (a blobAdapter) Type() AdapterType { return AdapterBlob }

func (a blobAdapter) BucketPath(bucketName string) string {
	return filepath.Join(FilesRoot(a.base), bucketName)
}

func (a blobAdapter) TempDir(bucketName string) string {
	return filepath.Join(TempRoot(a.base), bucketName)
}

func (a blobAdapter) FilePath(obj ObjectRef) string {
	return filepath.Join(a.BucketPath(obj.BucketName), shard(obj.ID), obj.ID)
}

func shard(id string) string {
	if len(id) < 2 {
		return id
	}
	return id[:2]
}

type keypathAdapter struct {
	base string
}

func (a keypathAdapter) Type() AdapterType { return AdapterKeypath }

func (a keypathAdapter) BucketPath(bucketName string) string {
	return filepath.Join(FilesRoot(a.base), bucketName)
}

func (a keypathAdapter) TempDir(bucketName string) string {
	return filepath.Join(TempRoot(a.base), bucketName)
}

func (a keypathAdapter) FilePath(obj ObjectRef) string {
	safe := SanitizeKey(obj.Key)
	return filepath.Join(a.BucketPath(obj.BucketName), filepath.FromSlash(safe))
}

// SanitizeKey drops empty, "." and ".." segments as well as any leading separator,
// so the result can only name a path below the directory it is joined to.
func SanitizeKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	parts := strings.Split(key, "/")
	kept := parts[:0]
	for _, part := range parts {
		switch part {
		case "", ".", "..":
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "/")
}
