package file

import (
	"time"

	"github.com/abduss/objectd/internal/bucket"
	"github.com/abduss/objectd/internal/storage"
)

// Status tracks the two-phase create of an object.
type Status string

const (
	// StatusPending marks a reserved row whose bytes are still being written.
	StatusPending Status = "pending"
	// StatusReady marks an object whose file is in place.
	StatusReady Status = "ready"
)

// ReservedPrefix starts keys used by control endpoints; objects cannot be stored under it.
const ReservedPrefix = "~"

// FileObject is the metadata record of a stored object.
type FileObject struct {
	ID         string    `json:"id"`
	BucketName string    `json:"bucket_name"`
	Key        string    `json:"key"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	Public     bool      `json:"public"`
	ParentID   *string   `json:"parent_id,omitempty"`
	Status     Status    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	URL        string    `json:"url"`

	// ParentPublic is the parent's public flag, filled by queries that join the parent row.
	ParentPublic bool `json:"-"`
}

// Ref returns the fields adapters use to place the object on disk.
func (o FileObject) Ref() storage.ObjectRef {
	return storage.ObjectRef{ID: o.ID, BucketName: o.BucketName, Key: o.Key}
}

// Visible applies the visibility rule: bucket, object and immediate parent flags are OR-ed.
// Grandparents do not count.
func (o FileObject) Visible(bucketPublic bool) bool {
	return bucketPublic || o.Public || o.ParentPublic
}

// Details is an object together with its bucket and direct relatives.
type Details struct {
	FileObject
	Bucket   bucket.Bucket `json:"bucket"`
	Parent   *FileObject   `json:"parent,omitempty"`
	Children []FileObject  `json:"children"`
}

// IsPublic reports the effective visibility of the object.
func (d Details) IsPublic() bool {
	return d.Visible(d.Bucket.Public)
}
