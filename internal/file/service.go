package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abduss/objectd/internal/bucket"
	"github.com/abduss/objectd/internal/metrics"
	"github.com/abduss/objectd/internal/storage"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMimeType = "application/octet-stream"
	removeWorkers   = 8
)

type metadataStore interface {
	Reserve(ctx context.Context, obj FileObject) (FileObject, error)
	Confirm(ctx context.Context, id string, size int64) (FileObject, error)
	GetByID(ctx context.Context, id string) (FileObject, error)
	GetByKey(ctx context.Context, bucketName, key string) (FileObject, error)
	Children(ctx context.Context, parentID string) ([]FileObject, error)
	ListByPrefix(ctx context.Context, bucketName, prefix string) ([]FileObject, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]FileObject, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

type bucketStore interface {
	GetBucket(ctx context.Context, name string) (bucket.Bucket, error)
	Adapter(b bucket.Bucket) (storage.Adapter, error)
}

type urlBuilder interface {
	ObjectURL(bucketName, key string) string
}

// CreateInput describes a single upload.
type CreateInput struct {
	BucketName string
	Key        string
	// Size is the declared length. When positive, a body that ends early fails the create.
	Size      int64
	MimeType  string
	Public    bool
	ParentKey string
	Data      io.Reader
}

// Service manages object lifecycle: metadata rows and the files behind them.
type Service struct {
	repo             metadataStore
	buckets          bucketStore
	urls             urlBuilder
	cascadeAncestors bool
	log              *zap.Logger
	nowFunc          func() time.Time
}

// NewService constructs an object service. With cascadeAncestors set, deleting an object
// also deletes its ancestor chain.
func NewService(repo metadataStore, buckets bucketStore, urls urlBuilder, cascadeAncestors bool, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:             repo,
		buckets:          buckets,
		urls:             urls,
		cascadeAncestors: cascadeAncestors,
		log:              log,
		nowFunc:          time.Now,
	}
}

// Create stores an object in two phases: a pending row reserves the key, the bytes are
// streamed to disk, then the row is confirmed. Any failure removes what was written.
func (s *Service) Create(ctx context.Context, in CreateInput) (FileObject, error) {
	if err := validateKey(in.Key); err != nil {
		return FileObject{}, err
	}
	if in.Data == nil {
		return FileObject{}, fmt.Errorf("missing object payload")
	}

	b, err := s.buckets.GetBucket(ctx, in.BucketName)
	if err != nil {
		return FileObject{}, err
	}
	adapter, err := s.buckets.Adapter(b)
	if err != nil {
		return FileObject{}, err
	}
	if adapter.Type() == storage.AdapterKeypath && storage.SanitizeKey(in.Key) != in.Key {
		return FileObject{}, fmt.Errorf("%w: %q is not a canonical path", ErrInvalidKey, in.Key)
	}

	var parentID *string
	if in.ParentKey != "" {
		parent, err := s.repo.GetByKey(ctx, b.Name, in.ParentKey)
		if err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				return FileObject{}, ErrParentNotFound
			}
			return FileObject{}, err
		}
		parentID = &parent.ID
	}

	mimeType := strings.TrimSpace(in.MimeType)
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	reserved, err := s.repo.Reserve(ctx, FileObject{
		ID:         uuid.NewString(),
		BucketName: b.Name,
		Key:        in.Key,
		Size:       in.Size,
		MimeType:   mimeType,
		Public:     in.Public,
		ParentID:   parentID,
		Status:     StatusPending,
	})
	if err != nil {
		return FileObject{}, err
	}

	path := adapter.FilePath(reserved.Ref())
	if !storage.IsWithin(adapter.BucketPath(b.Name), path) {
		s.discard(ctx, reserved, "")
		return FileObject{}, fmt.Errorf("%w: %q escapes the bucket directory", ErrInvalidKey, in.Key)
	}

	written, err := storage.WriteStream(ctx, adapter.TempDir(b.Name), path, in.Data)
	if err == nil && in.Size > 0 && written != in.Size {
		err = fmt.Errorf("body ended after %d of %d bytes", written, in.Size)
		s.discard(ctx, reserved, path)
		return FileObject{}, fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	if err != nil {
		s.discard(ctx, reserved, "")
		if errors.Is(err, storage.ErrPathConflict) {
			// keypath: the key names a directory of other objects, or sits below an object
			return FileObject{}, fmt.Errorf("%w: %w", ErrObjectConflict, err)
		}
		return FileObject{}, fmt.Errorf("%w: %w", ErrStorageIO, err)
	}

	confirmed, err := s.repo.Confirm(ctx, reserved.ID, written)
	if err != nil {
		s.discard(ctx, reserved, path)
		return FileObject{}, err
	}

	metrics.ObjectsCreated.Inc()
	metrics.UploadBytes.Add(float64(written))
	s.log.Info("object created",
		zap.String("bucket", b.Name),
		zap.String("key", confirmed.Key),
		zap.String("id", confirmed.ID),
		zap.String("size", humanize.Bytes(uint64(written))),
	)
	return s.decorate(confirmed), nil
}

// discard undoes a failed create. The caller's context may already be cancelled, so
// cleanup runs without it.
func (s *Service) discard(ctx context.Context, obj FileObject, path string) {
	ctx = context.WithoutCancel(ctx)
	if path != "" {
		if err := storage.RemoveFile(path); err != nil {
			s.log.Warn("remove file of failed create", zap.String("path", path), zap.Error(err))
		}
	}
	if _, err := s.repo.DeleteMany(ctx, []string{obj.ID}); err != nil {
		s.log.Error("remove pending row of failed create", zap.String("id", obj.ID), zap.Error(err))
	}
}

// Resolve returns the ready object stored under bucketName/key.
func (s *Service) Resolve(ctx context.Context, bucketName, key string) (FileObject, error) {
	obj, err := s.repo.GetByKey(ctx, bucketName, key)
	if err != nil {
		return FileObject{}, err
	}
	return s.decorate(obj), nil
}

// Locate returns the object under bucketName/key along with its bucket.
func (s *Service) Locate(ctx context.Context, bucketName, key string) (FileObject, bucket.Bucket, error) {
	b, err := s.buckets.GetBucket(ctx, bucketName)
	if err != nil {
		return FileObject{}, bucket.Bucket{}, err
	}
	obj, err := s.Resolve(ctx, bucketName, key)
	if err != nil {
		return FileObject{}, bucket.Bucket{}, err
	}
	return obj, b, nil
}

// Details returns the object with its bucket, parent and ready children.
func (s *Service) Details(ctx context.Context, bucketName, key string) (Details, error) {
	obj, b, err := s.Locate(ctx, bucketName, key)
	if err != nil {
		return Details{}, err
	}
	d := Details{FileObject: obj, Bucket: b, Children: []FileObject{}}

	if obj.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *obj.ParentID)
		switch {
		case err == nil:
			parent = s.decorate(parent)
			d.Parent = &parent
		case !errors.Is(err, ErrObjectNotFound):
			return Details{}, err
		}
	}

	children, err := s.repo.Children(ctx, obj.ID)
	if err != nil {
		return Details{}, err
	}
	for _, child := range children {
		if child.Status == StatusReady {
			d.Children = append(d.Children, s.decorate(child))
		}
	}
	return d, nil
}

// List returns the ready objects of a bucket whose key starts with prefix, ordered by key.
func (s *Service) List(ctx context.Context, bucketName, prefix string) (bucket.Bucket, []FileObject, error) {
	b, err := s.buckets.GetBucket(ctx, bucketName)
	if err != nil {
		return bucket.Bucket{}, nil, err
	}
	objects, err := s.repo.ListByPrefix(ctx, b.Name, prefix)
	if err != nil {
		return bucket.Bucket{}, nil, err
	}
	for i := range objects {
		objects[i] = s.decorate(objects[i])
	}
	return b, objects, nil
}

// Open returns a reader over the object's bytes.
func (s *Service) Open(ctx context.Context, obj FileObject) (io.ReadCloser, error) {
	b, err := s.buckets.GetBucket(ctx, obj.BucketName)
	if err != nil {
		return nil, err
	}
	adapter, err := s.buckets.Adapter(b)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(adapter.FilePath(obj.Ref()))
	if err != nil {
		return nil, fmt.Errorf("%w: open object %s: %w", ErrStorageIO, obj.ID, err)
	}
	return f, nil
}

// Delete removes the object with id, its whole subtree of children and, when ancestor
// cascade is enabled, its ancestor chain. It reports false when id does not exist.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	visited := make(map[string]struct{})
	adapters := make(map[string]storage.Adapter)

	deleted := false
	for id != "" {
		if _, seen := visited[id]; seen {
			break
		}
		obj, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				break
			}
			return deleted, err
		}

		subtree, err := s.collectSubtree(ctx, obj, visited)
		if err != nil {
			return deleted, err
		}
		if err := s.removeFiles(ctx, subtree, adapters); err != nil {
			return deleted, err
		}

		ids := make([]string, 0, len(subtree))
		for _, o := range subtree {
			ids = append(ids, o.ID)
		}
		n, err := s.repo.DeleteMany(ctx, ids)
		if err != nil {
			return deleted, err
		}
		deleted = true
		metrics.ObjectsDeleted.Add(float64(n))
		s.log.Info("object deleted",
			zap.String("bucket", obj.BucketName),
			zap.String("key", obj.Key),
			zap.String("id", obj.ID),
			zap.Int64("rows", n),
		)

		if !s.cascadeAncestors || obj.ParentID == nil {
			break
		}
		id = *obj.ParentID
	}
	return deleted, nil
}

// collectSubtree walks children breadth first. visited guards against parent cycles.
func (s *Service) collectSubtree(ctx context.Context, root FileObject, visited map[string]struct{}) ([]FileObject, error) {
	visited[root.ID] = struct{}{}
	subtree := []FileObject{root}
	for i := 0; i < len(subtree); i++ {
		children, err := s.repo.Children(ctx, subtree[i].ID)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}
			subtree = append(subtree, child)
		}
	}
	return subtree, nil
}

type removal struct {
	path       string
	bucketPath string
}

func (s *Service) removeFiles(ctx context.Context, objects []FileObject, adapters map[string]storage.Adapter) error {
	removals := make([]removal, 0, len(objects))
	for _, obj := range objects {
		adapter, err := s.adapterFor(ctx, obj.BucketName, adapters)
		if err != nil {
			if errors.Is(err, bucket.ErrBucketNotFound) {
				continue
			}
			return err
		}
		bucketPath := adapter.BucketPath(obj.BucketName)
		path := adapter.FilePath(obj.Ref())
		if !storage.IsWithin(bucketPath, path) {
			s.log.Error("refusing to remove file outside bucket", zap.String("id", obj.ID), zap.String("path", path))
			continue
		}
		removals = append(removals, removal{path: path, bucketPath: bucketPath})
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(removeWorkers)
	for _, r := range removals {
		r := r
		g.Go(func() error {
			return storage.RemoveFile(r.path)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}

	for _, r := range removals {
		storage.PruneEmptyDirs(filepath.Dir(r.path), r.bucketPath)
	}
	return nil
}

func (s *Service) adapterFor(ctx context.Context, bucketName string, cache map[string]storage.Adapter) (storage.Adapter, error) {
	if adapter, ok := cache[bucketName]; ok {
		return adapter, nil
	}
	b, err := s.buckets.GetBucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}
	adapter, err := s.buckets.Adapter(b)
	if err != nil {
		return nil, err
	}
	cache[bucketName] = adapter
	return adapter, nil
}

// SweepPending removes pending rows older than olderThan along with any file they left
// behind, and staged uploads of the same buckets that have not been touched since the cutoff.
// It returns the number of rows removed.
func (s *Service) SweepPending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.nowFunc().Add(-olderThan)
	stale, err := s.repo.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	adapters := make(map[string]storage.Adapter)
	if err := s.removeFiles(ctx, stale, adapters); err != nil {
		return 0, err
	}
	for bucketName, adapter := range adapters {
		n, err := storage.RemoveStaleFiles(adapter.TempDir(bucketName), cutoff)
		if err != nil {
			s.log.Warn("remove staged uploads", zap.String("bucket", bucketName), zap.Error(err))
			continue
		}
		if n > 0 {
			s.log.Info("removed staged uploads", zap.String("bucket", bucketName), zap.Int("files", n))
		}
	}

	ids := make([]string, 0, len(stale))
	for _, obj := range stale {
		ids = append(ids, obj.ID)
	}
	n, err := s.repo.DeleteMany(ctx, ids)
	if err != nil {
		return 0, err
	}
	metrics.PendingSwept.Add(float64(n))
	s.log.Info("swept pending objects", zap.Int64("rows", n), zap.Duration("older_than", olderThan))
	return int(n), nil
}

func (s *Service) decorate(obj FileObject) FileObject {
	if s.urls != nil {
		obj.URL = s.urls.ObjectURL(obj.BucketName, obj.Key)
	}
	return obj
}

func validateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: key is empty", ErrInvalidKey)
	case strings.HasPrefix(key, ReservedPrefix):
		return fmt.Errorf("%w: keys can't start with %q", ErrInvalidKey, ReservedPrefix)
	case strings.ContainsRune(key, 0):
		return fmt.Errorf("%w: key contains a NUL byte", ErrInvalidKey)
	}
	return nil
}
