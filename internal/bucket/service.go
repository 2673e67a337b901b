package bucket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/abduss/objectd/internal/metrics"
	"github.com/abduss/objectd/internal/storage"
	"go.uber.org/zap"
)

type repository interface {
	Create(ctx context.Context, b Bucket) (Bucket, error)
	Get(ctx context.Context, name string) (Bucket, error)
	List(ctx context.Context) ([]Bucket, error)
	Delete(ctx context.Context, name string) error
}

type urlBuilder interface {
	BucketURL(bucketName string) string
}

// Service orchestrates bucket lifecycle: metadata rows plus the bucket's directory tree.
type Service struct {
	repo     repository
	basePath string
	urls     urlBuilder
	log      *zap.Logger

	// mu serializes create and delete so that an existence check and the insert that
	// follows it cannot interleave with another request for the same name.
	mu sync.Mutex
}

// NewService constructs a bucket service rooted at basePath.
func NewService(repo repository, basePath string, urls urlBuilder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		basePath: basePath,
		urls:     urls,
		log:      log,
	}
}

// NewAdapter resolves an adapter name against the service's base path.
func (s *Service) NewAdapter(name string) (storage.Adapter, error) {
	return storage.NewAdapter(name, s.basePath)
}

// Adapter returns the storage adapter recorded for b.
func (s *Service) Adapter(b Bucket) (storage.Adapter, error) {
	return storage.NewAdapter(string(b.Adapter), s.basePath)
}

// CreateBucket creates the bucket directory and its metadata row.
func (s *Service) CreateBucket(ctx context.Context, adapter storage.Adapter, name string, owner *string, public bool) (Bucket, error) {
	normalized := NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.Get(ctx, normalized); err == nil {
		return Bucket{}, ErrBucketExists
	} else if !errors.Is(err, ErrBucketNotFound) {
		return Bucket{}, err
	}

	if !IsValidName(normalized) {
		return Bucket{}, ErrInvalidBucketName
	}

	dir := adapter.BucketPath(normalized)
	if !storage.IsDirectChildOf(storage.FilesRoot(s.basePath), dir) {
		return Bucket{}, fmt.Errorf("%w: %s", storage.ErrOutsideRoot, dir)
	}
	created, err := storage.EnsureDir(dir)
	if err != nil {
		return Bucket{}, fmt.Errorf("%w: %w", storage.ErrIO, err)
	}

	b, err := s.repo.Create(ctx, Bucket{
		Name:    normalized,
		Owner:   owner,
		Public:  public,
		Adapter: adapter.Type(),
	})
	if err != nil {
		if created {
			_ = storage.RemoveTree(dir)
		}
		return Bucket{}, err
	}

	metrics.BucketsCreated.Inc()
	s.log.Info("bucket created",
		zap.String("bucket", b.Name),
		zap.String("adapter", string(b.Adapter)),
		zap.Bool("public", b.Public),
	)
	return s.decorate(b), nil
}

// DeleteBucket removes the metadata row and then the bucket's whole directory tree.
// It reports false when the bucket did not exist.
func (s *Service) DeleteBucket(ctx context.Context, name string) (bool, error) {
	normalized := NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.repo.Get(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrBucketNotFound) {
			return false, nil
		}
		return false, err
	}

	adapter, err := s.Adapter(b)
	if err != nil {
		return false, err
	}

	if err := s.repo.Delete(ctx, b.Name); err != nil {
		if errors.Is(err, ErrBucketNotFound) {
			return false, nil
		}
		return false, err
	}

	dir := adapter.BucketPath(b.Name)
	switch {
	case !storage.IsDirectChildOf(storage.FilesRoot(s.basePath), dir):
		s.log.Error("refusing to remove bucket directory outside files root", zap.String("bucket", b.Name), zap.String("dir", dir))
	default:
		if err := storage.RemoveTree(dir); err != nil {
			s.log.Warn("bucket directory cleanup failed", zap.String("bucket", b.Name), zap.Error(err))
		}
	}

	if tmp := adapter.TempDir(b.Name); storage.IsDirectChildOf(storage.TempRoot(s.basePath), tmp) {
		if err := storage.RemoveTree(tmp); err != nil {
			s.log.Warn("bucket staging cleanup failed", zap.String("bucket", b.Name), zap.Error(err))
		}
	}

	s.log.Info("bucket deleted", zap.String("bucket", b.Name))
	return true, nil
}

// GetBucket returns a bucket by name.
func (s *Service) GetBucket(ctx context.Context, name string) (Bucket, error) {
	b, err := s.repo.Get(ctx, NormalizeName(name))
	if err != nil {
		return Bucket{}, err
	}
	return s.decorate(b), nil
}

// ListBuckets returns every bucket.
func (s *Service) ListBuckets(ctx context.Context) ([]Bucket, error) {
	buckets, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range buckets {
		buckets[i] = s.decorate(buckets[i])
	}
	return buckets, nil
}

func (s *Service) decorate(b Bucket) Bucket {
	if s.urls != nil {
		b.URL = s.urls.BucketURL(b.Name)
	}
	return b
}
