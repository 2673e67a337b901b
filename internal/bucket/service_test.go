package bucket

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"testing"

	"github.com/abduss/objectd/internal/storage"
	"github.com/abduss/objectd/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T) (*Service, *fakeRepo, string) {
	t.Helper()
	base := t.TempDir()
	repo := newFakeRepo()
	urls := tenant.NewResolver("localhost", "api", false)
	return NewService(repo, base, urls, zaptest.NewLogger(t)), repo, base
}

func mustAdapter(t *testing.T, s *Service, name string) storage.Adapter {
	t.Helper()
	a, err := s.NewAdapter(name)
	require.NoError(t, err)
	return a
}

func TestCreateBucketThenGet(t *testing.T) {
	for _, adapterName := range []string{"blob", "keypath"} {
		t.Run(adapterName, func(t *testing.T) {
			service, _, base := newTestService(t)
			ctx := context.Background()

			owner := "alice"
			created, err := service.CreateBucket(ctx, mustAdapter(t, service, adapterName), "  Photos-2024 ", &owner, true)
			require.NoError(t, err)
			assert.Equal(t, "photos-2024", created.Name)
			assert.Equal(t, "http://photos-2024.localhost", created.URL)

			got, err := service.GetBucket(ctx, "photos-2024")
			require.NoError(t, err)
			assert.Equal(t, "photos-2024", got.Name)
			assert.Equal(t, storage.AdapterType(adapterName), got.Adapter)
			assert.True(t, got.Public)
			require.NotNil(t, got.Owner)
			assert.Equal(t, "alice", *got.Owner)

			info, err := os.Stat(filepath.Join(base, "files", "photos-2024"))
			require.NoError(t, err)
			assert.True(t, info.IsDir())
		})
	}
}

func TestCreateBucketDuplicateName(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()
	adapter := mustAdapter(t, service, "blob")

	_, err := service.CreateBucket(ctx, adapter, "archive", nil, false)
	require.NoError(t, err)

	_, err = service.CreateBucket(ctx, adapter, "ARCHIVE", nil, false)
	assert.ErrorIs(t, err, ErrBucketExists)
}

func TestCreateBucketConcurrentSameName(t *testing.T) {
	service, repo, base := newTestService(t)
	adapter := mustAdapter(t, service, "keypath")

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		dupes   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.CreateBucket(context.Background(), adapter, "race-bucket", nil, false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrBucketExists):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, workers-1, dupes)
	assert.Equal(t, 1, repo.inserts)

	entries, err := os.ReadDir(filepath.Join(base, "files"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "race-bucket", entries[0].Name())
}

func TestCreateBucketInvalidName(t *testing.T) {
	service, _, base := newTestService(t)
	adapter := mustAdapter(t, service, "blob")

	for _, name := range []string{"AB", "Invalid_Name!", "", "a/b", "../etc", string(make([]byte, 64))} {
		_, err := service.CreateBucket(context.Background(), adapter, name, nil, false)
		assert.ErrorIsf(t, err, ErrInvalidBucketName, "name %q", name)
	}

	_, err := os.Stat(filepath.Join(base, "files"))
	assert.True(t, os.IsNotExist(err), "no physical directory may be created for invalid names")
}

func TestCreateBucketRollsBackDirectoryOnInsertFailure(t *testing.T) {
	service, repo, base := newTestService(t)
	repo.createErr = errors.New("db down")

	_, err := service.CreateBucket(context.Background(), mustAdapter(t, service, "blob"), "doomed", nil, false)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(base, "files", "doomed"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeleteBucketRemovesTree(t *testing.T) {
	service, repo, base := newTestService(t)
	ctx := context.Background()

	_, err := service.CreateBucket(ctx, mustAdapter(t, service, "keypath"), "temp", nil, false)
	require.NoError(t, err)

	nested := filepath.Join(base, "files", "temp", "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "c.txt"), []byte("x"), 0o644))

	deleted, err := service.DeleteBucket(ctx, "temp")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.Get(ctx, "temp")
	assert.ErrorIs(t, err, ErrBucketNotFound)
	_, err = os.Stat(filepath.Join(base, "files", "temp"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteBucketMissing(t *testing.T) {
	service, _, _ := newTestService(t)

	deleted, err := service.DeleteBucket(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteBucketToleratesMissingDirectory(t *testing.T) {
	service, _, base := newTestService(t)
	ctx := context.Background()

	_, err := service.CreateBucket(ctx, mustAdapter(t, service, "blob"), "vanishing", nil, false)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(base, "files", "vanishing")))

	deleted, err := service.DeleteBucket(ctx, "vanishing")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestListBuckets(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()
	adapter := mustAdapter(t, service, "blob")

	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := service.CreateBucket(ctx, adapter, name, nil, false)
		require.NoError(t, err)
	}

	buckets, err := service.ListBuckets(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
		assert.NotEmpty(t, b.URL)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestCreateBucketKeepsDiskErrorChain(t *testing.T) {
	service, _, base := newTestService(t)
	require.NoError(t, os.WriteFile(filepath.Join(base, "files"), []byte("not a dir"), 0o644))

	_, err := service.CreateBucket(context.Background(), mustAdapter(t, service, "blob"), "blocked", nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrIO)
	assert.ErrorIs(t, err, storage.ErrPathConflict)
	assert.ErrorIs(t, err, syscall.ENOTDIR)
}

func TestDeleteBucketRemovesStagingDirectory(t *testing.T) {
	service, _, base := newTestService(t)
	ctx := context.Background()
	adapter := mustAdapter(t, service, "blob")

	_, err := service.CreateBucket(ctx, adapter, "staged", nil, false)
	require.NoError(t, err)
	tmp := adapter.TempDir("staged")
	require.NoError(t, os.MkdirAll(tmp, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "upload.part"), []byte("x"), 0o644))

	deleted, err := service.DeleteBucket(ctx, "staged")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(base, "tmp"))
	assert.NoError(t, err, "staging root survives")
}

// --- fakes ----

type fakeRepo struct {
	mu        sync.Mutex
	buckets   map[string]Bucket
	inserts   int
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{buckets: make(map[string]Bucket)}
}

func (f *fakeRepo) Create(ctx context.Context, b Bucket) (Bucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return Bucket{}, f.createErr
	}
	if _, exists := f.buckets[b.Name]; exists {
		return Bucket{}, ErrBucketExists
	}
	f.inserts++
	f.buckets[b.Name] = b
	return b, nil
}

func (f *fakeRepo) Get(ctx context.Context, name string) (Bucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[name]
	if !ok {
		return Bucket{}, ErrBucketNotFound
	}
	return b, nil
}

func (f *fakeRepo) List(ctx context.Context) ([]Bucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var buckets []Bucket
	for _, b := range f.buckets {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Name < buckets[j].Name })
	return buckets, nil
}

func (f *fakeRepo) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[name]; !ok {
		return ErrBucketNotFound
	}
	delete(f.buckets, name)
	return nil
}
