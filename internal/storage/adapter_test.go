package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdapterUnknown(t *testing.T) {
	_, err := NewAdapter("s3", "/data")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownAdapter))
}

func TestBlobAdapterShardsByID(t *testing.T) {
	a, err := NewAdapter("blob", "/data")
	require.NoError(t, err)
	assert.Equal(t, AdapterBlob, a.Type())

	ref := ObjectRef{ID: "ab12cd", BucketName: "photos", Key: "../../etc/passwd"}
	got := a.FilePath(ref)
	assert.Equal(t, filepath.Join("/data", "files", "photos", "ab", "ab12cd"), got)
	assert.True(t, IsDirectChildOf(filepath.Join(a.BucketPath("photos"), "ab"), got))
}

func TestKeypathAdapterKeepsHierarchy(t *testing.T) {
	a, err := NewAdapter("KEYPATH", "/data")
	require.NoError(t, err)

	got := a.FilePath(ObjectRef{ID: "x", BucketName: "docs", Key: "reports/2024/q1.pdf"})
	assert.Equal(t, filepath.Join("/data", "files", "docs", "reports", "2024", "q1.pdf"), got)
}

func TestKeypathAdapterStripsTraversal(t *testing.T) {
	a, err := NewAdapter("keypath", "/data")
	require.NoError(t, err)

	bucketPath := a.BucketPath("docs")
	for _, key := range []string{"../../etc/passwd", "/etc/passwd", "a/../../b", `..\..\windows`, "./x/./y"} {
		got := a.FilePath(ObjectRef{BucketName: "docs", Key: key})
		assert.Truef(t, IsWithin(bucketPath, got), "key %q escaped to %s", key, got)
	}
	assert.Equal(t, filepath.Join(bucketPath, "etc", "passwd"), a.FilePath(ObjectRef{BucketName: "docs", Key: "../../etc/passwd"}))
}

func TestSanitizeKey(t *testing.T) {
	cases := map[string]string{
		"a/b/c":        "a/b/c",
		"/a//b/":       "a/b",
		"../x":         "x",
		"..":           "",
		"a/./b/../c":   "a/b/c",
		"...hidden":    "...hidden",
		`dir\file.txt`: "dir/file.txt",
	}
	for in, want := range cases {
		assert.Equalf(t, want, SanitizeKey(in), "SanitizeKey(%q)", in)
	}
}

func TestTempDirIsOutsideBucketPath(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{"blob", "keypath"} {
		a, err := NewAdapter(name, base)
		require.NoError(t, err)

		tmp := a.TempDir("docs")
		assert.Equal(t, filepath.Join(TempRoot(base), "docs"), tmp)
		assert.False(t, IsWithin(FilesRoot(base), tmp), name)
		assert.False(t, IsWithin(a.BucketPath("docs"), tmp), name)
	}
}
