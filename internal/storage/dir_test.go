package storage

import "testing"

func TestIsDirectChildOf(t *testing.T) {
	cases := []struct {
		dir, path string
		want      bool
	}{
		{"/data/files", "/data/files/bucket", true},
		{"/data/files/", "/data/files/bucket", true},
		{`C:\data\files`, `C:\data\files\bucket`, true},
		{"/data/files", "/data/files/bucket/nested", false},
		{"/data/files", "/data/files/../escape", false},
		{"/data/files", "/data/files", false},
		{"", "/x", false},
	}
	for _, tc := range cases {
		if got := IsDirectChildOf(tc.dir, tc.path); got != tc.want {
			t.Fatalf("IsDirectChildOf(%q, %q) = %v, want %v", tc.dir, tc.path, got, tc.want)
		}
	}
}

func TestIsWithin(t *testing.T) {
	if !IsWithin("/data/files/b", "/data/files/b/x/y") {
		t.Fatalf("expected nested path to be within bucket")
	}
	if IsWithin("/data/files/b", "/data/files/bb/x") {
		t.Fatalf("sibling with shared prefix must not count as within")
	}
	if IsWithin("/data/files/b", "/data/files/b/../c") {
		t.Fatalf("cleaned traversal must not count as within")
	}
	if IsWithin("/data/files/b", "/data/files/b") {
		t.Fatalf("a directory is not within itself")
	}
}
