package bucket

import (
	"regexp"
	"strings"
	"time"

	"github.com/abduss/objectd/internal/storage"
)

// Bucket is an isolated namespace of objects, addressed by subdomain.
type Bucket struct {
	Name      string              `json:"name"`
	Owner     *string             `json:"owner"`
	Public    bool                `json:"public"`
	Adapter   storage.AdapterType `json:"adapter"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	URL       string              `json:"url"`
	Usage     UsageStats          `json:"usage"`
}

// UsageStats reflects aggregate statistics over confirmed objects in a bucket.
type UsageStats struct {
	TotalBytes int64 `json:"total_bytes"`
	FileCount  int64 `json:"file_count"`
}

var validName = regexp.MustCompile(`^[a-z0-9-]{3,63}$`)

// NormalizeName lowercases and trims a bucket name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsValidName reports whether name is an acceptable, already-normalized bucket name.
func IsValidName(name string) bool {
	return validName.MatchString(name)
}
