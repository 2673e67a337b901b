// Package tenant maps request hosts to buckets and derives public object URLs.
package tenant

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/minio/minio-go/v7/pkg/s3utils"
)

var (
	// ErrNoBucket is returned for the bare domain suffix or an empty subdomain label.
	ErrNoBucket = errors.New("no bucket specified")
	// ErrInvalidDomain is returned for hosts outside the configured domain suffix.
	ErrInvalidDomain = errors.New("invalid domain")
)

// Target is the outcome of resolving a host.
type Target struct {
	// Admin is set for the API alias host; Bucket is empty in that case.
	Admin  bool
	Bucket string
}

// Resolver is a pure mapping from host names to targets. It performs no I/O.
type Resolver struct {
	DomainSuffix string
	APIAlias     string
	HTTPS        bool
}

// NewResolver normalizes its inputs to lowercase.
func NewResolver(domainSuffix, apiAlias string, https bool) Resolver {
	return Resolver{
		DomainSuffix: strings.ToLower(strings.Trim(domainSuffix, ".")),
		APIAlias:     strings.ToLower(apiAlias),
		HTTPS:        https,
	}
}

// Resolve extracts the bucket name from host. Ports are ignored.
func (r Resolver) Resolve(host string) (Target, error) {
	host = strings.ToLower(stripPort(strings.TrimSpace(host)))
	host = strings.TrimSuffix(host, ".")

	if host == r.DomainSuffix {
		return Target{}, ErrNoBucket
	}
	suffix := "." + r.DomainSuffix
	if !strings.HasSuffix(host, suffix) {
		return Target{}, ErrInvalidDomain
	}

	name := strings.TrimSuffix(host, suffix)
	if name == "" {
		return Target{}, ErrNoBucket
	}
	if name == r.APIAlias {
		return Target{Admin: true}, nil
	}
	return Target{Bucket: name}, nil
}

// BucketURL is the base URL of a bucket: scheme://{bucket}.{suffix}.
func (r Resolver) BucketURL(bucketName string) string {
	scheme := "http://"
	if r.HTTPS {
		scheme = "https://"
	}
	return scheme + bucketName + "." + r.DomainSuffix
}

// ObjectURL is the public URL of an object. Keys are path-escaped segment by segment.
func (r Resolver) ObjectURL(bucketName, key string) string {
	return r.BucketURL(bucketName) + "/" + s3utils.EncodePath(key)
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

type bucketKey struct{}

// WithBucket stores the resolved bucket name on ctx.
func WithBucket(ctx context.Context, bucketName string) context.Context {
	return context.WithValue(ctx, bucketKey{}, bucketName)
}

// BucketFromContext returns the bucket name stored by WithBucket.
func BucketFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(bucketKey{}).(string)
	return name, ok && name != ""
}
