package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abduss/objectd/internal/auth"
	"github.com/abduss/objectd/internal/bucket"
	"github.com/abduss/objectd/internal/config"
	"github.com/abduss/objectd/internal/file"
	"github.com/abduss/objectd/internal/tenant"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, db pinger) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Storage: config.StorageConfig{DataPath: t.TempDir(), DefaultAdapter: "blob"},
		Metrics: config.MetricsConfig{PrometheusPath: "/metrics"},
	}
	resolver := tenant.NewResolver("objects.test", "api", false)
	buckets := bucket.NewService(nil, cfg.Storage.DataPath, resolver, nil)

	return NewRouter(Dependencies{
		Config:        cfg,
		DB:            db,
		Resolver:      resolver,
		Authenticator: auth.NewAuthenticator(config.AuthConfig{RootToken: "root-token"}),
		BucketService: buckets,
		FileService:   file.NewService(nil, buckets, resolver, true, nil),
	})
}

func serve(r http.Handler, method, host, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Host = host
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthAnswersOnAnyHost(t *testing.T) {
	router := newTestRouter(t, fakePinger{})

	for _, host := range []string{"objects.test", "api.objects.test", "photos.objects.test", "elsewhere.example"} {
		rec := serve(router, http.MethodGet, host, "/health/live", nil)
		assert.Equal(t, http.StatusOK, rec.Code, host)
	}

	rec := serve(router, http.MethodGet, "localhost", "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet, "localhost", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessReportsDatabaseFailure(t *testing.T) {
	router := newTestRouter(t, fakePinger{err: errors.New("connection refused")})

	rec := serve(router, http.MethodGet, "api.objects.test", "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "postgres")
}

func TestUnroutableHosts(t *testing.T) {
	router := newTestRouter(t, fakePinger{})

	rec := serve(router, http.MethodGet, "objects.test", "/anything", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no bucket specified")

	rec = serve(router, http.MethodGet, "photos.other.test", "/anything", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid domain")
}

func TestAdminRoutesRequireRoot(t *testing.T) {
	router := newTestRouter(t, fakePinger{})

	rec := serve(router, http.MethodGet, "api.objects.test", "/buckets", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, http.MethodPost, "api.objects.test", "/buckets/photos", http.Header{
		"Authorization": {"Bearer wrong"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestAdminRoutesNotServedOnBucketHosts(t *testing.T) {
	router := newTestRouter(t, fakePinger{})

	// On a bucket host "/buckets" is just an object key; deletes still need root.
	rec := serve(router, http.MethodDelete, "photos.objects.test", "/buckets/photos", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBucketHostRoutes(t *testing.T) {
	router := newTestRouter(t, fakePinger{})

	rec := serve(router, http.MethodGet, "photos.objects.test", "/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPost, "photos.objects.test", "/a.txt", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, http.MethodGet, "photos.objects.test", "/~sign/a.txt", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/a.txt", strings.NewReader(""))
	req.Host = "photos.objects.test"
	req.Header.Set("Authorization", "Bearer root-token")
	req.ContentLength = 0
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	require.Equal(t, http.StatusBadRequest, out.Code)
	assert.Contains(t, out.Body.String(), "content-length")
}
