package bucket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abduss/objectd/internal/auth"
	"github.com/abduss/objectd/internal/config"
	"github.com/abduss/objectd/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rootToken = "root-token"

func newTestEngine(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	service, _, base := newTestService(t)
	engine := gin.New()
	engine.Use(auth.Middleware(auth.NewAuthenticator(config.AuthConfig{RootToken: rootToken})))
	RegisterRoutes(&engine.RouterGroup, service, "blob")
	return engine, base
}

func doRequest(engine *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+rootToken)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeBucket(t *testing.T, rec *httptest.ResponseRecorder) Bucket {
	t.Helper()
	var b Bucket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b
}

func TestCreateGetDeleteBucketOverHTTP(t *testing.T) {
	engine, base := newTestEngine(t)

	rec := doRequest(engine, http.MethodPost, "/buckets/photos", `{"adapter":"keypath","owner":"alice","isPublic":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeBucket(t, rec)
	assert.Equal(t, "photos", created.Name)
	assert.Equal(t, storage.AdapterKeypath, created.Adapter)
	assert.True(t, created.Public)
	require.NotNil(t, created.Owner)
	assert.Equal(t, "alice", *created.Owner)
	assert.Equal(t, "http://photos.localhost", created.URL)

	rec = doRequest(engine, http.MethodGet, "/buckets/photos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBucket(t, rec)
	assert.Equal(t, storage.AdapterKeypath, got.Adapter)
	assert.True(t, got.Public)

	rec = doRequest(engine, http.MethodGet, "/buckets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []Bucket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "photos", listed[0].Name)

	rec = doRequest(engine, http.MethodDelete, "/buckets/photos", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err := os.Stat(filepath.Join(base, "files", "photos"))
	assert.True(t, os.IsNotExist(err))

	rec = doRequest(engine, http.MethodGet, "/buckets/photos", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doRequest(engine, http.MethodDelete, "/buckets/photos", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBucketOverHTTPDefaults(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := doRequest(engine, http.MethodPost, "/buckets/plain", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decodeBucket(t, rec)
	assert.Equal(t, storage.AdapterBlob, b.Adapter)
	assert.False(t, b.Public)
	assert.Nil(t, b.Owner)
}

func TestCreateBucketOverHTTPErrors(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := doRequest(engine, http.MethodPost, "/buckets/photos", `{"adapter":"s3"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(engine, http.MethodPost, "/buckets/No_Good", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(engine, http.MethodPost, "/buckets/photos", `{"adapter":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(engine, http.MethodPost, "/buckets/photos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(engine, http.MethodPost, "/buckets/photos", `{"adapter":"keypath"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
