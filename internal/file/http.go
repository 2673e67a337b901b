package file

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abduss/objectd/internal/auth"
	"github.com/abduss/objectd/internal/bucket"
	"github.com/abduss/objectd/internal/logger"
	"github.com/abduss/objectd/internal/presigned"
	"github.com/abduss/objectd/internal/tenant"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	listRoute = ReservedPrefix + "objects"
	metaRoute = ReservedPrefix + "meta/"
	signRoute = ReservedPrefix + "sign/"
)

// RegisterRoutes mounts the bucket-scoped object endpoints. The bucket comes from the
// request context, where the host dispatcher stores it.
func RegisterRoutes(router gin.IRouter, service *Service, signer *presigned.Service) {
	handler := &httpHandler{service: service, signer: signer}
	router.GET("/*path", handler.get)
	router.HEAD("/*path", handler.get)
	router.POST("/*path", handler.upload)
	router.DELETE("/*path", handler.delete)
}

type httpHandler struct {
	service *Service
	signer  *presigned.Service
}

type signResponse struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *httpHandler) get(c *gin.Context) {
	bucketName, ok := bucketFrom(c)
	if !ok {
		return
	}
	path := strings.TrimPrefix(c.Param("path"), "/")

	switch {
	case path == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "object key is required"})
	case path == listRoute || strings.HasPrefix(path, listRoute+"/"):
		h.list(c, bucketName, strings.TrimPrefix(strings.TrimPrefix(path, listRoute), "/"))
	case strings.HasPrefix(path, metaRoute):
		h.meta(c, bucketName, strings.TrimPrefix(path, metaRoute))
	case strings.HasPrefix(path, signRoute):
		h.sign(c, bucketName, strings.TrimPrefix(path, signRoute))
	default:
		h.download(c, bucketName, path)
	}
}

func (h *httpHandler) download(c *gin.Context, bucketName, key string) {
	obj, b, err := h.service.Locate(c.Request.Context(), bucketName, key)
	if err != nil {
		h.lookupError(c, "download object", err)
		return
	}
	if !auth.IsRoot(c) && !obj.Visible(b.Public) && !h.validSignature(c, bucketName, key) {
		c.JSON(http.StatusForbidden, gin.H{"error": auth.ErrUnauthorized.Error()})
		return
	}

	reader, err := h.service.Open(c.Request.Context(), obj)
	if err != nil {
		logger.FromContext(c).Error("open object", zap.String("id", obj.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read object"})
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, obj.Size, obj.MimeType, reader, map[string]string{
		"Last-Modified": obj.UpdatedAt.UTC().Format(http.TimeFormat),
	})
}

func (h *httpHandler) validSignature(c *gin.Context, bucketName, key string) bool {
	token := c.Query(presigned.QueryParam)
	return token != "" && h.signer != nil && h.signer.VerifyReadToken(token, bucketName, key)
}

func (h *httpHandler) meta(c *gin.Context, bucketName, key string) {
	details, err := h.service.Details(c.Request.Context(), bucketName, key)
	if err != nil {
		h.lookupError(c, "object metadata", err)
		return
	}
	if !auth.IsRoot(c) && !details.IsPublic() {
		c.JSON(http.StatusForbidden, gin.H{"error": auth.ErrUnauthorized.Error()})
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *httpHandler) list(c *gin.Context, bucketName, prefix string) {
	b, objects, err := h.service.List(c.Request.Context(), bucketName, prefix)
	if err != nil {
		h.lookupError(c, "list objects", err)
		return
	}

	root := auth.IsRoot(c)
	visible := make([]FileObject, 0, len(objects))
	for _, obj := range objects {
		if root || obj.Visible(b.Public) {
			visible = append(visible, obj)
		}
	}
	c.JSON(http.StatusOK, visible)
}

func (h *httpHandler) sign(c *gin.Context, bucketName, key string) {
	if !auth.IsRoot(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": auth.ErrUnauthorized.Error()})
		return
	}
	if h.signer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "signing is disabled"})
		return
	}

	ttl := h.signer.DefaultTTL()
	if raw := c.Query("ttl"); raw != "" {
		parsed, err := parseTTL(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl"})
			return
		}
		ttl = parsed
	}

	obj, err := h.service.Resolve(c.Request.Context(), bucketName, key)
	if err != nil {
		h.lookupError(c, "sign object", err)
		return
	}

	token, expiresAt, err := h.signer.IssueReadToken(bucketName, obj.Key, ttl)
	if err != nil {
		if errors.Is(err, presigned.ErrInvalidTTL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.FromContext(c).Error("issue read token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign object"})
		return
	}

	c.JSON(http.StatusOK, signResponse{
		URL:       presigned.SignedURL(obj.URL, token),
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// parseTTL accepts a Go duration ("90s", "2h") or a bare number of seconds.
func parseTTL(raw string) (time.Duration, error) {
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

func (h *httpHandler) upload(c *gin.Context) {
	bucketName, ok := bucketFrom(c)
	if !ok {
		return
	}
	if !auth.IsRoot(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": auth.ErrUnauthorized.Error()})
		return
	}

	key := strings.TrimPrefix(c.Param("path"), "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object key is required"})
		return
	}
	if c.Request.ContentLength <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content-length must be positive"})
		return
	}

	public := false
	if raw := c.Query("public"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid public flag"})
			return
		}
		public = parsed
	}

	obj, err := h.service.Create(c.Request.Context(), CreateInput{
		BucketName: bucketName,
		Key:        key,
		Size:       c.Request.ContentLength,
		MimeType:   c.ContentType(),
		Public:     public,
		ParentKey:  c.Query("parent"),
		Data:       c.Request.Body,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrObjectConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "object already exists"})
		case errors.Is(err, ErrInvalidKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrParentNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "parent object not found"})
		case errors.Is(err, bucket.ErrBucketNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		default:
			logger.FromContext(c).Error("upload object", zap.String("bucket", bucketName), zap.String("key", key), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload object"})
		}
		return
	}

	c.JSON(http.StatusCreated, obj)
}

func (h *httpHandler) delete(c *gin.Context) {
	bucketName, ok := bucketFrom(c)
	if !ok {
		return
	}
	if !auth.IsRoot(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": auth.ErrUnauthorized.Error()})
		return
	}

	obj, err := h.service.Resolve(c.Request.Context(), bucketName, strings.TrimPrefix(c.Param("path"), "/"))
	if err != nil {
		h.lookupError(c, "delete object", err)
		return
	}

	deleted, err := h.service.Delete(c.Request.Context(), obj.ID)
	if err != nil {
		logger.FromContext(c).Error("delete object", zap.String("id", obj.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete object"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *httpHandler) lookupError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrObjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
	case errors.Is(err, bucket.ErrBucketNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
	default:
		logger.FromContext(c).Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func bucketFrom(c *gin.Context) (string, bool) {
	name, ok := tenant.BucketFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": tenant.ErrNoBucket.Error()})
	}
	return name, ok
}
