package bucket

import (
	"errors"
	"io"
	"net/http"

	"github.com/abduss/objectd/internal/auth"
	"github.com/abduss/objectd/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterRoutes mounts the administrative bucket endpoints. All of them require the root principal.
func RegisterRoutes(group *gin.RouterGroup, service *Service, defaultAdapter string) {
	handler := &httpHandler{service: service, defaultAdapter: defaultAdapter}
	admin := group.Group("/buckets", auth.RequireRoot())
	admin.GET("", handler.listBuckets)
	admin.GET("/:name", handler.getBucket)
	admin.POST("/:name", handler.createBucket)
	admin.DELETE("/:name", handler.deleteBucket)
}

type httpHandler struct {
	service        *Service
	defaultAdapter string
}

type createBucketRequest struct {
	Adapter  string  `json:"adapter"`
	Owner    *string `json:"owner" binding:"omitempty,max=255"`
	IsPublic bool    `json:"isPublic"`
}

func (h *httpHandler) createBucket(c *gin.Context) {
	var req createBucketRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Adapter == "" {
		req.Adapter = h.defaultAdapter
	}

	adapter, err := h.service.NewAdapter(req.Adapter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bucket, err := h.service.CreateBucket(c.Request.Context(), adapter, c.Param("name"), req.Owner, req.IsPublic)
	if err != nil {
		switch {
		case errors.Is(err, ErrBucketExists):
			c.JSON(http.StatusConflict, gin.H{"error": "bucket already exists"})
		case errors.Is(err, ErrInvalidBucketName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bucket name"})
		default:
			logger.FromContext(c).Error("create bucket", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create bucket"})
		}
		return
	}

	c.JSON(http.StatusOK, bucket)
}

func (h *httpHandler) listBuckets(c *gin.Context) {
	buckets, err := h.service.ListBuckets(c.Request.Context())
	if err != nil {
		logger.FromContext(c).Error("list buckets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list buckets"})
		return
	}
	if buckets == nil {
		buckets = []Bucket{}
	}
	c.JSON(http.StatusOK, buckets)
}

func (h *httpHandler) getBucket(c *gin.Context) {
	bucket, err := h.service.GetBucket(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, ErrBucketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
			return
		}
		logger.FromContext(c).Error("get bucket", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch bucket"})
		return
	}

	c.JSON(http.StatusOK, bucket)
}

func (h *httpHandler) deleteBucket(c *gin.Context) {
	deleted, err := h.service.DeleteBucket(c.Request.Context(), c.Param("name"))
	if err != nil {
		logger.FromContext(c).Error("delete bucket", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete bucket"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
