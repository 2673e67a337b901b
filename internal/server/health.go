package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/abduss/objectd/internal/storage"
	"github.com/gin-gonic/gin"
)

const (
	readinessTimeout = 5 * time.Second
	livePath         = "/health/live"
	readyPath        = "/health/ready"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func registerHealthRoutes(router *gin.Engine, deps Dependencies) {
	router.GET(livePath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET(readyPath, func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		if deps.DB != nil {
			if err := deps.DB.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "degraded",
					"component": "postgres",
					"error":     err.Error(),
				})
				return
			}
		}

		if err := checkDataDir(storage.FilesRoot(deps.Config.Storage.DataPath)); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "degraded",
				"component": "storage",
				"error":     err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// checkDataDir verifies that the files root exists and accepts new files.
func checkDataDir(dir string) error {
	if _, err := storage.EnsureDir(dir); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".ready-*")
	if err != nil {
		return fmt.Errorf("data dir not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
