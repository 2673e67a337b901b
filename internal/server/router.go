package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/abduss/objectd/internal/auth"
	"github.com/abduss/objectd/internal/bucket"
	"github.com/abduss/objectd/internal/config"
	"github.com/abduss/objectd/internal/file"
	"github.com/abduss/objectd/internal/logger"
	"github.com/abduss/objectd/internal/metrics"
	"github.com/abduss/objectd/internal/presigned"
	"github.com/abduss/objectd/internal/tenant"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config        config.Config
	DB            pinger
	Resolver      tenant.Resolver
	Authenticator *auth.Authenticator
	BucketService *bucket.Service
	FileService   *file.Service
	Signer        *presigned.Service
}

// Router picks an engine by request host: the API alias host gets the administrative
// routes, bucket hosts get the object routes. Health and metrics answer on every host.
type Router struct {
	resolver tenant.Resolver
	system   *gin.Engine
	admin    *gin.Engine
	buckets  *gin.Engine
	// systemPaths are served by the system engine whatever the host.
	systemPaths map[string]struct{}
}

// NewRouter builds the host dispatcher and its engines.
func NewRouter(deps Dependencies) *Router {
	metrics.InitMetrics()

	system := gin.New()
	system.Use(gin.Recovery())
	registerHealthRoutes(system, deps)

	systemPaths := map[string]struct{}{
		livePath:  {},
		readyPath: {},
	}
	if path := deps.Config.Metrics.PrometheusPath; path != "" {
		metrics.Register(system, path)
		systemPaths[path] = struct{}{}
	}

	admin := newEngine(deps)
	if deps.BucketService != nil {
		bucket.RegisterRoutes(&admin.RouterGroup, deps.BucketService, deps.Config.Storage.DefaultAdapter)
	}

	buckets := newEngine(deps)
	if deps.FileService != nil {
		file.RegisterRoutes(buckets, deps.FileService, deps.Signer)
	}

	return &Router{
		resolver:    deps.Resolver,
		system:      system,
		admin:       admin,
		buckets:     buckets,
		systemPaths: systemPaths,
	}
}

func newEngine(deps Dependencies) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.Middleware())
	engine.Use(metrics.Middleware())
	if deps.Authenticator != nil {
		engine.Use(auth.Middleware(deps.Authenticator))
	}
	return engine
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if _, ok := r.systemPaths[req.URL.Path]; ok {
		r.system.ServeHTTP(w, req)
		return
	}

	target, err := r.resolver.Resolve(req.Host)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, tenant.ErrInvalidDomain) {
			status = http.StatusNotFound
		}
		zap.L().Debug("unroutable host", zap.String("host", req.Host), zap.Error(err))
		writeError(w, status, err)
		return
	}

	if target.Admin {
		r.admin.ServeHTTP(w, req)
		return
	}
	r.buckets.ServeHTTP(w, req.WithContext(tenant.WithBucket(req.Context(), target.Bucket)))
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": strings.ToLower(err.Error())})
}
