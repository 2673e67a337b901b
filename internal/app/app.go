// Package app wires configuration, storage and services into a runnable object store.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/abduss/objectd/internal/auth"
	"github.com/abduss/objectd/internal/bucket"
	"github.com/abduss/objectd/internal/config"
	"github.com/abduss/objectd/internal/file"
	"github.com/abduss/objectd/internal/presigned"
	"github.com/abduss/objectd/internal/server"
	"github.com/abduss/objectd/internal/storage"
	"github.com/abduss/objectd/internal/tenant"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the long-lived services of one objectd process.
type App struct {
	Config        config.Config
	DB            *pgxpool.Pool
	Resolver      tenant.Resolver
	Authenticator *auth.Authenticator
	Buckets       *bucket.Service
	Files         *file.Service
	Signer        *presigned.Service

	log *zap.Logger
}

// New connects to PostgreSQL, applies the schema, prepares the data directory and
// loads the signing key.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if _, err := storage.EnsureDir(storage.FilesRoot(cfg.Storage.DataPath)); err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}
	if _, err := storage.NewAdapter(cfg.Storage.DefaultAdapter, cfg.Storage.DataPath); err != nil {
		return nil, fmt.Errorf("default adapter: %w", err)
	}

	key, err := presigned.LoadSigningKey(cfg.Auth.SignatureSecret, cfg.Storage.DataPath)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	pool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if err := storage.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	resolver := tenant.NewResolver(cfg.Storage.DomainSuffix, cfg.Storage.APIAlias, cfg.Storage.HTTPS)
	buckets := bucket.NewService(bucket.NewRepository(pool), cfg.Storage.DataPath, resolver, log.Named("bucket"))
	files := file.NewService(file.NewRepository(pool), buckets, resolver, cfg.Storage.CascadeAncestors, log.Named("file"))

	return &App{
		Config:        cfg,
		DB:            pool,
		Resolver:      resolver,
		Authenticator: auth.NewAuthenticator(cfg.Auth),
		Buckets:       buckets,
		Files:         files,
		Signer:        presigned.NewService(key, cfg.Auth.SignatureTTL, cfg.Auth.MaxSignatureTTL),
		log:           log,
	}, nil
}

// Router builds the HTTP handler serving this app.
func (a *App) Router() *server.Router {
	return server.NewRouter(server.Dependencies{
		Config:        a.Config,
		DB:            a.DB,
		Resolver:      a.Resolver,
		Authenticator: a.Authenticator,
		BucketService: a.Buckets,
		FileService:   a.Files,
		Signer:        a.Signer,
	})
}

// RunSweeper removes stale pending objects every SweepInterval until ctx is done.
// A non-positive interval disables it.
func (a *App) RunSweeper(ctx context.Context) {
	interval := a.Config.Storage.SweepInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Files.SweepPending(ctx, a.Config.Storage.PendingTTL); err != nil && ctx.Err() == nil {
				a.log.Warn("sweep pending objects", zap.Error(err))
			}
		}
	}
}

// Close releases the database pool.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
