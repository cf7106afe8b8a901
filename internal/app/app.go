package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/guttosm/nsepulse/config"
	"github.com/guttosm/nsepulse/internal/api"
	"github.com/guttosm/nsepulse/internal/cache"
	"github.com/guttosm/nsepulse/internal/ingestion"
	"github.com/guttosm/nsepulse/internal/logger"
	"github.com/guttosm/nsepulse/internal/service"
	"github.com/guttosm/nsepulse/internal/storage"
)

// components groups the dependencies shared by the API and ingest modes.
type components struct {
	db       *sql.DB
	redis    *redis.Client
	repo     storage.StockRepository
	cache    cache.QueryCache
	ingester *ingestion.Ingester
}

func (c *components) close() {
	if c.redis != nil {
		_ = c.redis.Close()
	}
	_ = c.db.Close()
}

// buildComponents opens Postgres and the optional Redis cache and wires the
// repository, cache and ingester on top of them.
func buildComponents(cfg config.Config) (*components, error) {
	// indirection for unit testing
	db, err := postgresOpener(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisOpener(cfg)
	if err != nil {
		// Queries fall through to Postgres while the cache is unreachable.
		logger.L().Warn().Err(err).Msg("redis unavailable at startup, serving uncached")
	}

	c := &components{
		db:    db,
		redis: rdb,
		repo:  storage.NewStockRepository(db),
		cache: cache.Nop{},
	}
	if rdb != nil {
		c.cache = cache.NewRedisCache(rdb, cfg.Redis.TTL)
	}
	c.ingester = ingestion.NewIngester(c.repo, c.cache)

	return c, nil
}

// InitializeApp sets up all application dependencies and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Connects to PostgreSQL using InitPostgres() and Redis using InitRedis().
//   - Initializes the repository, query cache, query service and ingester.
//   - Creates the upload directory.
//   - Configures the Gin router with all API routes.
//   - Registers health and readiness probes.
//   - Provides a cleanup function to close resources (DB and Redis connections).
//
// Returns:
//   - *gin.Engine: the configured Gin HTTP router.
//   - func(): cleanup function to be executed on shutdown.
//   - error: any initialization error that occurred.
func InitializeApp() (*gin.Engine, func(), error) {
	// Load global configuration
	cfg := config.AppConfig

	c, err := buildComponents(cfg)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.Upload.Dir, 0o750); err != nil {
		c.close()
		return nil, nil, fmt.Errorf("failed to create upload dir %s: %w", cfg.Upload.Dir, err)
	}

	// Initialize service layer (cached aggregate queries)
	svc := service.NewQueryService(c.repo, c.cache)

	// Initialize HTTP handler layer (business logic to HTTP mapping)
	handler := api.NewHandler(svc, c.ingester, cfg.Upload.Dir, cfg.Upload.MaxBytes)

	// Setup Gin router with routes
	router := api.NewRouter(handler, cfg.Server)

	// Register health and readiness probes
	var cachePing func() error
	if c.redis != nil {
		cachePing = func() error { return c.cache.Ping(context.Background()) }
	}
	api.NewHealthHandler(c.db.Ping, cachePing).Register(router)

	return router, c.close, nil
}

// InitializeIngester wires the ingestion pipeline for the directory mode.
// The returned cleanup closes the DB and Redis connections.
func InitializeIngester() (*ingestion.Ingester, func(), error) {
	c, err := buildComponents(config.AppConfig)
	if err != nil {
		return nil, nil, err
	}
	return c.ingester, c.close, nil
}
