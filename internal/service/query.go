package service

import (
	"context"

	"github.com/guttosm/nsepulse/internal/cache"
	"github.com/guttosm/nsepulse/internal/domain/models"
	"github.com/guttosm/nsepulse/internal/logger"
	"github.com/guttosm/nsepulse/internal/storage"
)

// QueryService exposes the read-only aggregates over persisted stock records.
// Every method is side-effect free apart from populating the query cache.
type QueryService interface {
	// HighestVolume returns the record with the largest volume, or nil if nothing matches.
	HighestVolume(ctx context.Context, filter models.Filter) (*models.StockRecord, error)
	// AverageClose returns the mean close price, or nil if nothing matches.
	AverageClose(ctx context.Context, filter models.Filter) (*float64, error)
	// AverageVWAP returns the mean VWAP, or nil if nothing matches.
	AverageVWAP(ctx context.Context, filter models.Filter) (*float64, error)
}

type queryService struct {
	repo  storage.StockRepository
	cache cache.QueryCache
}

// NewQueryService wires the repository and cache. A nil cache disables caching.
func NewQueryService(repo storage.StockRepository, c cache.QueryCache) QueryService {
	if c == nil {
		c = cache.Nop{}
	}
	return &queryService{repo: repo, cache: c}
}

func (s *queryService) HighestVolume(ctx context.Context, filter models.Filter) (*models.StockRecord, error) {
	return cached(ctx, s.cache, "highest_volume:"+filter.Key(), func() (*models.StockRecord, error) {
		return s.repo.FindHighestVolume(ctx, filter)
	})
}

func (s *queryService) AverageClose(ctx context.Context, filter models.Filter) (*float64, error) {
	return s.average(ctx, storage.AverageClose, filter)
}

func (s *queryService) AverageVWAP(ctx context.Context, filter models.Filter) (*float64, error) {
	return s.average(ctx, storage.AverageVWAP, filter)
}

func (s *queryService) average(ctx context.Context, field storage.AverageField, filter models.Filter) (*float64, error) {
	key := "average_" + string(field) + ":" + filter.Key()
	return cached(ctx, s.cache, key, func() (*float64, error) {
		return s.repo.AggregateAverage(ctx, field, filter)
	})
}

// cached serves key from c when present, otherwise calls load and stores the
// result. Cache errors are logged and never fail the query.
func cached[T any](ctx context.Context, c cache.QueryCache, key string, load func() (*T, error)) (*T, error) {
	var hit *T
	ok, err := c.Get(ctx, key, &hit)
	if err != nil {
		logger.L().Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if ok {
		return hit, nil
	}

	out, err := load()
	if err != nil {
		return nil, err
	}

	if err := c.Set(ctx, key, out); err != nil {
		logger.L().Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return out, nil
}
