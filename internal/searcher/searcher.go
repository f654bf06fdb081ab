// Package searcher answers free-text queries against a built index, serving
// repeated queries from the optional result cache.
package searcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/metrics"
)

type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
}

type Service struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	tokenizer    *tokenizer.Tokenizer
	defaultLimit int
	maxResults   int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewService wires a query path. queryCache may be nil.
func NewService(exec SearchExecutor, queryCache *cache.QueryCache, tok *tokenizer.Tokenizer, cfg config.SearchConfig, m *metrics.Metrics) *Service {
	if tok == nil {
		tok = tokenizer.New(nil)
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Service{
		executor:     exec,
		cache:        queryCache,
		tokenizer:    tok,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		metrics:      m,
		logger:       slog.Default().With("component", "searcher"),
	}
}

// Cache returns the result cache, or nil when caching is disabled.
func (s *Service) Cache() *cache.QueryCache {
	return s.cache
}

// Limit clamps a requested result count to the configured bounds.
func (s *Service) Limit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if s.maxResults > 0 && limit > s.maxResults {
		limit = s.maxResults
	}
	return limit
}

func (s *Service) Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "searcher")
	limit = s.Limit(limit)
	plan := parser.Parse(query, s.tokenizer)

	var (
		result *executor.SearchResult
		cached bool
		err    error
	)
	cacheStatus := "disabled"
	if s.cache != nil {
		result, cached, err = s.cache.GetOrCompute(ctx, plan, limit, func() (*executor.SearchResult, error) {
			return s.executor.Execute(ctx, plan, limit)
		})
		cacheStatus = "miss"
		if cached {
			cacheStatus = "hit"
		}
	} else {
		result, err = s.executor.Execute(ctx, plan, limit)
	}
	s.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		log.Error("search failed", "query", query, "error", err)
		return nil, err
	}

	resultType := "hit"
	if len(result.Results) == 0 {
		resultType = "zero_result"
	}
	s.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	log.Info("search completed",
		"query", query,
		"terms", plan.Terms,
		"results", len(result.Results),
		"total_hits", result.TotalHits,
		"cache", cacheStatus,
		"duration", time.Since(start),
	)
	return result, nil
}
