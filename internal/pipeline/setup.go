package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/sqlite"
)

// dedupSetTTL bounds the life of a shared hash set whose run died before
// discarding it.
const dedupSetTTL = time.Hour

// Resources holds the external connections a run was configured with.
type Resources struct {
	Mirrors  []registry.Store
	HashSet  dedup.HashSet
	Redis    *pkgredis.Client
	Notifier Notifier
	closers  []func() error
}

// Open connects every backend cfg enables. A backend required by the build
// that cannot be reached is a configuration error; an unreachable query cache
// only disables caching.
func Open(ctx context.Context, cfg *config.Config) (_ *Resources, err error) {
	res := &Resources{}
	defer func() {
		if err != nil {
			res.Close()
		}
	}()
	log := slog.Default().With("component", "setup")

	switch cfg.Registry.Backend {
	case config.RegistrySQLite:
		db, err := sqlite.Open(cfg.Registry.SQLitePath)
		if err != nil {
			return nil, apperrors.Storage("registry", "opening sqlite mirror", err)
		}
		res.closers = append(res.closers, db.Close)
		store, err := registry.NewSQLStore(ctx, db, registry.DialectSQLite)
		if err != nil {
			return nil, err
		}
		res.Mirrors = append(res.Mirrors, store)
	case config.RegistryPostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrConfiguration, "registry", "postgres mirror: %v", err)
		}
		res.closers = append(res.closers, client.Close)
		store, err := registry.NewSQLStore(ctx, client.DB, registry.DialectPostgres)
		if err != nil {
			return nil, err
		}
		res.Mirrors = append(res.Mirrors, store)
	}

	needSet := cfg.Dedup.Strategy == config.DedupShared && cfg.Dedup.HashSet == config.HashSetRedis
	if needSet || cfg.Search.CacheEnabled {
		client, err := pkgredis.NewClient(cfg.Redis)
		switch {
		case err == nil:
			res.Redis = client
			res.closers = append(res.closers, client.Close)
		case needSet:
			return nil, apperrors.Newf(apperrors.ErrConfiguration, "dedup", "redis hash set: %v", err)
		default:
			log.Warn("redis unavailable, query cache disabled", "addr", cfg.Redis.Addr, "error", err)
		}
	}
	if needSet {
		res.HashSet = dedup.NewRedisSet(res.Redis, uuid.NewString(), dedupSetTTL)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		res.closers = append(res.closers, producer.Close)
		res.Notifier = NewKafkaNotifier(producer)
	}
	return res, nil
}

// Options returns the pipeline options backed by these resources.
func (r *Resources) Options(m *metrics.Metrics) Options {
	return Options{
		HashSet:  r.HashSet,
		Mirrors:  r.Mirrors,
		Notifier: r.Notifier,
		Metrics:  m,
	}
}

func (r *Resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// NewSearchService opens the finalized index described by the manifest in
// the shard directory. res may be nil, which disables caching.
func NewSearchService(ctx context.Context, cfg *config.Config, res *Resources, m *metrics.Metrics) (*searcher.Service, error) {
	man, err := manifest.Read(cfg.Shards.Dir)
	if err != nil {
		return nil, err
	}
	layout, err := shard.NewLayout(cfg.Shards)
	if err != nil {
		return nil, err
	}
	dict, err := tokenizer.LoadDictionary(cfg.Indexer.DictionaryPath)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, "config", "dictionary: %v", err)
	}
	lookup, err := registry.NewJSONStore(cfg.Registry.Path).Load(ctx)
	if err != nil {
		return nil, err
	}
	if lookup.Len() != man.Documents {
		slog.Warn("registry does not match manifest",
			"registry_documents", lookup.Len(),
			"manifest_documents", man.Documents,
		)
	}

	exec := executor.New(layout, cfg.Shards.Dir, lookup, m)
	var queryCache *cache.QueryCache
	if cfg.Search.CacheEnabled && res != nil && res.Redis != nil {
		queryCache = cache.New(res.Redis, cfg.Redis, man.BuildID, m)
	}
	return searcher.NewService(exec, queryCache, tokenizer.New(dict), cfg.Search, m), nil
}

// HealthChecks registers readiness checks for the query server: the index
// must be fully finalized, and Redis, when connected, should answer.
func HealthChecks(cfg *config.Config, res *Resources) *health.Checker {
	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) error {
		return checkIndex(cfg)
	})
	if res != nil && res.Redis != nil {
		checker.RegisterOptional("redis", res.Redis.Ping)
	}
	return checker
}

func checkIndex(cfg *config.Config) error {
	if _, err := manifest.Read(cfg.Shards.Dir); err != nil {
		return err
	}
	layout, err := shard.NewLayout(cfg.Shards)
	if err != nil {
		return err
	}
	for _, name := range layout.Names() {
		r, err := segment.OpenReader(shard.Path(cfg.Shards.Dir, name))
		if err != nil {
			return err
		}
		finalized := r.Finalized()
		r.Close()
		if !finalized {
			return fmt.Errorf("shard %s is not finalized", name)
		}
	}
	return nil
}
