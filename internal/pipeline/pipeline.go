// Package pipeline runs a full index build: dedup, registry, partitioned
// indexing, shard merge and IDF finalization, each stage a barrier for the
// next. Every stage runs inside a child span of the build's root span, so
// the finished span tree is the per-stage timing report.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/merge"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/rank"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/tracing"
)

// Stage names, in execution order.
const (
	StageDedup    = "dedup"
	StageRegistry = "registry"
	StageIndex    = "index"
	StageMerge    = "merge"
	StageFinalize = "finalize"
)

// Options carries the optional collaborators of a build.
type Options struct {
	// HashSet backs the shared dedup strategy; nil uses an in-memory set.
	HashSet dedup.HashSet
	// Mirrors receive a copy of the registry after the JSON file is written.
	Mirrors  []registry.Store
	Notifier Notifier
	Metrics  *metrics.Metrics
}

type Pipeline struct {
	cfg       *config.Config
	layout    *shard.Layout
	tokenizer *tokenizer.Tokenizer
	gate      *dedup.Gate
	registry  *registry.Registry
	indexer   *indexer.Indexer
	merger    *merge.Merger
	finalizer *rank.Finalizer
	notifier  Notifier
	metrics   *metrics.Metrics
}

// Report describes a finished build.
type Report struct {
	BuildID   string
	Span      *tracing.Span
	Scanned   int
	Accepted  int
	Rejected  map[string]int
	Documents int
	Postings  int
	Aborted   []int
	Terms     map[string]int
	Manifest  manifest.Manifest
}

// New validates cfg and assembles every stage. Configuration problems are
// reported here, before any work starts.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Discard()
	}
	layout, err := shard.NewLayout(cfg.Shards)
	if err != nil {
		return nil, err
	}
	dict, err := tokenizer.LoadDictionary(cfg.Indexer.DictionaryPath)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, "config", "dictionary: %v", err)
	}
	tok := tokenizer.New(dict)

	gate, err := dedup.New(cfg.Dedup, cfg.Corpus.Encodings, opts.HashSet, m)
	if err != nil {
		return nil, err
	}
	ix, err := indexer.New(cfg.Indexer, tok, m)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:       cfg,
		layout:    layout,
		tokenizer: tok,
		gate:      gate,
		registry:  registry.New(registry.NewJSONStore(cfg.Registry.Path), opts.Mirrors...),
		indexer:   ix,
		merger:    merge.New(layout, cfg.Shards.Dir, m),
		finalizer: rank.New(layout, cfg.Shards.Dir),
		notifier:  opts.Notifier,
		metrics:   m,
	}, nil
}

func (p *Pipeline) Layout() *shard.Layout {
	return p.layout
}

func (p *Pipeline) Tokenizer() *tokenizer.Tokenizer {
	return p.tokenizer
}

// BuildCorpus walks the configured corpus directory and builds from it.
func (p *Pipeline) BuildCorpus(ctx context.Context) (*Report, error) {
	paths, err := corpus.Walk(p.cfg.Corpus.Dir)
	if err != nil {
		return nil, err
	}
	return p.Build(ctx, paths)
}

// Build rebuilds the index from the candidate corpus files. A fatal error in
// any stage stops the build; outputs of earlier stages are left in place.
func (p *Pipeline) Build(ctx context.Context, paths []string) (*Report, error) {
	buildID := uuid.NewString()
	ctx = logger.WithBuildID(ctx, buildID)
	ctx, root := tracing.StartSpan(ctx, "build", buildID)
	log := logger.FromContext(ctx).With("component", "pipeline")
	log.Info("build started", "candidates", len(paths))

	report := &Report{BuildID: buildID, Span: root}
	created := time.Now().UTC()

	if err := manifest.Remove(p.cfg.Shards.Dir); err != nil {
		return nil, err
	}

	var accepted []string
	err := p.stage(ctx, StageDedup, func(ctx context.Context, span *tracing.Span) error {
		res, err := p.gate.Run(ctx, paths)
		if err != nil {
			return err
		}
		accepted = res.Accepted
		report.Scanned = res.Scanned
		report.Accepted = len(res.Accepted)
		report.Rejected = res.Rejected
		span.SetAttr("scanned", res.Scanned)
		span.SetAttr("accepted", len(res.Accepted))
		if len(res.Accepted) == 0 {
			return apperrors.New(apperrors.ErrInvalidInput, StageDedup, "no documents accepted")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var entries []registry.Entry
	err = p.stage(ctx, StageRegistry, func(ctx context.Context, span *tracing.Span) error {
		var err error
		entries, err = p.registry.Register(ctx, accepted)
		span.SetAttr("documents", len(entries))
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, StageIndex, func(ctx context.Context, span *tracing.Span) error {
		res, err := p.indexer.Run(ctx, entries)
		if err != nil {
			return err
		}
		report.Documents = res.Documents
		report.Postings = res.Postings
		report.Aborted = res.Aborted
		span.SetAttr("documents", res.Documents)
		span.SetAttr("postings", res.Postings)
		span.SetAttr("aborted_workers", len(res.Aborted))
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, StageMerge, func(ctx context.Context, span *tracing.Span) error {
		res, err := p.merger.Run(ctx, p.cfg.Indexer.PartialDir)
		if err != nil {
			return err
		}
		report.Terms = res.Terms
		span.SetAttr("partials", res.Partials)
		span.SetAttr("postings", res.Postings)
		return index.RemovePartialFiles(p.cfg.Indexer.PartialDir)
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, StageFinalize, func(ctx context.Context, span *tracing.Span) error {
		res, err := p.finalizer.Run(ctx, len(entries))
		if err != nil {
			return err
		}
		span.SetAttr("terms", res.Terms)
		report.Manifest = manifest.Manifest{
			BuildID:     buildID,
			Documents:   len(entries),
			Shards:      p.layout.Names(),
			CreatedAt:   created,
			FinalizedAt: time.Now().UTC(),
		}
		return manifest.Write(p.cfg.Shards.Dir, report.Manifest)
	})
	if err != nil {
		return nil, err
	}
	root.End()

	log.Info("build finished",
		"documents", len(entries),
		"postings", report.Postings,
		"duration", root.Duration,
	)
	p.notify(ctx, report)
	return report, nil
}

// stage runs fn inside a child span and records its duration. Errors are
// tagged with the stage name.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context, *tracing.Span) error) error {
	ctx, span := tracing.StartChildSpan(ctx, name)
	err := fn(ctx, span)
	span.End()
	p.metrics.StageDuration.WithLabelValues(name).Observe(span.Duration.Seconds())
	if err != nil {
		span.Fail(err)
		logger.FromContext(ctx).Error("stage failed", "stage", name, "error", err)
		if apperrors.StageOf(err) == "" {
			return &apperrors.AppError{Err: err, Stage: name, Message: "stage failed"}
		}
		return err
	}
	return nil
}

func (p *Pipeline) notify(ctx context.Context, report *Report) {
	if p.notifier == nil {
		return
	}
	event := BuildCompleted{
		BuildID:     report.BuildID,
		Documents:   report.Manifest.Documents,
		Postings:    report.Postings,
		Shards:      report.Terms,
		DurationMS:  report.Span.Duration.Milliseconds(),
		CompletedAt: report.Manifest.FinalizedAt,
	}
	if err := p.notifier.Notify(ctx, event); err != nil {
		logger.FromContext(ctx).Warn("build notification failed", "error", err)
	}
}
