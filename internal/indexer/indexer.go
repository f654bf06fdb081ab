// Package indexer runs the partitioned indexing stage: the registered
// documents are split into contiguous slices, and one worker per slice
// extracts, tokenizes and scores each document into a private partial index
// that is written to disk when the slice is done.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/extract"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/partition"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/metrics"
)

// MinWorkers is the smallest accepted indexing worker count.
const MinWorkers = 3

// WeightedBoost is added to the score of a term that occurs in weighted text.
const WeightedBoost = 1.75

// Result summarises one indexing run.
type Result struct {
	PartialFiles []string
	Documents    int
	Postings     int
	Aborted      []int
}

type Indexer struct {
	cfg       config.IndexerConfig
	extractor *extract.Extractor
	tokenizer *tokenizer.Tokenizer
	metrics   *metrics.Metrics
}

// New validates cfg and builds an indexer. A nil tokenizer uses the
// permissive dictionary.
func New(cfg config.IndexerConfig, tok *tokenizer.Tokenizer, m *metrics.Metrics) (*Indexer, error) {
	if cfg.Workers < MinWorkers {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, "index",
			"at least %d indexing workers required, got %d", MinWorkers, cfg.Workers)
	}
	if cfg.PartialDir == "" {
		return nil, apperrors.New(apperrors.ErrConfiguration, "index", "partial directory not set")
	}
	if tok == nil {
		tok = tokenizer.New(nil)
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Indexer{
		cfg:       cfg,
		extractor: extract.New(cfg.WeightedTags),
		tokenizer: tok,
		metrics:   m,
	}, nil
}

// Run indexes entries and writes one partial index per worker. A worker that
// exhausts its posting budget stops early and still writes what it has; a
// missing or corrupt document fails the whole run.
func (ix *Indexer) Run(ctx context.Context, entries []registry.Entry) (*Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "indexer")

	if err := index.RemovePartialFiles(ix.cfg.PartialDir); err != nil {
		return nil, err
	}

	ranges := partition.Split(len(entries), ix.cfg.Workers)
	outcomes := make([]workerOutcome, len(ranges))

	eg, egCtx := errgroup.WithContext(ctx)
	for w, r := range ranges {
		eg.Go(func() error {
			out, err := ix.runWorker(egCtx, w, entries[r.Start:r.End])
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			outcomes[w] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for w, out := range outcomes {
		res.PartialFiles = append(res.PartialFiles, out.path)
		res.Documents += out.docs
		res.Postings += out.postings
		if out.aborted {
			res.Aborted = append(res.Aborted, w)
		}
	}
	log.Info("indexing finished",
		"workers", len(ranges),
		"documents", res.Documents,
		"postings", res.Postings,
		"aborted_workers", len(res.Aborted),
		"duration", time.Since(start),
	)
	return res, nil
}

type workerOutcome struct {
	path     string
	docs     int
	postings int
	aborted  bool
}

func (ix *Indexer) runWorker(ctx context.Context, worker int, slice []registry.Entry) (workerOutcome, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "indexer", "worker", worker)
	partial := index.NewPartial(ix.cfg.MaxPostingsPerWorker)
	out := workerOutcome{path: filepath.Join(ix.cfg.PartialDir, index.PartialFileName(worker))}

	for _, entry := range slice {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		scores, err := ix.scoreDocument(entry.Path)
		if err != nil {
			return out, err
		}
		if err := partial.Reserve(len(scores)); err != nil {
			if !errors.Is(err, apperrors.ErrResourceExhausted) {
				return out, err
			}
			log.Warn("worker stopped early",
				"doc_id", entry.ID,
				"postings", partial.PostingCount(),
				"error", err,
			)
			ix.metrics.WorkerAbortsTotal.WithLabelValues("index").Inc()
			out.aborted = true
			break
		}
		terms := make([]string, 0, len(scores))
		for term := range scores {
			terms = append(terms, term)
		}
		sort.Strings(terms)
		for _, term := range terms {
			partial.Add(term, index.Posting{DocID: entry.ID, Score: scores[term]})
		}
		out.docs++
		ix.metrics.DocsIndexedTotal.Inc()
	}

	if err := index.WritePartialFile(out.path, partial); err != nil {
		return out, err
	}
	out.postings = partial.PostingCount()
	ix.metrics.PostingsWritten.Add(float64(out.postings))
	log.Info("worker finished",
		"files", len(slice),
		"docs", out.docs,
		"terms", partial.TermCount(),
		"postings", out.postings,
		"duration", time.Since(start),
	)
	return out, nil
}

func (ix *Indexer) scoreDocument(path string) (map[string]float64, error) {
	doc, err := corpus.Load(path)
	if err != nil {
		return nil, err
	}
	weighted, rest, err := ix.extractor.Extract(doc.Content)
	if err != nil {
		return nil, apperrors.Storage("index", "extracting "+path, err)
	}
	return Score(ix.tokenizer.Terms(weighted), ix.tokenizer.Terms(rest)), nil
}

// Score weighs every distinct term of a document: log10 of its combined count
// plus one, plus WeightedBoost when the term occurs in the weighted stream.
func Score(weighted, rest []string) map[string]float64 {
	wCount := make(map[string]int, len(weighted))
	for _, t := range weighted {
		wCount[t]++
	}
	total := make(map[string]int, len(weighted)+len(rest))
	for t, c := range wCount {
		total[t] += c
	}
	for _, t := range rest {
		total[t]++
	}
	scores := make(map[string]float64, len(total))
	for t, c := range total {
		s := math.Log10(float64(c)) + 1
		if wCount[t] > 0 {
			s += WeightedBoost
		}
		scores[t] = s
	}
	return scores
}
