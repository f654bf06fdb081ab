// Package executor is the query engine. It resolves query terms against the
// shard files, loading each shard's dictionary at most once per run of
// consecutive same-shard terms, and combines the postings into ranked
// documents.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/metrics"
)

type SearchResult struct {
	Query      string             `json:"query"`
	TotalHits  int                `json:"total_hits"`
	Results    []ranker.ScoredDoc `json:"results"`
	TermStats  map[string]int     `json:"term_stats"`
	ShardLoads int                `json:"shard_loads"`
}

// LookupResult holds the postings found for each term. Missing terms are
// absent from Postings.
type LookupResult struct {
	Postings   map[string]index.PostingList
	Order      []string
	ShardLoads int
}

type Executor struct {
	layout   *shard.Layout
	dir      string
	registry registry.Lookup
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(layout *shard.Layout, shardDir string, lookup registry.Lookup, m *metrics.Metrics) *Executor {
	if m == nil {
		m = metrics.Discard()
	}
	return &Executor{
		layout:   layout,
		dir:      shardDir,
		registry: lookup,
		metrics:  m,
		logger:   slog.Default().With("component", "query-executor"),
	}
}

// Lookup opens every shard, resolves terms in sorted order and closes the
// shards before returning.
func (e *Executor) Lookup(ctx context.Context, terms []string) (res *LookupResult, err error) {
	readers, err := e.openAll()
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, r := range readers {
			if cErr := r.Close(); cErr != nil && err == nil {
				err = fmt.Errorf("closing shard %s: %w", r.Path(), cErr)
			}
		}
	}()

	sorted := append([]string(nil), terms...)
	sort.Strings(sorted)

	res = &LookupResult{Postings: make(map[string]index.PostingList)}
	current := -1
	var table *segment.Table
	for i, term := range sorted {
		if i > 0 && term == sorted[i-1] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := e.layout.Index(term)
		if idx != current {
			table, err = readers[idx].Load()
			if err != nil {
				return nil, err
			}
			current = idx
			res.ShardLoads++
			e.metrics.ShardLoadsTotal.Inc()
		}
		postings, ok, err := table.Search(term)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		res.Postings[term] = postings
		res.Order = append(res.Order, term)
	}
	return res, nil
}

func (e *Executor) openAll() ([]*segment.Reader, error) {
	names := e.layout.Names()
	readers := make([]*segment.Reader, 0, len(names))
	for _, name := range names {
		r, err := segment.OpenReader(shard.Path(e.dir, name))
		if err != nil {
			for _, open := range readers {
				open.Close()
			}
			return nil, err
		}
		readers = append(readers, r)
	}
	return readers, nil
}

// Execute runs plan and returns at most limit documents with their paths.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if len(plan.Terms) == 0 {
		return &SearchResult{
			Query:     plan.RawQuery,
			Results:   []ranker.ScoredDoc{},
			TermStats: map[string]int{},
		}, nil
	}

	found, err := e.Lookup(ctx, append(append([]string(nil), plan.Terms...), plan.ExcludeTerms...))
	if err != nil {
		return nil, err
	}

	searchPostings := make(map[string]index.PostingList)
	termStats := make(map[string]int)
	for _, term := range plan.Terms {
		if postings, ok := found.Postings[term]; ok {
			searchPostings[term] = postings
			termStats[term] = len(postings)
		}
	}
	exclude := make(map[int]struct{})
	for _, term := range plan.ExcludeTerms {
		for _, p := range found.Postings[term] {
			exclude[p.DocID] = struct{}{}
		}
	}

	// An AND query with an unmatched term has no results.
	intersect := plan.Type == parser.QueryAND
	var scores ranker.Scores
	if !intersect || len(searchPostings) == len(plan.Terms) {
		scores = ranker.Combine(searchPostings, intersect, exclude)
	}
	top := merger.TopK(scores, limit)
	for i := range top {
		if path, ok := e.registry.Path(top[i].DocID); ok {
			top[i].Path = path
		} else {
			e.logger.Warn("document id missing from registry", "doc_id", top[i].DocID)
		}
	}

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"type", plan.Type.String(),
		"candidates", len(scores),
		"results", len(top),
		"shard_loads", found.ShardLoads,
	)
	return &SearchResult{
		Query:      plan.RawQuery,
		TotalHits:  len(scores),
		Results:    top,
		TermStats:  termStats,
		ShardLoads: found.ShardLoads,
	}, nil
}
