// Package rank applies inverse document frequency to merged shards. Each
// posting score is multiplied by log2(Ntot/df) and rounded to three decimals,
// and the shard is marked finalized so the pass cannot be applied twice.
package rank

import (
	"context"
	"math"
	"time"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/logger"
)

// IDF returns log2(ntot/df).
func IDF(ntot, df int) float64 {
	return math.Log2(float64(ntot) / float64(df))
}

// Round3 rounds x to three decimal digits.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

type Result struct {
	Shards   int
	Terms    int
	Postings int
}

type Finalizer struct {
	layout *shard.Layout
	writer *segment.Writer
}

func New(layout *shard.Layout, shardDir string) *Finalizer {
	return &Finalizer{
		layout: layout,
		writer: segment.NewWriter(shardDir),
	}
}

// Run rewrites every shard with IDF-weighted scores. No shard is touched if
// any of them is already finalized.
func (f *Finalizer) Run(ctx context.Context, ntot int) (*Result, error) {
	if ntot <= 0 {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, "rank", "total document count must be positive, got %d", ntot)
	}
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "finalizer")

	names := f.layout.Names()
	for _, name := range names {
		r, err := segment.OpenReader(f.writer.Path(name))
		if err != nil {
			return nil, err
		}
		finalized := r.Finalized()
		r.Close()
		if finalized {
			return nil, apperrors.Newf(apperrors.ErrAlreadyFinalized, "rank", "shard %s", name)
		}
	}

	res := &Result{Shards: len(names)}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, entries, err := segment.ReadAll(f.writer.Path(name))
		if err != nil {
			return nil, err
		}
		for i, e := range entries {
			entries[i].Postings = applyIDF(e.Postings, ntot)
			res.Postings += len(e.Postings)
		}
		res.Terms += len(entries)
		if _, err := f.writer.Write(name, entries, segment.FlagFinalized); err != nil {
			return nil, err
		}
		log.Debug("shard finalized", "shard", name, "terms", len(entries))
	}

	log.Info("finalization finished",
		"shards", res.Shards,
		"terms", res.Terms,
		"postings", res.Postings,
		"total_docs", ntot,
		"duration", time.Since(start),
	)
	return res, nil
}

func applyIDF(postings index.PostingList, ntot int) index.PostingList {
	idf := IDF(ntot, len(postings))
	out := make(index.PostingList, len(postings))
	for i, p := range postings {
		out[i] = index.Posting{DocID: p.DocID, Score: Round3(p.Score * idf)}
	}
	return out
}
