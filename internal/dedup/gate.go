// Package dedup implements the dedup gate: a parallel scan of candidate corpus
// files that drops files with a disallowed encoding and files whose body has
// already been seen, returning the accepted file list.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/partition"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/metrics"
)

// Rejection reasons.
const (
	ReasonEncoding   = "encoding"
	ReasonDuplicate  = "duplicate"
	ReasonUnreadable = "unreadable"
)

// Result is the outcome of one gate run. Accepted preserves input order.
type Result struct {
	Accepted []string
	Scanned  int
	Rejected map[string]int
}

// Gate runs the dedup stage.
type Gate struct {
	workers   int
	strategy  string
	encodings corpus.EncodingSet
	set       HashSet
	metrics   *metrics.Metrics
}

// New creates a gate. set is used by the shared strategy only; a nil set
// falls back to an in-process MemorySet.
func New(cfg config.DedupConfig, encodings []string, set HashSet, m *metrics.Metrics) (*Gate, error) {
	if cfg.Workers < 1 {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, "dedup", "workers must be >= 1, got %d", cfg.Workers)
	}
	switch cfg.Strategy {
	case config.DedupPartitioned, config.DedupShared:
	default:
		return nil, apperrors.Newf(apperrors.ErrConfiguration, "dedup", "unknown strategy %q", cfg.Strategy)
	}
	if set == nil {
		set = NewMemorySet()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Gate{
		workers:   cfg.Workers,
		strategy:  cfg.Strategy,
		encodings: corpus.NewEncodingSet(encodings),
		set:       set,
		metrics:   m,
	}, nil
}

// Run filters paths. Unreadable, wrongly encoded and duplicate files are
// counted in Result.Rejected; only context cancellation or a hash-set backend
// failure returns an error.
func (g *Gate) Run(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "dedup")
	log.Info("dedup started", "files", len(paths), "workers", g.workers, "strategy", g.strategy)

	var (
		res *Result
		err error
	)
	if g.strategy == config.DedupShared {
		res, err = g.runShared(ctx, log, paths)
	} else {
		res, err = g.runPartitioned(ctx, log, paths)
	}
	if err != nil {
		return nil, err
	}

	g.metrics.FilesScannedTotal.Add(float64(res.Scanned))
	g.metrics.FilesAcceptedTotal.Add(float64(len(res.Accepted)))
	for reason, n := range res.Rejected {
		g.metrics.FilesRejectedTotal.WithLabelValues(reason).Add(float64(n))
	}
	log.Info("dedup finished",
		"scanned", res.Scanned,
		"accepted", len(res.Accepted),
		"rejected_encoding", res.Rejected[ReasonEncoding],
		"rejected_duplicate", res.Rejected[ReasonDuplicate],
		"rejected_unreadable", res.Rejected[ReasonUnreadable],
		"duration", time.Since(start),
	)
	return res, nil
}

type candidate struct {
	digest Digest
	reason string
}

// examine loads one file and either returns its digest or a rejection reason.
func (g *Gate) examine(log *slog.Logger, path string) candidate {
	doc, err := corpus.Load(path)
	if err != nil {
		log.Debug("unreadable corpus file", "path", path, "error", err)
		return candidate{reason: ReasonUnreadable}
	}
	if !g.encodings.Allows(doc.Encoding) {
		return candidate{reason: ReasonEncoding}
	}
	return candidate{digest: Hash(doc.Content)}
}

// runPartitioned hashes contiguous slices in parallel, then hands every
// digest to the worker that owns it. Owners keep the first occurrence in
// input order, so the result is deterministic and race-free.
func (g *Gate) runPartitioned(ctx context.Context, log *slog.Logger, paths []string) (*Result, error) {
	cands := make([]candidate, len(paths))

	eg, egCtx := errgroup.WithContext(ctx)
	for w, r := range partition.Split(len(paths), g.workers) {
		eg.Go(func() error {
			for i := r.Start; i < r.End; i++ {
				if err := egCtx.Err(); err != nil {
					return err
				}
				cands[i] = g.examine(log, paths[i])
			}
			log.Debug("hash worker done", "worker", w, "files", r.Len())
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("dedup hash phase: %w", err)
	}

	owned := make([][]int, g.workers)
	for i, c := range cands {
		if c.reason == "" {
			o := c.digest.Owner(g.workers)
			owned[o] = append(owned[o], i)
		}
	}

	keep := make([]bool, len(paths))
	eg, egCtx = errgroup.WithContext(ctx)
	for w := range owned {
		eg.Go(func() error {
			seen := make(map[Digest]struct{}, len(owned[w]))
			for _, i := range owned[w] {
				if err := egCtx.Err(); err != nil {
					return err
				}
				if _, dup := seen[cands[i].digest]; dup {
					cands[i].reason = ReasonDuplicate
					continue
				}
				seen[cands[i].digest] = struct{}{}
				keep[i] = true
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("dedup owner phase: %w", err)
	}

	res := &Result{Scanned: len(paths), Rejected: make(map[string]int)}
	for i, c := range cands {
		if keep[i] {
			res.Accepted = append(res.Accepted, paths[i])
		} else {
			res.Rejected[c.reason]++
		}
	}
	return res, nil
}

// runShared gives each worker a contiguous slice and checks every digest
// against the shared set. Two workers racing on equal content may both keep
// it when the backend's add is not atomic; MemorySet and RedisSet are.
func (g *Gate) runShared(ctx context.Context, log *slog.Logger, paths []string) (res *Result, err error) {
	defer func() {
		if dErr := g.set.Discard(context.WithoutCancel(ctx)); dErr != nil {
			log.Warn("discarding dedup hash set failed", "error", dErr)
		}
	}()

	ranges := partition.Split(len(paths), g.workers)
	kept := make([][]string, len(ranges))
	rejected := make([]map[string]int, len(ranges))

	eg, egCtx := errgroup.WithContext(ctx)
	for w, r := range ranges {
		eg.Go(func() error {
			local := make(map[string]int)
			for i := r.Start; i < r.End; i++ {
				if err := egCtx.Err(); err != nil {
					return err
				}
				c := g.examine(log, paths[i])
				if c.reason != "" {
					local[c.reason]++
					continue
				}
				added, err := g.set.Add(egCtx, c.digest)
				if err != nil {
					return apperrors.Storage("dedup", "hash set insert", err)
				}
				if !added {
					local[ReasonDuplicate]++
					continue
				}
				kept[w] = append(kept[w], paths[i])
			}
			rejected[w] = local
			log.Debug("dedup worker done", "worker", w, "files", r.Len(), "kept", len(kept[w]))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("dedup shared phase: %w", err)
	}

	res = &Result{Scanned: len(paths), Rejected: make(map[string]int)}
	for w := range ranges {
		res.Accepted = append(res.Accepted, kept[w]...)
		for reason, n := range rejected[w] {
			res.Rejected[reason] += n
		}
	}
	return res, nil
}
