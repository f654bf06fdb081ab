// Package merge consolidates the per-worker partial indexes into the fixed
// alphabetic shard files. Each partial is split by shard and appended to a
// per-shard log; once every partial is consumed, one compaction pass per shard
// folds its log into the shard file.
package merge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/metrics"
)

const logExtension = ".log"

// logRecord is one line of a shard log.
type logRecord struct {
	Term     string            `json:"t"`
	Postings index.PostingList `json:"p"`
}

// Result summarises one merge.
type Result struct {
	Partials int
	Postings int
	Terms    map[string]int
}

// Merger owns the shard directory for the duration of a merge. It is
// single-threaded; concurrent merges into one directory are not supported.
type Merger struct {
	layout  *shard.Layout
	dir     string
	writer  *segment.Writer
	metrics *metrics.Metrics
}

func New(layout *shard.Layout, shardDir string, m *metrics.Metrics) *Merger {
	if m == nil {
		m = metrics.Discard()
	}
	return &Merger{
		layout:  layout,
		dir:     shardDir,
		writer:  segment.NewWriter(shardDir),
		metrics: m,
	}
}

func (m *Merger) logPath(name string) string {
	return filepath.Join(m.dir, name+logExtension)
}

// Run merges every partial index file in partialDir, in worker order.
func (m *Merger) Run(ctx context.Context, partialDir string) (*Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "merger")

	partials, err := index.ListPartialFiles(partialDir)
	if err != nil {
		return nil, err
	}
	if err := m.truncate(); err != nil {
		return nil, err
	}

	res := &Result{Partials: len(partials), Terms: make(map[string]int)}
	postings, err := m.appendAll(ctx, partials)
	if err != nil {
		return nil, err
	}
	res.Postings = postings

	for _, name := range m.layout.Names() {
		terms, err := m.compact(log, name)
		if err != nil {
			return nil, err
		}
		res.Terms[name] = terms
		m.metrics.ShardTermCount.WithLabelValues(name).Set(float64(terms))
	}

	log.Info("merge finished",
		"partials", res.Partials,
		"postings", res.Postings,
		"shards", m.layout.Count(),
		"duration", time.Since(start),
	)
	return res, nil
}

// truncate replaces every shard with an empty one and drops stale logs.
func (m *Merger) truncate() error {
	for _, name := range m.layout.Names() {
		if _, err := m.writer.Write(name, nil, 0); err != nil {
			return err
		}
		if err := os.Remove(m.logPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return apperrors.Storage("merge", "removing stale log", err)
		}
	}
	return nil
}

type shardLog struct {
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// appendAll consumes each partial exactly once, appending its postings to
// the owning shard logs. Every log file is closed on return.
func (m *Merger) appendAll(ctx context.Context, partials []string) (n int, err error) {
	log := logger.FromContext(ctx).With("component", "merger")
	names := m.layout.Names()
	logs := make([]*shardLog, len(names))
	defer func() {
		for _, l := range logs {
			if l == nil {
				continue
			}
			if cErr := l.file.Close(); cErr != nil && err == nil {
				err = apperrors.Storage("merge", "closing shard log", cErr)
			}
		}
	}()
	for i, name := range names {
		f, err := os.OpenFile(m.logPath(name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return 0, apperrors.Storage("merge", "opening shard log", err)
		}
		buf := bufio.NewWriter(f)
		logs[i] = &shardLog{file: f, buf: buf, enc: json.NewEncoder(buf)}
	}

	for _, path := range partials {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		p, err := index.ReadPartialFile(path)
		if err != nil {
			return n, err
		}
		for _, e := range p.Entries() {
			l := logs[m.layout.Index(e.Term)]
			if err := l.enc.Encode(logRecord{Term: e.Term, Postings: e.Postings}); err != nil {
				return n, apperrors.Storage("merge", "appending to shard log", err)
			}
			n += len(e.Postings)
		}
		for _, l := range logs {
			if err := l.buf.Flush(); err != nil {
				return n, apperrors.Storage("merge", "flushing shard log", err)
			}
		}
		log.Debug("partial merged", "partial", filepath.Base(path), "terms", p.TermCount())
	}
	return n, nil
}

// compact folds the named shard's log into its shard file, appending postings
// on term collision in log order, then removes the log.
func (m *Merger) compact(log *slog.Logger, name string) (int, error) {
	_, existing, err := segment.ReadAll(m.writer.Path(name))
	if err != nil {
		return 0, err
	}
	merged := index.NewPartial(0)
	for _, e := range existing {
		merged.Append(e.Term, e.Postings)
	}

	if err := m.replay(name, merged); err != nil {
		return 0, err
	}
	if _, err := m.writer.Write(name, merged.Entries(), 0); err != nil {
		return 0, err
	}
	if err := os.Remove(m.logPath(name)); err != nil {
		return 0, apperrors.Storage("merge", "removing shard log", err)
	}
	log.Debug("shard compacted", "shard", name, "terms", merged.TermCount())
	return merged.TermCount(), nil
}

func (m *Merger) replay(name string, into *index.Partial) error {
	f, err := os.Open(m.logPath(name))
	if err != nil {
		return apperrors.Storage("merge", "opening shard log", err)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	for {
		var rec logRecord
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return nil
			}
			return apperrors.Storage("merge", fmt.Sprintf("decoding %s log", name), err)
		}
		into.Append(rec.Term, rec.Postings)
	}
}
