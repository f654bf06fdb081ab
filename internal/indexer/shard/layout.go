// Package shard maps terms to the fixed set of alphabetic shards. The mapping
// is a lookup table on a term's first byte, so every term resolves to exactly
// one shard and the result never depends on which worker produced the term.
package shard

import (
	"fmt"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
)

// Layout is an immutable shard table.
type Layout struct {
	names []string
	table [256]uint8
}

// NewLayout builds the layout described by cfg. With explicit boundaries
// each boundary letter starts a new range; otherwise the alphabet is split
// into cfg.Alphabetic near-equal ranges with the larger ranges first.
func NewLayout(cfg config.ShardConfig) (*Layout, error) {
	starts, err := rangeStarts(cfg)
	if err != nil {
		return nil, err
	}
	catchAll := cfg.CatchAll
	if catchAll == "" {
		catchAll = "other"
	}

	l := &Layout{}
	catchIdx := uint8(len(starts))
	for i := range l.table {
		l.table[i] = catchIdx
	}
	for i, start := range starts {
		end := byte('z')
		if i+1 < len(starts) {
			end = starts[i+1] - 1
		}
		for c := start; c <= end; c++ {
			l.table[c] = uint8(i)
			l.table[c-'a'+'A'] = uint8(i)
		}
		l.names = append(l.names, fmt.Sprintf("%c_%c", start, end))
	}
	for _, n := range l.names {
		if n == catchAll {
			return nil, apperrors.Newf(apperrors.ErrConfiguration, "shard", "catch-all name %q collides with a range", catchAll)
		}
	}
	l.names = append(l.names, catchAll)
	return l, nil
}

func rangeStarts(cfg config.ShardConfig) ([]byte, error) {
	if len(cfg.Boundaries) > 0 {
		starts := []byte{'a'}
		prev := byte('a')
		for _, b := range cfg.Boundaries {
			if len(b) != 1 || b[0] <= prev || b[0] > 'z' {
				return nil, apperrors.Newf(apperrors.ErrConfiguration, "shard", "invalid shard boundary %q", b)
			}
			starts = append(starts, b[0])
			prev = b[0]
		}
		return starts, nil
	}
	n := cfg.Alphabetic
	if n < 1 || n > 26 {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, "shard", "alphabetic shard count %d out of range 1..26", n)
	}
	base, extra := 26/n, 26%n
	starts := make([]byte, 0, n)
	c := byte('a')
	for i := 0; i < n; i++ {
		starts = append(starts, c)
		size := base
		if i < extra {
			size++
		}
		c += byte(size)
	}
	return starts, nil
}

// Names returns every shard name; the catch-all shard is last.
func (l *Layout) Names() []string {
	return append([]string(nil), l.names...)
}

func (l *Layout) Count() int {
	return len(l.names)
}

// Index returns the shard index owning term.
func (l *Layout) Index(term string) int {
	if term == "" {
		return len(l.names) - 1
	}
	return int(l.table[term[0]])
}

// ShardFor returns the name of the shard owning term.
func (l *Layout) ShardFor(term string) string {
	return l.names[l.Index(term)]
}

// Path returns the shard file path for name under dir.
func Path(dir, name string) string {
	return filepath.Join(dir, name+segment.Extension)
}
