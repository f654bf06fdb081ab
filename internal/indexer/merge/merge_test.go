package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
)

func writePartial(t *testing.T, dir string, worker int, postings map[string]index.PostingList) {
	t.Helper()
	p := index.NewPartial(0)
	for term, list := range postings {
		p.Append(term, list)
	}
	if err := index.WritePartialFile(filepath.Join(dir, index.PartialFileName(worker)), p); err != nil {
		t.Fatal(err)
	}
}

func newMerger(t *testing.T) (*Merger, *shard.Layout, string) {
	t.Helper()
	layout, err := shard.NewLayout(config.ShardConfig{Alphabetic: 4, CatchAll: "other"})
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "final_index")
	return New(layout, dir, nil), layout, dir
}

func readShard(t *testing.T, dir, name string) map[string]index.PostingList {
	t.Helper()
	_, entries, err := segment.ReadAll(shard.Path(dir, name))
	if err != nil {
		t.Fatalf("reading shard %s: %v", name, err)
	}
	out := make(map[string]index.PostingList, len(entries))
	for _, e := range entries {
		out[e.Term] = e.Postings
	}
	return out
}

func TestMergeAppendsInPartialOrder(t *testing.T) {
	partials := t.TempDir()
	writePartial(t, partials, 0, map[string]index.PostingList{"a": {{DocID: 1, Score: 5}}})
	writePartial(t, partials, 1, map[string]index.PostingList{"a": {{DocID: 2, Score: 3}}})

	m, _, dir := newMerger(t)
	res, err := m.Run(context.Background(), partials)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := readShard(t, dir, "a_g")["a"]
	want := index.PostingList{{DocID: 1, Score: 5}, {DocID: 2, Score: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("a = %v, want %v", got, want)
	}
	if res.Partials != 2 || res.Postings != 2 || res.Terms["a_g"] != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestMergeRoutesEveryTermToOneShard(t *testing.T) {
	partials := t.TempDir()
	writePartial(t, partials, 0, map[string]index.PostingList{
		"apple": {{DocID: 0, Score: 1}},
		"hello": {{DocID: 0, Score: 1}},
		"42":    {{DocID: 0, Score: 1}},
	})
	writePartial(t, partials, 1, map[string]index.PostingList{
		"orange": {{DocID: 1, Score: 1}},
		"zebra":  {{DocID: 1, Score: 2.75}},
		"hello":  {{DocID: 1, Score: 1.301}},
	})
	writePartial(t, partials, 2, map[string]index.PostingList{})

	m, layout, dir := newMerger(t)
	if _, err := m.Run(context.Background(), partials); err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]string)
	for _, name := range layout.Names() {
		for term := range readShard(t, dir, name) {
			if prev, dup := seen[term]; dup {
				t.Fatalf("term %q in both %s and %s", term, prev, name)
			}
			seen[term] = name
			if layout.ShardFor(term) != name {
				t.Errorf("term %q stored in %s, belongs in %s", term, name, layout.ShardFor(term))
			}
		}
	}
	if len(seen) != 5 {
		t.Errorf("terms stored = %v", seen)
	}
	if got := readShard(t, dir, "h_n")["hello"]; len(got) != 2 {
		t.Errorf("hello = %v", got)
	}
	for _, name := range layout.Names() {
		if _, err := os.Stat(filepath.Join(dir, name+logExtension)); !os.IsNotExist(err) {
			t.Errorf("log for %s not removed", name)
		}
	}
}

func TestMergeTruncatesPreviousShards(t *testing.T) {
	partials := t.TempDir()
	writePartial(t, partials, 0, map[string]index.PostingList{"apple": {{DocID: 0, Score: 1}}})

	m, _, dir := newMerger(t)
	if _, err := m.Run(context.Background(), partials); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Run(context.Background(), partials); err != nil {
		t.Fatal(err)
	}
	if got := readShard(t, dir, "a_g")["apple"]; len(got) != 1 {
		t.Fatalf("apple = %v after rebuild, want a single posting", got)
	}
}

func TestMergeCorruptPartial(t *testing.T) {
	partials := t.TempDir()
	if err := os.WriteFile(filepath.Join(partials, index.PartialFileName(0)), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, _, _ := newMerger(t)
	if _, err := m.Run(context.Background(), partials); !errors.Is(err, apperrors.ErrStorage) {
		t.Fatalf("Run = %v, want ErrStorage", err)
	}
}

func TestMergeMissingPartialDir(t *testing.T) {
	m, _, _ := newMerger(t)
	if _, err := m.Run(context.Background(), filepath.Join(t.TempDir(), "nope")); !errors.Is(err, apperrors.ErrStorage) {
		t.Fatalf("Run = %v, want ErrStorage", err)
	}
}
