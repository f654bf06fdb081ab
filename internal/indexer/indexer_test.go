package indexer

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore(t *testing.T) {
	scores := Score(
		[]string{"gopher", "title"},
		[]string{"gopher", "plain", "many", "many", "many", "many", "many", "many", "many", "many", "many", "many"},
	)
	tests := map[string]float64{
		"plain":  1.0,
		"title":  2.75,
		"gopher": math.Log10(2) + 1 + 1.75,
		"many":   2.0,
	}
	for term, want := range tests {
		if got := scores[term]; !approx(got, want) {
			t.Errorf("score(%q) = %v, want %v", term, got, want)
		}
	}
	if len(scores) != 4 {
		t.Errorf("got %d terms, want 4", len(scores))
	}
}

func writeDocs(t *testing.T, bodies []string) []registry.Entry {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i, body := range bodies {
		p := filepath.Join(dir, "doc"+string(rune('a'+i))+".json")
		if err := corpus.Write(p, corpus.Document{Content: body, Encoding: "utf-8"}); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return registry.Assign(paths)
}

func testConfig(t *testing.T, workers int) config.IndexerConfig {
	return config.IndexerConfig{
		Workers:      workers,
		WeightedTags: []string{"h1", "title", "b"},
		PartialDir:   filepath.Join(t.TempDir(), "partials"),
	}
}

func TestNewRejectsFewWorkers(t *testing.T) {
	for _, w := range []int{0, 1, 2} {
		if _, err := New(testConfig(t, w), nil, nil); !errors.Is(err, apperrors.ErrConfiguration) {
			t.Errorf("workers=%d: err = %v, want ErrConfiguration", w, err)
		}
	}
}

func TestRunWritesOnePartialPerWorker(t *testing.T) {
	entries := writeDocs(t, []string{
		"<p>gopher gopher</p>",
		"<h1>gopher</h1><p>river</p>",
		"<p>river stone</p>",
		"<p>stone</p>",
	})
	ix, err := New(testConfig(t, 3), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := ix.Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.PartialFiles) != 3 || res.Documents != 4 || len(res.Aborted) != 0 {
		t.Fatalf("result = %+v", res)
	}

	merged := index.NewPartial(0)
	for _, path := range res.PartialFiles {
		p, err := index.ReadPartialFile(path)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range p.Entries() {
			merged.Append(e.Term, e.Postings)
		}
	}
	gopher := merged.Get("gopher")
	if len(gopher) != 2 {
		t.Fatalf("gopher postings = %v", gopher)
	}
	if gopher[0].DocID != 0 || !approx(gopher[0].Score, math.Log10(2)+1) {
		t.Errorf("doc 0 gopher = %+v", gopher[0])
	}
	if gopher[1].DocID != 1 || !approx(gopher[1].Score, 2.75) {
		t.Errorf("doc 1 gopher = %+v", gopher[1])
	}
	if res.Postings != merged.PostingCount() {
		t.Errorf("Postings = %d, files hold %d", res.Postings, merged.PostingCount())
	}
}

func TestRunMoreWorkersThanDocuments(t *testing.T) {
	entries := writeDocs(t, []string{"<p>lonely</p>"})
	ix, err := New(testConfig(t, 4), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := ix.Run(context.Background(), entries)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.PartialFiles) != 4 {
		t.Fatalf("partials = %v", res.PartialFiles)
	}
	empty, err := index.ReadPartialFile(res.PartialFiles[3])
	if err != nil || empty.TermCount() != 0 {
		t.Fatalf("empty worker partial = %v, %v", empty, err)
	}
}

func TestRunBudgetAbortsOnlyThatWorker(t *testing.T) {
	entries := writeDocs(t, []string{
		"<p>alpha beta gamma</p>",
		"<p>delta epsilon</p>",
		"<p>zeta</p>",
		"<p>eta</p>",
		"<p>theta</p>",
		"<p>iota</p>",
	})
	cfg := testConfig(t, 3)
	cfg.MaxPostingsPerWorker = 3
	ix, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := ix.Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Aborted) != 1 || res.Aborted[0] != 0 {
		t.Fatalf("Aborted = %v, want [0]", res.Aborted)
	}
	p, err := index.ReadPartialFile(res.PartialFiles[0])
	if err != nil {
		t.Fatal(err)
	}
	if p.PostingCount() != 3 || p.Get("delta") != nil {
		t.Errorf("aborted worker kept %d postings", p.PostingCount())
	}
	if res.Documents != 5 {
		t.Errorf("Documents = %d, want 5", res.Documents)
	}
}

func TestRunMissingDocumentIsFatal(t *testing.T) {
	entries := writeDocs(t, []string{"<p>one</p>", "<p>two</p>", "<p>three</p>"})
	entries[1].Path = filepath.Join(t.TempDir(), "gone.json")
	ix, err := New(testConfig(t, 3), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Run(context.Background(), entries); !errors.Is(err, apperrors.ErrStorage) {
		t.Fatalf("Run = %v, want ErrStorage", err)
	}
}
