// Package benchmark contains Go benchmarks for document scoring, partial index
// construction, shard files and the query path.
package benchmark

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/extract"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/segment"
)

const sampleHTML = `<html><head><title>Distributed search</title></head><body>
<h1>Sharded inverted index</h1>
<p>Search engine with distributed indexing and query processing. Every document
is scored per term, partial indexes are merged into alphabetic shards and the
inverse document frequency is applied once the merge completes.</p>
<p>Workers <b>never</b> share state while indexing.</p>
</body></html>`

// BenchmarkScoreDocument measures extraction plus scoring of one document.
func BenchmarkScoreDocument(b *testing.B) {
	ex := extract.New([]string{"h1", "h2", "h3", "title", "b", "i"})
	b.ReportAllocs()
	b.SetBytes(int64(len(sampleHTML)))
	for i := 0; i < b.N; i++ {
		weighted, rest, err := ex.Extract(sampleHTML)
		if err != nil {
			b.Fatal(err)
		}
		_ = indexer.Score(tok.Terms(weighted), tok.Terms(rest))
	}
}

// BenchmarkPartialAdd measures posting insert throughput into a worker's
// partial index.
func BenchmarkPartialAdd(b *testing.B) {
	terms := tok.Terms(sampleHTML)
	p := index.NewPartial(0)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, term := range terms {
			p.Add(term, index.Posting{DocID: i, Score: 1})
		}
	}
}

func buildEntries(terms, postingsPerTerm int) []index.TermEntry {
	entries := make([]index.TermEntry, terms)
	for t := range entries {
		postings := make(index.PostingList, postingsPerTerm)
		for d := range postings {
			postings[d] = index.Posting{DocID: d, Score: float64(d%7) + 1}
		}
		entries[t] = index.TermEntry{Term: fmt.Sprintf("term%05d", t), Postings: postings}
	}
	return entries
}

// BenchmarkPartialFileWrite measures serialising a worker's partial index.
func BenchmarkPartialFileWrite(b *testing.B) {
	p := index.NewPartial(0)
	for _, e := range buildEntries(2000, 20) {
		p.Append(e.Term, e.Postings)
	}
	path := filepath.Join(b.TempDir(), index.PartialFileName(0))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := index.WritePartialFile(path, p); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkShardWrite measures writing one shard file at various sizes.
func BenchmarkShardWrite(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		entries := buildEntries(size, 10)
		b.Run(fmt.Sprintf("terms_%d", size), func(b *testing.B) {
			w := segment.NewWriter(b.TempDir())
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := w.Write("a_g", entries, 0); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkShardSearch measures term lookup in a loaded shard table.
func BenchmarkShardSearch(b *testing.B) {
	w := segment.NewWriter(b.TempDir())
	path, err := w.Write("a_g", buildEntries(10000, 10), segment.FlagFinalized)
	if err != nil {
		b.Fatal(err)
	}
	r, err := segment.OpenReader(path)
	if err != nil {
		b.Fatal(err)
	}
	defer r.Close()
	table, err := r.Load()
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok, err := table.Search(fmt.Sprintf("term%05d", i%10000)); err != nil || !ok {
			b.Fatal("term not found")
		}
	}
}
