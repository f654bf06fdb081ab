// Package merger selects the best-ranked documents from a score table
// without sorting every candidate.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/ranker"
)

// DefaultLimit applies when TopK is given a non-positive limit.
const DefaultLimit = 10

// TopK returns at most limit documents from scores in result order: score
// descending, then document id ascending. Selection keeps a min-heap of the
// current winners, so work is O(n log limit) in the number of candidates.
func TopK(scores ranker.Scores, limit int) []ranker.ScoredDoc {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(scores) < limit {
		limit = len(scores)
	}
	w := make(winners, 0, limit)
	for docID, score := range scores {
		doc := ranker.ScoredDoc{DocID: docID, Score: score}
		switch {
		case len(w) < limit:
			heap.Push(&w, doc)
		case ranker.Better(doc, w[0]):
			w[0] = doc
			heap.Fix(&w, 0)
		}
	}
	result := []ranker.ScoredDoc(w)
	ranker.Sort(result)
	return result
}

// winners is a min-heap by rank: the weakest kept document is at index 0.
type winners []ranker.ScoredDoc

func (w winners) Len() int           { return len(w) }
func (w winners) Less(i, j int) bool { return ranker.Better(w[j], w[i]) }
func (w winners) Swap(i, j int)      { w[i], w[j] = w[j], w[i] }

func (w *winners) Push(x any) { *w = append(*w, x.(ranker.ScoredDoc)) }

func (w *winners) Pop() any {
	old := *w
	doc := old[len(old)-1]
	*w = old[:len(old)-1]
	return doc
}
