// Package ranker combines per-term postings into one scored document list.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/index"
)

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Scores maps a candidate document id to its summed score.
type Scores map[int]float64

// Combine sums each candidate document's scores across the query terms.
// With intersect set a document must match every term; otherwise any term
// suffices. Documents in exclude are dropped. Sums are rounded to three
// decimals; ordering is left to the caller.
func Combine(postingsPerTerm map[string]index.PostingList, intersect bool, exclude map[int]struct{}) Scores {
	var candidates map[int]struct{}
	if intersect {
		candidates = intersectPostings(postingsPerTerm)
	} else {
		candidates = unionPostings(postingsPerTerm)
	}
	for docID := range exclude {
		delete(candidates, docID)
	}

	scores := make(Scores, len(candidates))
	for _, postings := range postingsPerTerm {
		for _, p := range postings {
			if _, ok := candidates[p.DocID]; ok {
				scores[p.DocID] += p.Score
			}
		}
	}
	for docID, score := range scores {
		scores[docID] = math.Round(score*1000) / 1000
	}
	return scores
}

// Ranked returns every scored document in result order.
func (s Scores) Ranked() []ScoredDoc {
	docs := make([]ScoredDoc, 0, len(s))
	for docID, score := range s {
		docs = append(docs, ScoredDoc{DocID: docID, Score: score})
	}
	Sort(docs)
	return docs
}

// Better reports whether a ranks ahead of b: higher score first, then
// lower document id.
func Better(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// Sort orders docs by score descending, then document id ascending.
func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool { return Better(docs[i], docs[j]) })
}

func intersectPostings(postingsPerTerm map[string]index.PostingList) map[int]struct{} {
	if len(postingsPerTerm) == 0 {
		return make(map[int]struct{})
	}
	var shortestTerm string
	shortestLen := int(^uint(0) >> 1)
	for term, postings := range postingsPerTerm {
		if len(postings) < shortestLen {
			shortestLen = len(postings)
			shortestTerm = term
		}
	}
	candidates := make(map[int]struct{})
	for _, p := range postingsPerTerm[shortestTerm] {
		candidates[p.DocID] = struct{}{}
	}
	for term, postings := range postingsPerTerm {
		if term == shortestTerm {
			continue
		}
		docSet := make(map[int]struct{}, len(postings))
		for _, p := range postings {
			docSet[p.DocID] = struct{}{}
		}
		for docID := range candidates {
			if _, exists := docSet[docID]; !exists {
				delete(candidates, docID)
			}
		}
	}
	return candidates
}

func unionPostings(postingsPerTerm map[string]index.PostingList) map[int]struct{} {
	result := make(map[int]struct{})
	for _, postings := range postingsPerTerm {
		for _, p := range postings {
			result[p.DocID] = struct{}{}
		}
	}
	return result
}
