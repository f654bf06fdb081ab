// Package index holds the in-memory postings structures shared by the
// indexing, merge and ranking stages, and the partial index file format
// written by each indexing worker.
package index

import (
	"encoding/json"
	"fmt"
	"math"
)

// Posting records that a term occurs in a document with a relevance score.
// It is encoded as the two-element JSON array [doc_id, score].
type Posting struct {
	DocID int
	Score float64
}

func (p Posting) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.DocID, p.Score})
}

func (p *Posting) UnmarshalJSON(data []byte) error {
	var raw []json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding posting: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("decoding posting: want 2 elements, got %d", len(raw))
	}
	id, err := raw[0].Int64()
	if err != nil {
		return fmt.Errorf("decoding posting doc id: %w", err)
	}
	score, err := raw[1].Float64()
	if err != nil {
		return fmt.Errorf("decoding posting score: %w", err)
	}
	if id < 0 || id > math.MaxInt32 {
		return fmt.Errorf("decoding posting: doc id %d out of range", id)
	}
	p.DocID = int(id)
	p.Score = score
	return nil
}

type PostingList []Posting

// TermEntry pairs a term with its postings.
type TermEntry struct {
	Term     string
	Postings PostingList
}
