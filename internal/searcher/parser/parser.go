// Package parser turns free query text into a query plan: the terms to look
// up, the terms whose documents are excluded, and how matches combine.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/tokenizer"
)

type QueryType int

const (
	QueryOR QueryType = iota
	QueryAND
)

func (t QueryType) String() string {
	if t == QueryAND {
		return "AND"
	}
	return "OR"
}

type QueryPlan struct {
	Terms        []string
	Type         QueryType
	ExcludeTerms []string
	RawQuery     string
}

// Parse builds a plan. The upper-case keywords AND and OR switch the combine
// mode for the whole query; NOT excludes the word that follows it. Every other
// word is normalised by tok.Query, so terms come back stemmed, sorted and
// deduplicated.
func Parse(query string, tok *tokenizer.Tokenizer) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Type:         QueryOR,
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	var include, exclude []string
	excludeNext := false
	for _, word := range strings.Fields(query) {
		switch word {
		case "AND":
			plan.Type = QueryAND
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		if excludeNext {
			exclude = append(exclude, word)
			excludeNext = false
		} else {
			include = append(include, word)
		}
	}
	plan.Terms = append(plan.Terms, tok.Query(strings.Join(include, " "))...)
	plan.ExcludeTerms = append(plan.ExcludeTerms, tok.Query(strings.Join(exclude, " "))...)
	return plan
}

// Normalized renders the plan canonically, for use in cache keys.
func (p *QueryPlan) Normalized() string {
	parts := []string{p.Type.String(), strings.Join(p.Terms, ",")}
	if len(p.ExcludeTerms) > 0 {
		parts = append(parts, "NOT:"+strings.Join(p.ExcludeTerms, ","))
	}
	return strings.Join(parts, "|")
}
