package parser

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/tokenizer"
)

func TestParse(t *testing.T) {
	tok := tokenizer.New(nil)
	tests := []struct {
		query    string
		terms    []string
		exclude  []string
		typ      QueryType
		wantNorm string
	}{
		{"zebra apple", []string{"appl", "zebra"}, nil, QueryOR, "OR|appl,zebra"},
		{"running AND runners", []string{"run", "runner"}, nil, QueryAND, "AND|run,runner"},
		{"gopher NOT python", []string{"gopher"}, []string{"python"}, QueryOR, "OR|gopher|NOT:python"},
		{"the and of", nil, nil, QueryOR, "OR|"},
		{"   ", nil, nil, QueryOR, "OR|"},
	}
	for _, tt := range tests {
		plan := Parse(tt.query, tok)
		if len(tt.terms) == 0 && len(plan.Terms) != 0 || len(tt.terms) > 0 && !reflect.DeepEqual(plan.Terms, tt.terms) {
			t.Errorf("Parse(%q).Terms = %v, want %v", tt.query, plan.Terms, tt.terms)
		}
		if len(tt.exclude) == 0 && len(plan.ExcludeTerms) != 0 || len(tt.exclude) > 0 && !reflect.DeepEqual(plan.ExcludeTerms, tt.exclude) {
			t.Errorf("Parse(%q).ExcludeTerms = %v, want %v", tt.query, plan.ExcludeTerms, tt.exclude)
		}
		if plan.Type != tt.typ {
			t.Errorf("Parse(%q).Type = %v, want %v", tt.query, plan.Type, tt.typ)
		}
		if got := plan.Normalized(); got != tt.wantNorm {
			t.Errorf("Parse(%q).Normalized() = %q, want %q", tt.query, got, tt.wantNorm)
		}
	}
}
