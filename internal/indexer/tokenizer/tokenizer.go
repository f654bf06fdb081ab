// Package tokenizer provides text tokenisation for the indexer and the query
// engine. It lower-cases input, splits on non-alphanumeric boundaries, filters
// stop-words and non-words, and stems surviving terms with the Snowball
// English stemmer.
package tokenizer

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// Split lower-cases text and breaks it into letter/digit runs.
func Split(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Tokenizer filters and stems words against a stop-word list and a
// dictionary.
type Tokenizer struct {
	dict *Dictionary
}

func New(dict *Dictionary) *Tokenizer {
	if dict == nil {
		dict = Permissive()
	}
	return &Tokenizer{dict: dict}
}

// Admissible reports whether an index-time token is kept: it is not a
// stop-word and is either a known word or a number shorter than five digits.
func (t *Tokenizer) Admissible(word string) bool {
	if IsStopWord(word) {
		return false
	}
	if t.dict.Contains(word) {
		return true
	}
	return isNumeric(word) && len(word) < 5
}

// Terms returns the stemmed admissible terms of text in order of occurrence,
// duplicates included. These stems are the keys of partial indexes and shard
// files, so on-disk terms are stems, not the words as written.
func (t *Tokenizer) Terms(text string) []string {
	words := Split(text)
	terms := make([]string, 0, len(words)/2)
	for _, word := range words {
		if !t.Admissible(word) {
			continue
		}
		if stemmed := Stem(word); stemmed != "" {
			terms = append(terms, stemmed)
		}
	}
	return terms
}

// Query normalises free query text. Stop-words are dropped; a known word is
// kept, and an unknown word survives only when it is alphanumeric and shorter
// than ten characters. The result is stemmed, sorted and deduplicated.
func (t *Tokenizer) Query(text string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, word := range Split(text) {
		if IsStopWord(word) {
			continue
		}
		if !t.dict.Contains(word) && !(isAlphanumeric(word) && len(word) < 10) {
			continue
		}
		stemmed := Stem(word)
		if stemmed == "" {
			continue
		}
		if _, dup := seen[stemmed]; dup {
			continue
		}
		seen[stemmed] = struct{}{}
		terms = append(terms, stemmed)
	}
	sort.Strings(terms)
	return terms
}

// Stem reduces word to its Snowball English stem. Stop-words are stemmed too
// so that query and index agree on every surviving token.
func Stem(word string) string {
	return english.Stem(word, true)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
