package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Dictionary is the set of known words. A permissive dictionary accepts any
// purely alphabetic word of at least two letters.
type Dictionary struct {
	words      map[string]struct{}
	permissive bool
}

// Permissive returns a dictionary that treats every alphabetic word as known.
func Permissive() *Dictionary {
	return &Dictionary{permissive: true}
}

// NewDictionary builds a dictionary from a list of words.
func NewDictionary(words []string) *Dictionary {
	d := &Dictionary{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			d.words[w] = struct{}{}
		}
	}
	return d
}

// LoadDictionary reads one word per line. Blank lines and lines starting
// with '#' are ignored. An empty path yields the permissive dictionary.
func LoadDictionary(path string) (*Dictionary, error) {
	if path == "" {
		return Permissive(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dictionary: %w", err)
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	return NewDictionary(words), nil
}

func (d *Dictionary) Contains(word string) bool {
	if d.permissive {
		if len(word) < 2 {
			return false
		}
		for _, r := range word {
			if !unicode.IsLetter(r) {
				return false
			}
		}
		return true
	}
	_, ok := d.words[word]
	return ok
}

// Len returns the number of explicit words, 0 for a permissive dictionary.
func (d *Dictionary) Len() int {
	return len(d.words)
}
