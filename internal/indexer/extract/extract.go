// Package extract splits an HTML body into text found inside weighted tags
// and the remaining visible text.
package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Extractor separates weighted-tag text from the rest of a document.
type Extractor struct {
	weighted map[string]struct{}
}

func New(tags []string) *Extractor {
	w := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		w[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &Extractor{weighted: w}
}

// Extract returns the text inside weighted tags and the remaining text.
// Script and style content is dropped from both.
func (e *Extractor) Extract(body string) (weighted string, rest string, err error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parsing html: %w", err)
	}
	var w, r []string
	e.walk(doc, false, &w, &r)
	return strings.Join(w, " "), strings.Join(r, " "), nil
}

func (e *Extractor) walk(n *html.Node, inWeighted bool, w, r *[]string) {
	switch n.Type {
	case html.ElementNode:
		if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
			return
		}
		if _, ok := e.weighted[n.Data]; ok {
			inWeighted = true
		}
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text == "" {
			return
		}
		if inWeighted {
			*w = append(*w, text)
		} else {
			*r = append(*r, text)
		}
		return
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.walk(c, inWeighted, w, r)
	}
}
