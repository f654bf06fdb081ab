// Package corpus reads the crawled document snapshot: it enumerates the files
// of a corpus directory and decodes the JSON record stored in each file.
package corpus

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
)

// Document is one crawled page as stored on disk.
type Document struct {
	URL      string `json:"url"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Walk returns every regular file below dir in lexical order.
func Walk(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, apperrors.Storage("corpus", "stat corpus directory", err)
	}
	if !info.IsDir() {
		return nil, apperrors.Newf(apperrors.ErrStorage, "corpus", "%s is not a directory", dir)
	}
	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Storage("corpus", "walk corpus directory", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Load decodes the document stored at path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, apperrors.Storage("corpus", "read document", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, apperrors.Storage("corpus", "decode "+path, err)
	}
	return doc, nil
}

// EncodingSet is a case-insensitive allow-list of declared encodings.
type EncodingSet map[string]struct{}

func NewEncodingSet(encodings []string) EncodingSet {
	set := make(EncodingSet, len(encodings))
	for _, e := range encodings {
		set[normalizeEncoding(e)] = struct{}{}
	}
	return set
}

func (s EncodingSet) Allows(encoding string) bool {
	_, ok := s[normalizeEncoding(encoding)]
	return ok
}

func normalizeEncoding(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Write stores doc at path as JSON. It is used by tests and fixtures.
func Write(path string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating document directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
