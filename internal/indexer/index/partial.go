package index

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
)

const partialPrefix = "index_"

// Partial is one indexing worker's term → postings mapping. It is owned by a
// single worker and is not safe for concurrent use.
type Partial struct {
	postings map[string]PostingList
	count    int
	budget   int
}

// NewPartial returns an empty partial index. A positive budget caps the
// number of postings it will accept; zero means unlimited.
func NewPartial(budget int) *Partial {
	return &Partial{
		postings: make(map[string]PostingList),
		budget:   budget,
	}
}

// Reserve reports whether n more postings fit in the budget.
func (p *Partial) Reserve(n int) error {
	if p.budget > 0 && p.count+n > p.budget {
		return apperrors.Newf(apperrors.ErrResourceExhausted, "index",
			"posting budget %d exceeded", p.budget)
	}
	return nil
}

// Add appends a posting under term.
func (p *Partial) Add(term string, posting Posting) {
	p.postings[term] = append(p.postings[term], posting)
	p.count++
}

// Append appends all postings under term, preserving their order.
func (p *Partial) Append(term string, postings PostingList) {
	p.postings[term] = append(p.postings[term], postings...)
	p.count += len(postings)
}

func (p *Partial) Get(term string) PostingList {
	return p.postings[term]
}

func (p *Partial) TermCount() int {
	return len(p.postings)
}

func (p *Partial) PostingCount() int {
	return p.count
}

// Entries returns the terms in ordinal byte order with their postings.
func (p *Partial) Entries() []TermEntry {
	entries := make([]TermEntry, 0, len(p.postings))
	for term, postings := range p.postings {
		entries = append(entries, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// PartialFileName returns the deterministic file name of worker's partial.
func PartialFileName(worker int) string {
	return fmt.Sprintf("%s%d.json", partialPrefix, worker)
}

// WritePartialFile persists p as a JSON object with sorted keys.
func WritePartialFile(path string, p *Partial) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Storage("index", "creating partial directory", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return apperrors.Storage("index", "creating partial file", err)
	}
	w := bufio.NewWriter(f)
	if err := writeSortedObject(w, p.Entries()); err != nil {
		f.Close()
		os.Remove(tmp)
		return apperrors.Storage("index", "writing partial file", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return apperrors.Storage("index", "flushing partial file", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return apperrors.Storage("index", "closing partial file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperrors.Storage("index", "renaming partial file", err)
	}
	return nil
}

func writeSortedObject(w *bufio.Writer, entries []TermEntry) error {
	w.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			w.WriteByte(',')
		}
		key, err := json.Marshal(e.Term)
		if err != nil {
			return err
		}
		w.Write(key)
		w.WriteByte(':')
		postings := e.Postings
		if postings == nil {
			postings = PostingList{}
		}
		val, err := json.Marshal(postings)
		if err != nil {
			return err
		}
		if _, err := w.Write(val); err != nil {
			return err
		}
	}
	return w.WriteByte('}')
}

// ReadPartialFile loads a partial index file.
func ReadPartialFile(path string) (*Partial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Storage("merge", "reading partial file", err)
	}
	var raw map[string]PostingList
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.Storage("merge", "decoding "+filepath.Base(path), err)
	}
	p := NewPartial(0)
	for term, postings := range raw {
		p.Append(term, postings)
	}
	return p, nil
}

// ListPartialFiles returns the partial index files in dir ordered by worker
// index.
func ListPartialFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.Storage("merge", "listing partial directory", err)
	}
	type partialFile struct {
		worker int
		path   string
	}
	var files []partialFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, partialPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, partialPrefix), ".json"))
		if err != nil {
			continue
		}
		files = append(files, partialFile{worker: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].worker < files[j].worker })
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// RemovePartialFiles deletes every partial index file in dir.
func RemovePartialFiles(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	paths, err := ListPartialFiles(dir)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return apperrors.Storage("index", "removing stale partial", err)
		}
	}
	return nil
}
