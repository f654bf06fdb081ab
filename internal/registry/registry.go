// Package registry assigns stable integer ids to accepted documents and
// persists the id → path mapping. The JSON file is the primary store read by
// the query engine; SQL stores mirror it.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/logger"
)

// Entry is one registered document.
type Entry struct {
	ID   int
	Path string
}

// Assign numbers paths 0..N-1 in input order.
func Assign(paths []string) []Entry {
	entries := make([]Entry, len(paths))
	for i, p := range paths {
		entries[i] = Entry{ID: i, Path: p}
	}
	return entries
}

// Store persists a full registry, replacing any previous one.
type Store interface {
	Save(ctx context.Context, entries []Entry) error
	Load(ctx context.Context) (Lookup, error)
}

// Lookup resolves document ids back to paths.
type Lookup map[int]string

func (l Lookup) Path(id int) (string, bool) {
	p, ok := l[id]
	return p, ok
}

func (l Lookup) Len() int {
	return len(l)
}

// Registry writes to a primary store and any number of mirrors.
type Registry struct {
	primary Store
	mirrors []Store
}

func New(primary Store, mirrors ...Store) *Registry {
	return &Registry{
		primary: primary,
		mirrors: mirrors,
	}
}

// Register assigns ids to paths and persists them to every store. Any store
// failure is fatal.
func (r *Registry) Register(ctx context.Context, paths []string) ([]Entry, error) {
	entries := Assign(paths)
	if err := r.primary.Save(ctx, entries); err != nil {
		return nil, err
	}
	for _, m := range r.mirrors {
		if err := m.Save(ctx, entries); err != nil {
			return nil, err
		}
	}
	logger.FromContext(ctx).Info("registry saved", "component", "registry", "documents", len(entries), "mirrors", len(r.mirrors))
	return entries, nil
}

func (r *Registry) Load(ctx context.Context) (Lookup, error) {
	return r.primary.Load(ctx)
}

// JSONStore keeps the registry as a JSON object {"id": "path"}.
type JSONStore struct {
	path string
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Save(_ context.Context, entries []Entry) error {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[strconv.Itoa(e.ID)] = e.Path
	}
	data, err := json.Marshal(m)
	if err != nil {
		return apperrors.Storage("registry", "encoding registry", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.Storage("registry", "creating registry directory", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.Storage("registry", "writing registry", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return apperrors.Storage("registry", "renaming registry", err)
	}
	return nil
}

func (s *JSONStore) Load(_ context.Context) (Lookup, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, apperrors.Storage("registry", "reading registry", err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.Storage("registry", "decoding registry", err)
	}
	lookup := make(Lookup, len(m))
	for k, v := range m {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, apperrors.Storage("registry", "decoding registry", fmt.Errorf("bad id %q", k))
		}
		lookup[id] = v
	}
	return lookup, nil
}

// Entries returns the lookup as entries ordered by id.
func (l Lookup) Entries() []Entry {
	entries := make([]Entry, 0, len(l))
	for id, p := range l {
		entries = append(entries, Entry{ID: id, Path: p})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}
