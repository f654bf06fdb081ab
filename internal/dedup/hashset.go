package dedup

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/redis"
)

// Digest is the 128-bit content hash of a document body.
type Digest [16]byte

func Hash(content string) Digest {
	return md5.Sum([]byte(content))
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Owner returns the worker in [0, workers) that owns d.
func (d Digest) Owner(workers int) int {
	return int(binary.BigEndian.Uint64(d[:8]) % uint64(workers))
}

// HashSet is the content-hash set shared by all workers of one dedup run.
type HashSet interface {
	// Add inserts d and reports whether it was absent.
	Add(ctx context.Context, d Digest) (bool, error)
	Len(ctx context.Context) (int, error)
	// Discard releases the set once the run is over.
	Discard(ctx context.Context) error
}

const stripes = 64

// MemorySet is an in-process HashSet striped across independent locks.
type MemorySet struct {
	stripes [stripes]struct {
		mu  sync.Mutex
		set map[Digest]struct{}
	}
}

func NewMemorySet() *MemorySet {
	s := &MemorySet{}
	for i := range s.stripes {
		s.stripes[i].set = make(map[Digest]struct{})
	}
	return s
}

func (s *MemorySet) Add(_ context.Context, d Digest) (bool, error) {
	st := &s.stripes[d[0]%stripes]
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.set[d]; ok {
		return false, nil
	}
	st.set[d] = struct{}{}
	return true, nil
}

func (s *MemorySet) Len(_ context.Context) (int, error) {
	n := 0
	for i := range s.stripes {
		s.stripes[i].mu.Lock()
		n += len(s.stripes[i].set)
		s.stripes[i].mu.Unlock()
	}
	return n, nil
}

func (s *MemorySet) Discard(_ context.Context) error {
	for i := range s.stripes {
		s.stripes[i].mu.Lock()
		s.stripes[i].set = make(map[Digest]struct{})
		s.stripes[i].mu.Unlock()
	}
	return nil
}

// RedisSet keeps the run's hashes in one Redis set so that workers in
// separate processes share it.
type RedisSet struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	expiry sync.Once
}

// NewRedisSet scopes a set to runID. The key expires after ttl if the run
// never discards it.
func NewRedisSet(client *redis.Client, runID string, ttl time.Duration) *RedisSet {
	return &RedisSet{client: client, key: "dedup:" + runID, ttl: ttl}
}

func (s *RedisSet) Key() string {
	return s.key
}

func (s *RedisSet) Add(ctx context.Context, d Digest) (bool, error) {
	added, err := s.client.SAdd(ctx, s.key, d.String())
	if err != nil {
		return false, fmt.Errorf("adding digest to %s: %w", s.key, err)
	}
	if added && s.ttl > 0 {
		var expErr error
		s.expiry.Do(func() {
			expErr = s.client.Expire(ctx, s.key, s.ttl)
		})
		if expErr != nil {
			return added, fmt.Errorf("setting expiry on %s: %w", s.key, expErr)
		}
	}
	return added, nil
}

func (s *RedisSet) Len(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.key)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", s.key, err)
	}
	return int(n), nil
}

func (s *RedisSet) Discard(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key); err != nil {
		return fmt.Errorf("deleting %s: %w", s.key, err)
	}
	return nil
}
