package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Indexer.Workers != 10 {
		t.Errorf("indexer workers = %d, want 10", cfg.Indexer.Workers)
	}
	if cfg.Shards.Alphabetic != 4 || cfg.Shards.CatchAll != "other" {
		t.Errorf("unexpected shard defaults: %+v", cfg.Shards)
	}
	if cfg.Dedup.Strategy != DedupPartitioned {
		t.Errorf("dedup strategy = %q", cfg.Dedup.Strategy)
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
indexer:
  workers: 4
  weightedTags: [h1, title]
shards:
  dir: /tmp/shards
  boundaries: [a, m]
registry:
  backend: sqlite
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SP_DEDUP_WORKERS", "3")
	t.Setenv("SP_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Indexer.Workers != 4 || len(cfg.Indexer.WeightedTags) != 2 {
		t.Errorf("indexer = %+v", cfg.Indexer)
	}
	if cfg.Indexer.PartialDir != "indexes" {
		t.Errorf("default partial dir lost: %q", cfg.Indexer.PartialDir)
	}
	if cfg.Registry.Backend != RegistrySQLite {
		t.Errorf("registry backend = %q", cfg.Registry.Backend)
	}
	if cfg.Dedup.Workers != 3 {
		t.Errorf("dedup workers = %d, want 3", cfg.Dedup.Workers)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("kafka brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"too few indexer workers", func(c *Config) { c.Indexer.Workers = 2 }},
		{"no dedup workers", func(c *Config) { c.Dedup.Workers = 0 }},
		{"unknown strategy", func(c *Config) { c.Dedup.Strategy = "bloom" }},
		{"unknown hash set", func(c *Config) { c.Dedup.HashSet = "etcd" }},
		{"unknown registry", func(c *Config) { c.Registry.Backend = "mongo" }},
		{"too many shards", func(c *Config) { c.Shards.Alphabetic = 27 }},
		{"negative budget", func(c *Config) { c.Indexer.MaxPostingsPerWorker = -1 }},
		{"no catch-all", func(c *Config) { c.Shards.CatchAll = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, apperrors.ErrConfiguration) {
				t.Fatalf("Validate() = %v, want ErrConfiguration", err)
			}
		})
	}
}
