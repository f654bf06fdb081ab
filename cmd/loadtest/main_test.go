package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	var lat []time.Duration
	for i := 1; i <= 100; i++ {
		lat = append(lat, time.Duration(i)*time.Millisecond)
	}
	tests := map[float64]time.Duration{
		50:  50 * time.Millisecond,
		99:  99 * time.Millisecond,
		100: 100 * time.Millisecond,
		0:   time.Millisecond,
	}
	for p, want := range tests {
		if got := percentile(lat, p); got != want {
			t.Errorf("p%v = %v, want %v", p, got, want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("empty = %v", got)
	}
}

func TestLoadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.txt")
	os.WriteFile(path, []byte("gopher\n\n  rust AND go \n"), 0o644)
	got, err := loadQueries(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1] != "rust AND go" {
		t.Errorf("queries = %q", got)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	os.WriteFile(empty, []byte("\n"), 0o644)
	if _, err := loadQueries(empty); err == nil {
		t.Error("expected error for empty query file")
	}
}

func TestRunLoadTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits := 1
		if r.URL.Query().Get("q") == "nothing" {
			hits = 0
		}
		json.NewEncoder(w).Encode(map[string]int{"total_hits": hits})
	}))
	defer srv.Close()

	stats := runLoadTest(Config{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    100 * time.Millisecond,
		Limit:       5,
		Queries:     []string{"gopher", "nothing"},
	})
	if stats.successCount.Load() == 0 {
		t.Fatal("no successful requests")
	}
	if stats.zeroResults.Load() == 0 {
		t.Error("expected some zero-result queries")
	}

	var out bytes.Buffer
	if !printReport(&out, stats, 100*time.Millisecond) {
		t.Error("report says nothing completed")
	}
	if !strings.Contains(out.String(), "200:") {
		t.Errorf("report missing status codes:\n%s", out.String())
	}
}
