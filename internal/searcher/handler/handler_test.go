package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/health"
)

type stubExecutor struct {
	limit int
	err   error
}

func (s *stubExecutor) Execute(_ context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return &executor.SearchResult{
		Query:     plan.RawQuery,
		TotalHits: 1,
		Results:   []ranker.ScoredDoc{{DocID: 3, Path: "DEV/c.json", Score: 1.5}},
	}, nil
}

func newServer(exec *stubExecutor, checker *health.Checker) *httptest.Server {
	svc := searcher.NewService(exec, nil, nil, config.SearchConfig{DefaultLimit: 10, MaxResults: 20}, nil)
	return httptest.NewServer(New(svc, checker).Routes())
}

func TestSearchEndpoint(t *testing.T) {
	exec := &stubExecutor{}
	srv := newServer(exec, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/search?q=gopher&limit=50")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got executor.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Results) != 1 || got.Results[0].Path != "DEV/c.json" {
		t.Errorf("results = %+v", got.Results)
	}
	if exec.limit != 20 {
		t.Errorf("limit = %d, want clamp to 20", exec.limit)
	}
}

func TestSearchBadRequests(t *testing.T) {
	srv := newServer(&stubExecutor{}, nil)
	defer srv.Close()

	for _, path := range []string{"/search", "/search?q=go&limit=0", "/search?q=go&limit=x"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestSearchStorageFailure(t *testing.T) {
	exec := &stubExecutor{err: apperrors.Storage("search", "opening shard", errors.New("gone"))}
	srv := newServer(exec, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/search?q=gopher")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	srv := newServer(&stubExecutor{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/cache/stats")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["status"] != "disabled" {
		t.Errorf("stats = %v", body)
	}

	resp, err = http.Post(srv.URL+"/cache/invalidate", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("invalidate status = %d, want 503", resp.StatusCode)
	}
}

func TestReadiness(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("index", func(context.Context) error { return errors.New("no manifest") })
	srv := newServer(&stubExecutor{}, checker)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/health/live")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("live status = %d, want 200", resp.StatusCode)
	}
}
