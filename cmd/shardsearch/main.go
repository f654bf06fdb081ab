package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/tracing"
)

func main() {
	index := flag.BoolP("index", "i", false, "rebuild the index from the corpus")
	search := flag.BoolP("search", "s", false, "search the built index for the remaining arguments")
	serve := flag.Bool("serve", false, "serve queries over HTTP until interrupted")
	configPath := flag.String("config", "", "path to config file")
	corpusDir := flag.String("corpus", "", "corpus directory (overrides config)")
	limit := flag.IntP("limit", "n", 0, "maximum number of results")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: shardsearch [--index] [--search terms...] [--serve]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if !*index && !*search && !*serve {
		flag.Usage()
		os.Exit(apperrors.ExitConfiguration)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
	if *corpusDir != "" {
		cfg.Corpus.Dir = *corpusDir
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, modes{index: *index, search: *search, serve: *serve}, strings.Join(flag.Args(), " "), *limit)
	stop()
	if err != nil {
		slog.Error("shardsearch failed", "stage", apperrors.StageOf(err), "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

type modes struct {
	index, search, serve bool
}

func run(ctx context.Context, cfg *config.Config, mode modes, query string, limit int) error {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		srv, err := metrics.StartServer(cfg.Metrics.Port, reg)
		if err != nil {
			return apperrors.Newf(apperrors.ErrConfiguration, "metrics", "%v", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
	}

	res, err := pipeline.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	if mode.index {
		p, err := pipeline.New(cfg, res.Options(m))
		if err != nil {
			return err
		}
		report, err := p.BuildCorpus(ctx)
		if err != nil {
			return err
		}
		printReport(os.Stdout, report)
	}

	if mode.search || mode.serve {
		svc, err := pipeline.NewSearchService(ctx, cfg, res, m)
		if err != nil {
			return err
		}
		if mode.search {
			result, err := svc.Search(ctx, query, limit)
			if err != nil {
				return err
			}
			if len(result.Results) == 0 {
				fmt.Println("no results")
			}
			for _, doc := range result.Results {
				fmt.Printf("%s (%.3f)\n", doc.Path, doc.Score)
			}
		}
		if mode.serve {
			return serveHTTP(ctx, cfg, svc, pipeline.HealthChecks(cfg, res), m)
		}
	}
	return nil
}

func printReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "build %s\n", r.BuildID)
	fmt.Fprintf(w, "  scanned %d, accepted %d, rejected %v\n", r.Scanned, r.Accepted, r.Rejected)
	fmt.Fprintf(w, "  indexed %d documents, %d postings\n", r.Documents, r.Postings)
	if len(r.Aborted) > 0 {
		fmt.Fprintf(w, "  workers stopped early: %v\n", r.Aborted)
	}
	names := make([]string, 0, len(r.Terms))
	for name := range r.Terms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  shard %-6s %d terms\n", name, r.Terms[name])
	}
	r.Span.Walk(func(depth int, s *tracing.Span) {
		fmt.Fprintf(w, "%s%-10s %v\n", strings.Repeat("  ", depth+1), s.Name, s.Duration.Round(time.Microsecond))
	})
}

func serveHTTP(ctx context.Context, cfg *config.Config, svc *searcher.Service, checker *health.Checker, m *metrics.Metrics) error {
	h := handler.New(svc, checker)
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(h.Routes(),
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.RequestTimeout),
		),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("query server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return apperrors.Newf(apperrors.ErrConfiguration, "serve", "listening on %s: %v", server.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down query server")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(sctx)
}
