// Command task-orchestrator runs the paper-to-LinkedIn-post orchestrator
// HTTP service: it loads RuntimeConfig, wires every adapter (store, LLM,
// search, tool catalog, agent runtime, job runner), starts the HTTP server,
// and drains in-flight jobs on shutdown. Grounded on the teacher's
// cmd/server/main.go wiring order (config -> infra clients -> domain
// services -> delivery server -> signal-driven graceful shutdown).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"paperpost-orchestrator/internal/agentruntime"
	"paperpost-orchestrator/internal/config"
	alexerrors "paperpost-orchestrator/internal/errors"
	"paperpost-orchestrator/internal/governor"
	"paperpost-orchestrator/internal/jobs"
	"paperpost-orchestrator/internal/llm"
	"paperpost-orchestrator/internal/logging"
	"paperpost-orchestrator/internal/metrics"
	"paperpost-orchestrator/internal/search"
	httpserver "paperpost-orchestrator/internal/server/http"
	"paperpost-orchestrator/internal/store"
	"paperpost-orchestrator/internal/tools"
	"paperpost-orchestrator/internal/tracing"
)

const serviceVersion = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, meta, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	base := logging.NewProcessLogger(cfg.LogLevel, cfg.LogFormat)
	logger := logging.FromBase(base, "main")
	logger.Info("starting task-orchestrator (llm_model=%s from %s)", cfg.LLMModel, meta.Source("llm_model"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.ConfigureProvider(ctx, tracing.ProviderConfig{
		Enabled:        cfg.OTelEnabled,
		OTLPEndpoint:   cfg.OTelOTLPEndpoint,
		ServiceVersion: serviceVersion,
	})
	if err != nil {
		return fmt.Errorf("configure tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	taskStore, memStore, err := buildStore(ctx, cfg, logging.FromBase(base, "store"))
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	gov := governor.New(governor.Config{
		GenerationPermits:   int64(cfg.MaxConcurrentGenerations),
		VerificationPermits: int64(cfg.MaxConcurrentVerifications),
	})

	breakers := alexerrors.NewCircuitBreakerManager(alexerrors.DefaultCircuitBreakerConfig())
	llmClient := llm.NewRetryClient("llm-provider", llm.NewHTTPClient(llm.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
	}), breakers, logging.FromBase(base, "llm"))

	searchClient := search.New(search.Config{
		APIBaseURL:      cfg.SearchAPIBaseURL,
		APIKey:          cfg.SearchAPIKey,
		HTMLFallbackURL: cfg.SearchHTMLFallbackURL,
	}, logging.FromBase(base, "search"))

	catalog := tools.NewCatalog(searchClient, 256)
	catalog.SetTracer(tracing.New())
	runtime := agentruntime.New(llmClient, catalog, agentruntime.Config{MaxToolRounds: cfg.MaxToolRounds}, tracing.New(), logging.FromBase(base, "agentruntime"))
	runtime.SetMetrics(m)

	srv := httpserver.New(httpserver.Config{
		Version:      serviceVersion,
		LLMHealth:    llmClient,
		SearchHealth: searchClient,
	}, taskStore, nil, logging.FromBase(base, "http"))
	runner := jobs.New(jobs.Config{
		TTL:                 cfg.StoreTTL(),
		TeamRecursionLimit:  cfg.TeamRecursionLimit,
		MetaRecursionLimit:  cfg.MetaRecursionLimit,
		VerificationTimeout: cfg.VerificationTimeout(),
		LLMTemperature:      cfg.LLMTemperature,
	}, taskStore, gov, llmClient, runtime, srv, m, logging.FromBase(base, "jobs"))
	srv.SetJobs(runner)

	if memStore != nil {
		go memStore.RunEvictionLoop(ctx, time.Minute)
	}
	go pollGaugeMetrics(ctx, gov, breakers, m, 5*time.Second)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining up to %s", cfg.ShutdownDrain())
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDrain())
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	// Cancel and drain in-flight generation jobs within the same drain
	// budget (spec §5: in-flight jobs are cancelled and FAILED(Cancelled)
	// on shutdown, not left running on a detached context).
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("generation jobs did not drain within %s: %v", cfg.ShutdownDrain(), err)
	}
	return nil
}

// pollGaugeMetrics periodically samples the governor's permit occupancy and
// every circuit breaker's state into their Prometheus gauges. These are
// point-in-time samples rather than event-driven updates because neither
// the governor nor the breaker manager currently exposes change
// notifications, and a few-second staleness is immaterial for an
// occupancy/health gauge.
func pollGaugeMetrics(ctx context.Context, gov *governor.Governor, breakers *alexerrors.CircuitBreakerManager, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetGenerationPermitsInUse(gov.GenerationInUse())
			m.SetVerificationPermitsInUse(gov.VerificationInUse())
			for _, bm := range breakers.GetMetrics() {
				m.SetCircuitBreakerState(bm.Name, float64(bm.State))
			}
		}
	}
}

// buildStore wires the durable store behind a degrading fallback (spec
// §4.1). An empty StoreURL always engages the fallback; a configured Redis
// that fails an initial Ping degrades immediately rather than after the
// first failed request, so /health reflects reality from the start.
func buildStore(ctx context.Context, cfg config.RuntimeConfig, logger logging.Logger) (*store.DegradingStore, *store.MemoryStore, error) {
	local := store.NewMemoryStore(logger)

	if cfg.StoreURL == "" {
		return store.NewDegradingStore(nil, local, logger), local, nil
	}

	remote := store.NewRedisStore(cfg.StoreURL)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := remote.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable at startup (%v); starting degraded", err)
		return store.NewDegradingStore(nil, local, logger), local, nil
	}
	return store.NewDegradingStore(remote, local, logger), local, nil
}
