// Package governor implements the ConcurrencyGovernor (spec §4.3): two
// independent counting semaphores. It sets no deadlines of its own; an
// acquire waits until a permit frees up or the caller's context ends. Grounded on
// golang.org/x/sync, the same package the teacher's SubAgentOrchestrator
// uses for bounded fan-out (internal/agent/app/subagent.go uses
// errgroup.SetLimit); here we use the lower-level x/sync/semaphore.Weighted
// directly since the governor gates whole jobs rather than a single
// errgroup's tasks.
package governor

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	alexerrors "paperpost-orchestrator/internal/errors"
)

// Governor owns the generation and verification permit pools.
type Governor struct {
	generation   *semaphore.Weighted
	verification *semaphore.Weighted

	generationInUse   atomic.Int64
	verificationInUse atomic.Int64
}

// Config sets the permit counts (spec §6 env vars
// MAX_CONCURRENT_GENERATIONS / MAX_CONCURRENT_VERIFICATIONS).
type Config struct {
	GenerationPermits   int64
	VerificationPermits int64
}

// DefaultConfig matches spec §4.3's defaults (3 generation, 5 verification).
func DefaultConfig() Config {
	return Config{GenerationPermits: 3, VerificationPermits: 5}
}

// New builds a Governor from cfg.
func New(cfg Config) *Governor {
	return &Governor{
		generation:   semaphore.NewWeighted(cfg.GenerationPermits),
		verification: semaphore.NewWeighted(cfg.VerificationPermits),
	}
}

// Release is returned by the Acquire* methods; callers must defer it on
// every exit path (spec §5: "Permits are released on all exit paths
// (deferred release)").
type Release func()

// AcquireGeneration blocks until a generation permit is free or ctx is
// cancelled, in which case it returns a Cancelled-classified error.
func (g *Governor) AcquireGeneration(ctx context.Context) (Release, error) {
	return acquire(ctx, g.generation, &g.generationInUse)
}

// AcquireVerification blocks until a verification permit is free or ctx is
// cancelled.
func (g *Governor) AcquireVerification(ctx context.Context) (Release, error) {
	return acquire(ctx, g.verification, &g.verificationInUse)
}

func acquire(ctx context.Context, sem *semaphore.Weighted, counter *atomic.Int64) (Release, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, alexerrors.NewTransientError(fmt.Errorf("acquire permit: %w", err),
			"Cancelled while waiting for a concurrency permit.")
	}
	counter.Add(1)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		counter.Add(-1)
		sem.Release(1)
	}, nil
}

// GenerationInUse reports how many generation permits are currently checked
// out, used by internal/metrics gauges (P3 testable property).
func (g *Governor) GenerationInUse() int64 { return g.generationInUse.Load() }

// VerificationInUse reports how many verification permits are currently
// checked out.
func (g *Governor) VerificationInUse() int64 { return g.verificationInUse.Load() }
