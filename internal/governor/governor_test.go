package governor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	alexerrors "paperpost-orchestrator/internal/errors"
)

func TestGovernor_AcquireRelease_TracksInUse(t *testing.T) {
	g := New(Config{GenerationPermits: 2, VerificationPermits: 1})

	require.Equal(t, int64(0), g.GenerationInUse())
	release, err := g.AcquireGeneration(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), g.GenerationInUse())

	release()
	require.Equal(t, int64(0), g.GenerationInUse())

	// Releasing twice is a no-op, not a double-release panic/over-release.
	release()
	require.Equal(t, int64(0), g.GenerationInUse())
}

func TestGovernor_AcquireGeneration_BlocksUntilReleased(t *testing.T) {
	g := New(Config{GenerationPermits: 1, VerificationPermits: 1})

	release1, err := g.AcquireGeneration(context.Background())
	require.NoError(t, err)

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		release2, err := g.AcquireGeneration(context.Background())
		require.NoError(t, err)
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should not have succeeded while first permit is held")
	case <-time.After(50 * time.Millisecond):
	}

	release1()
	wg.Wait()
}

func TestGovernor_AcquireVerification_ContextCancelled(t *testing.T) {
	g := New(Config{GenerationPermits: 1, VerificationPermits: 1})

	_, err := g.AcquireVerification(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = g.AcquireVerification(ctx)
	require.Error(t, err)
	require.True(t, alexerrors.IsTransient(err))
}

func TestDefaultConfig_MatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, int64(3), cfg.GenerationPermits)
	require.Equal(t, int64(5), cfg.VerificationPermits)
}
