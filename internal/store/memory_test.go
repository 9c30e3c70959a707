package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paperpost-orchestrator/internal/domain/task"
)

func seedTask(id string) *task.Task {
	return task.NewTask(id, task.RequestData{PaperTitle: "t"}, time.Now().UTC())
}

func TestMemoryStore_PutIfAbsent_RejectsDuplicate(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	require.NoError(t, s.PutIfAbsent(ctx, seedTask("a"), time.Hour))
	require.ErrorIs(t, s.PutIfAbsent(ctx, seedTask("a"), time.Hour), ErrAlreadyExists)
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	s := NewMemoryStore(nil)
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Put_OverwritesAndClones(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	original := seedTask("a")

	require.NoError(t, s.Put(ctx, original, time.Hour))
	original.Status = task.StatusFailed // mutating caller's copy must not reach the store

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.NotEqual(t, task.StatusFailed, got.Status)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, seedTask("a"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := s.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_List_SkipsExpired(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, seedTask("live"), time.Hour))
	require.NoError(t, s.Put(ctx, seedTask("dead"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "live", list[0].TaskID)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, seedTask("a"), time.Hour))
	require.NoError(t, s.Delete(ctx, "a"))
	_, err := s.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_EvictExpired(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, seedTask("a"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	s.EvictExpired()

	s.mu.RLock()
	_, stillPresent := s.tasks["a"]
	s.mu.RUnlock()
	require.False(t, stillPresent)
}

func TestMemoryStore_RunEvictionLoop_StopsOnContextCancel(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.RunEvictionLoop(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEvictionLoop did not stop after context cancellation")
	}
}
