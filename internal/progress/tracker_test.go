package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paperpost-orchestrator/internal/domain/task"
	"paperpost-orchestrator/internal/store"
)

type collectingPublisher struct {
	published []*task.Task
}

func (p *collectingPublisher) Publish(t *task.Task) {
	p.published = append(p.published, t)
}

func newTestTracker(t *testing.T, pub Publisher) (*Tracker, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore(nil)
	seed := task.NewTask("t1", task.RequestData{PaperTitle: "A Paper"}, time.Now().UTC())
	require.NoError(t, s.PutIfAbsent(context.Background(), seed, time.Hour))

	tracker, err := New(context.Background(), s, "t1", time.Hour, pub, nil)
	require.NoError(t, err)
	return tracker, s
}

func TestTracker_UpdateTask_IllegalTransitionIsIgnored(t *testing.T) {
	pub := &collectingPublisher{}
	tracker, _ := newTestTracker(t, pub)

	completed := task.StatusCompleted
	require.NoError(t, tracker.UpdateTask(context.Background(), TaskUpdate{Status: &completed}))
	require.Equal(t, task.StatusCompleted, tracker.Snapshot().Status)

	pending := task.StatusPending
	require.NoError(t, tracker.UpdateTask(context.Background(), TaskUpdate{Status: &pending}))
	require.Equal(t, task.StatusCompleted, tracker.Snapshot().Status, "completed is terminal; must not move back to pending")
}

func TestTracker_UpdateTask_LegalTransitionFlushesImmediately(t *testing.T) {
	pub := &collectingPublisher{}
	tracker, s := newTestTracker(t, pub)

	inProgress := task.StatusInProgress
	require.NoError(t, tracker.UpdateTask(context.Background(), TaskUpdate{Status: &inProgress}))

	got, err := s.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, task.StatusInProgress, got.Status)
	require.Len(t, pub.published, 1)
}

func TestTracker_UpdateTask_NonStatusFieldIsDebounced(t *testing.T) {
	pub := &collectingPublisher{}
	tracker, s := newTestTracker(t, pub)

	step := "researching"
	require.NoError(t, tracker.UpdateTask(context.Background(), TaskUpdate{CurrentStep: &step}))

	// First update always flushes (lastFlush is zero-valued, so
	// time.Since(lastFlush) exceeds the debounce window).
	require.Len(t, pub.published, 1)

	step2 := "still researching"
	require.NoError(t, tracker.UpdateTask(context.Background(), TaskUpdate{CurrentStep: &step2}))
	require.Len(t, pub.published, 1, "second rapid non-status update should be debounced, not flushed")

	// The in-memory view still reflects the debounced update even though it
	// hasn't been flushed to the store yet.
	require.Equal(t, "still researching", tracker.Snapshot().CurrentStep)
	got, err := s.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "researching", got.CurrentStep)
}

func TestTracker_UpdateAgent_RecomputesProgress(t *testing.T) {
	pub := &collectingPublisher{}
	tracker, _ := newTestTracker(t, pub)

	require.NoError(t, tracker.UpdateAgent(context.Background(), task.AgentPaperResearcher, task.AgentWorking, "researching", "", ""))
	require.InDelta(t, 0.125, tracker.Snapshot().Progress, 0.0001) // 0.5/2 agents /2 teams

	require.NoError(t, tracker.UpdateAgent(context.Background(), task.AgentPaperResearcher, task.AgentCompleted, "", "done researching", ""))
	require.NoError(t, tracker.UpdateAgent(context.Background(), task.AgentLinkedInCreator, task.AgentCompleted, "", "post drafted", ""))

	snap := tracker.Snapshot()
	require.Equal(t, task.StatusCompleted, snap.Teams[task.TeamContent].Status)
	require.InDelta(t, 0.5, snap.Progress, 0.0001) // content team done (1.0), verification untouched (0.0)
}

func TestTracker_UpdateAgent_AnyErrorFailsTeam(t *testing.T) {
	pub := &collectingPublisher{}
	tracker, _ := newTestTracker(t, pub)

	require.NoError(t, tracker.UpdateAgent(context.Background(), task.AgentTechVerifier, task.AgentError, "", "", "boom"))
	require.NoError(t, tracker.UpdateAgent(context.Background(), task.AgentStyleChecker, task.AgentCompleted, "", "ok", ""))

	snap := tracker.Snapshot()
	require.Equal(t, task.StatusFailed, snap.Teams[task.TeamVerification].Status)
	require.NotNil(t, snap.Teams[task.TeamVerification].CompletedAt)
}

func TestTracker_UpdateAgent_IllegalTransitionIgnored(t *testing.T) {
	pub := &collectingPublisher{}
	tracker, _ := newTestTracker(t, pub)

	require.NoError(t, tracker.UpdateAgent(context.Background(), task.AgentPaperResearcher, task.AgentCompleted, "", "done", ""))
	require.NoError(t, tracker.UpdateAgent(context.Background(), task.AgentPaperResearcher, task.AgentIdle, "", "", ""))

	snap := tracker.Snapshot()
	require.Equal(t, task.AgentCompleted, snap.Teams[task.TeamContent].Agents[task.AgentPaperResearcher].Status)
}

func TestTracker_UpdateAgent_UnknownAgentIsNoOp(t *testing.T) {
	pub := &collectingPublisher{}
	tracker, _ := newTestTracker(t, pub)

	err := tracker.UpdateAgent(context.Background(), task.AgentName("NotARealAgent"), task.AgentWorking, "", "", "")
	require.NoError(t, err)
}

func TestTracker_Flush_AlwaysWritesThrough(t *testing.T) {
	pub := &collectingPublisher{}
	tracker, s := newTestTracker(t, pub)

	step := "x"
	require.NoError(t, tracker.UpdateTask(context.Background(), TaskUpdate{CurrentStep: &step}))
	step2 := "y"
	require.NoError(t, tracker.UpdateTask(context.Background(), TaskUpdate{CurrentStep: &step2}))

	require.NoError(t, tracker.Flush(context.Background()))
	got, err := s.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "y", got.CurrentStep)
}

func TestNew_NilPublisherIsSafe(t *testing.T) {
	s := store.NewMemoryStore(nil)
	seed := task.NewTask("t1", task.RequestData{}, time.Now().UTC())
	require.NoError(t, s.PutIfAbsent(context.Background(), seed, time.Hour))

	tracker, err := New(context.Background(), s, "t1", time.Hour, nil, nil)
	require.NoError(t, err)

	inProgress := task.StatusInProgress
	require.NotPanics(t, func() {
		require.NoError(t, tracker.UpdateTask(context.Background(), TaskUpdate{Status: &inProgress}))
	})
}
