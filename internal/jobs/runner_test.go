package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paperpost-orchestrator/internal/agentruntime"
	"paperpost-orchestrator/internal/domain/ports"
	"paperpost-orchestrator/internal/domain/task"
	alexerrors "paperpost-orchestrator/internal/errors"
	"paperpost-orchestrator/internal/governor"
	"paperpost-orchestrator/internal/graph"
	"paperpost-orchestrator/internal/store"
	"paperpost-orchestrator/internal/tools"
	"paperpost-orchestrator/internal/tracing"
)

func TestClassifyError_RecursionExceeded(t *testing.T) {
	err := &graph.ErrRecursionExceeded{Scope: "team:content", Limit: 5}
	info := classifyError(err)
	require.Equal(t, "RecursionExceeded", info.Kind)
}

func TestClassifyError_RecursionExceeded_FromAgentRuntime(t *testing.T) {
	err := &agentruntime.ErrRecursionExceeded{Agent: "PaperResearcher", MaxRounds: 8}
	info := classifyError(err)
	require.Equal(t, "RecursionExceeded", info.Kind)
}

func TestClassifyError_Degraded(t *testing.T) {
	err := alexerrors.NewDegradedError(errors.New("remote down"), "degraded", "fallback")
	info := classifyError(err)
	require.Equal(t, "Unavailable", info.Kind)
}

func TestClassifyError_Transient(t *testing.T) {
	err := alexerrors.NewTransientError(errors.New("timeout"), "try again")
	info := classifyError(err)
	require.Equal(t, "Timeout", info.Kind)
}

func TestClassifyError_Permanent(t *testing.T) {
	err := alexerrors.NewPermanentError(errors.New("bad input"), "invalid")
	info := classifyError(err)
	require.Equal(t, "Internal", info.Kind)
}

func TestClassifyError_UnknownDefaultsInternal(t *testing.T) {
	info := classifyError(errors.New("mystery failure"))
	require.Equal(t, "Internal", info.Kind)
}

func TestClassifyError_Cancelled(t *testing.T) {
	info := classifyError(context.Canceled)
	require.Equal(t, "Cancelled", info.Kind)
}

func TestClassifyError_CancelledTakesPriorityOverTransientWrapping(t *testing.T) {
	// graph.TeamGraph and agentruntime.Runtime both wrap ctx.Err() in a
	// TransientError when a step observes cancellation; Cancelled must win.
	err := alexerrors.NewTransientError(context.Canceled, "Cancelled: context canceled")
	info := classifyError(err)
	require.Equal(t, "Cancelled", info.Kind)
}

func TestClassifyError_DeadlineExceeded(t *testing.T) {
	info := classifyError(context.DeadlineExceeded)
	require.Equal(t, "Timeout", info.Kind)
}

type verifyStubLLM struct {
	mu    sync.Mutex
	calls map[string]int
}

func (s *verifyStubLLM) Complete(_ context.Context, req ports.CompletionRequest) (ports.CompletionResponse, error) {
	s.mu.Lock()
	n := s.calls[req.SystemPrompt]
	s.calls[req.SystemPrompt] = n + 1
	s.mu.Unlock()

	switch {
	case req.SystemPrompt == verificationSupervisorPrompt:
		switch n {
		case 0:
			return ports.CompletionResponse{Content: `{"next": "TechVerifier"}`}, nil
		case 1:
			return ports.CompletionResponse{Content: `{"next": "StyleChecker"}`}, nil
		default:
			return ports.CompletionResponse{Content: `{"next": "FINISH"}`}, nil
		}
	default:
		return ports.CompletionResponse{Content: "Score: 0.90/1.0\nStatus: APPROVED\n"}, nil
	}
}

func newTestRunner(llm ports.LLMClient) *Runner {
	catalog := tools.NewCatalog(nil, 8)
	runtime := agentruntime.New(llm, catalog, agentruntime.Config{MaxToolRounds: 4}, tracing.Noop(), nil)
	gov := governor.New(governor.Config{GenerationPermits: 1, VerificationPermits: 1})
	return New(Config{
		TTL:                 time.Hour,
		TeamRecursionLimit:  10,
		MetaRecursionLimit:  10,
		VerificationTimeout: time.Second,
	}, nil, gov, llm, runtime, nil, nil, nil)
}

// blockingLLM never resolves on its own; it only returns once its ctx is
// cancelled, letting the test hold a generation job open until Shutdown
// fires.
type blockingLLM struct {
	started chan struct{}
}

func (b *blockingLLM) Complete(ctx context.Context, _ ports.CompletionRequest) (ports.CompletionResponse, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ports.CompletionResponse{}, ctx.Err()
}

func TestRunner_Shutdown_CancelsInFlightJobAndMarksFailedCancelled(t *testing.T) {
	taskStore := store.NewMemoryStore(nil)
	llm := &blockingLLM{started: make(chan struct{}, 1)}
	catalog := tools.NewCatalog(nil, 8)
	runtime := agentruntime.New(llm, catalog, agentruntime.Config{MaxToolRounds: 4}, tracing.Noop(), nil)
	gov := governor.New(governor.Config{GenerationPermits: 1, VerificationPermits: 1})
	r := New(Config{
		TTL:                 time.Hour,
		TeamRecursionLimit:  10,
		MetaRecursionLimit:  10,
		VerificationTimeout: time.Second,
	}, taskStore, gov, llm, runtime, nil, nil, nil)

	taskID := "in-flight-task"
	req := task.RequestData{PaperTitle: "A Paper Worth Posting About"}
	tsk := task.NewTask(taskID, req, time.Now().UTC())
	require.NoError(t, taskStore.PutIfAbsent(context.Background(), tsk, time.Hour))

	r.StartGeneration(taskID, req)
	<-llm.started

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(shutdownCtx))

	got, err := taskStore.Get(context.Background(), taskID)
	require.NoError(t, err)
	require.Equal(t, task.StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	require.Equal(t, "Cancelled", got.Error.Kind)
}

func TestRunner_RunVerification_StandalonePath(t *testing.T) {
	llm := &verifyStubLLM{calls: map[string]int{}}
	r := newTestRunner(llm)

	report, err := r.RunVerification(context.Background(), "a draft post", "Attention Is All You Need")
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Equal(t, 0.9, report.OverallScore)
}
