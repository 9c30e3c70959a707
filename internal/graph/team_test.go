package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"paperpost-orchestrator/internal/agentruntime"
	"paperpost-orchestrator/internal/domain/ports"
	"paperpost-orchestrator/internal/domain/task"
	"paperpost-orchestrator/internal/tools"
	"paperpost-orchestrator/internal/tracing"
)

// stubLLM answers according to the request's SystemPrompt, letting a single
// client stand in for both the supervisor and every member's role in a
// test, mirroring how the teacher's own react engine tests stub ports.LLM.
type stubLLM struct {
	mu    sync.Mutex
	calls map[string]int
	answer func(systemPrompt string, n int) ports.CompletionResponse
}

func newStubLLM(answer func(systemPrompt string, n int) ports.CompletionResponse) *stubLLM {
	return &stubLLM{calls: map[string]int{}, answer: answer}
}

func (s *stubLLM) Complete(_ context.Context, req ports.CompletionRequest) (ports.CompletionResponse, error) {
	s.mu.Lock()
	n := s.calls[req.SystemPrompt]
	s.calls[req.SystemPrompt] = n + 1
	s.mu.Unlock()
	return s.answer(req.SystemPrompt, n), nil
}

const supervisorPrompt = "route the team"
const researcherPrompt = "you are the researcher"
const creatorPrompt = "you are the creator"

func newTestTeamGraph(llm ports.LLMClient) *TeamGraph {
	catalog := tools.NewCatalog(nil, 8)
	runtime := agentruntime.New(llm, catalog, agentruntime.Config{MaxToolRounds: 4}, tracing.Noop(), nil)
	members := []MemberRole{
		{Agent: task.AgentPaperResearcher, Role: agentruntime.Role{Name: task.AgentPaperResearcher, SystemPrompt: researcherPrompt}},
		{Agent: task.AgentLinkedInCreator, Role: agentruntime.Role{Name: task.AgentLinkedInCreator, SystemPrompt: creatorPrompt}},
	}
	return NewTeamGraph(TeamConfig{
		Team:             task.TeamContent,
		Members:          members,
		SupervisorPrompt: supervisorPrompt,
		RecursionLimit:   10,
	}, llm, runtime, nil, nil)
}

func TestTeamGraph_Run_DrivesMembersThenFinishes(t *testing.T) {
	llm := newStubLLM(func(systemPrompt string, n int) ports.CompletionResponse {
		switch systemPrompt {
		case supervisorPrompt:
			switch n {
			case 0:
				return ports.CompletionResponse{Content: `{"next": "PaperResearcher"}`}
			case 1:
				return ports.CompletionResponse{Content: `{"next": "LinkedInCreator"}`}
			default:
				return ports.CompletionResponse{Content: `{"next": "FINISH"}`}
			}
		case researcherPrompt:
			return ports.CompletionResponse{Content: "paper findings summary"}
		case creatorPrompt:
			return ports.CompletionResponse{Content: "final linkedin post"}
		}
		return ports.CompletionResponse{Content: "FINISH"}
	})

	g := newTestTeamGraph(llm)
	log := &task.Log{}
	err := g.Run(context.Background(), log)
	require.NoError(t, err)

	researcherMsg, ok := log.LastByAgent(task.AgentPaperResearcher)
	require.True(t, ok)
	require.Equal(t, "paper findings summary", researcherMsg.Content)

	creatorMsg, ok := log.LastByAgent(task.AgentLinkedInCreator)
	require.True(t, ok)
	require.Equal(t, "final linkedin post", creatorMsg.Content)
}

func TestTeamGraph_Run_RecursionLimitExceeded(t *testing.T) {
	llm := newStubLLM(func(systemPrompt string, n int) ports.CompletionResponse {
		// Supervisor never finishes; member replies are irrelevant here.
		return ports.CompletionResponse{Content: `{"next": "PaperResearcher"}`}
	})
	catalog := tools.NewCatalog(nil, 8)
	runtime := agentruntime.New(llm, catalog, agentruntime.Config{MaxToolRounds: 4}, tracing.Noop(), nil)
	members := []MemberRole{
		{Agent: task.AgentPaperResearcher, Role: agentruntime.Role{Name: task.AgentPaperResearcher, SystemPrompt: researcherPrompt}},
	}
	g := NewTeamGraph(TeamConfig{
		Team:             task.TeamContent,
		Members:          members,
		SupervisorPrompt: supervisorPrompt,
		RecursionLimit:   2,
	}, llm, runtime, nil, nil)

	err := g.Run(context.Background(), &task.Log{})
	require.Error(t, err)
	var recursionErr *ErrRecursionExceeded
	require.ErrorAs(t, err, &recursionErr)
	require.Equal(t, 2, recursionErr.Limit)
}

func TestTeamGraph_Run_UnknownMemberFinishes(t *testing.T) {
	llm := newStubLLM(func(systemPrompt string, n int) ports.CompletionResponse {
		return ports.CompletionResponse{Content: `{"next": "SomeoneElse"}`}
	})
	g := newTestTeamGraph(llm)
	err := g.Run(context.Background(), &task.Log{})
	require.NoError(t, err)
}

func TestTeamGraph_Run_NilTrackerIsSafe(t *testing.T) {
	// Exercises the standalone /verify-post path: tracker is nil throughout.
	llm := newStubLLM(func(systemPrompt string, n int) ports.CompletionResponse {
		switch systemPrompt {
		case supervisorPrompt:
			if n == 0 {
				return ports.CompletionResponse{Content: `{"next": "PaperResearcher"}`}
			}
			return ports.CompletionResponse{Content: `{"next": "FINISH"}`}
		default:
			return ports.CompletionResponse{Content: "ok"}
		}
	})
	g := newTestTeamGraph(llm)
	require.NotPanics(t, func() {
		err := g.Run(context.Background(), &task.Log{})
		require.NoError(t, err)
	})
}
