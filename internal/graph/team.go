package graph

import (
	"context"
	"fmt"

	alexerrors "paperpost-orchestrator/internal/errors"
	"paperpost-orchestrator/internal/agentruntime"
	"paperpost-orchestrator/internal/domain/ports"
	"paperpost-orchestrator/internal/domain/task"
	"paperpost-orchestrator/internal/logging"
	"paperpost-orchestrator/internal/progress"
)

// ErrRecursionExceeded is returned when a team exceeds its configured
// recursion limit (spec §4.6, error taxonomy RecursionExceeded). MetaGraph
// does not return it.
type ErrRecursionExceeded struct {
	Scope string // "team:<name>"
	Limit int
}

func (e *ErrRecursionExceeded) Error() string {
	return fmt.Sprintf("%s exceeded recursion limit (%d)", e.Scope, e.Limit)
}

// MemberRole pairs an agent with the Role its AgentRuntime step runs,
// keeping the graph package ignorant of prompt text (spec §4.4: roles are
// descriptors, not graph state).
type MemberRole struct {
	Agent task.AgentName
	Role  agentruntime.Role
}

// TeamGraph drives one team's members to completion via a supervisor
// decision loop (spec §4.6). Each round runs exactly one member's
// AgentRuntime step, then asks the supervisor LLM for the next route.
// Grounded on the teacher's tagged-variant node representation recommended
// in spec §9: no generic graph library, just an explicit dispatch loop.
type TeamGraph struct {
	team             task.TeamName
	members          []MemberRole
	supervisorPrompt string
	llm              ports.LLMClient
	runtime          *agentruntime.Runtime
	tracker          *progress.Tracker
	recursionLimit   int
	logger           logging.Logger
}

// TeamConfig configures a TeamGraph.
type TeamConfig struct {
	Team             task.TeamName
	Members          []MemberRole
	SupervisorPrompt string
	RecursionLimit   int // spec §6 TEAM_RECURSION_LIMIT, default 25
}

// NewTeamGraph builds a TeamGraph bound to tracker for progress writes.
// tracker may be nil, for the standalone /verify-post path that bypasses
// the Task record entirely (spec §9 open question #2).
func NewTeamGraph(cfg TeamConfig, llm ports.LLMClient, runtime *agentruntime.Runtime, tracker *progress.Tracker, logger logging.Logger) *TeamGraph {
	limit := cfg.RecursionLimit
	if limit <= 0 {
		limit = 25
	}
	return &TeamGraph{
		team:             cfg.Team,
		members:          cfg.Members,
		supervisorPrompt: cfg.SupervisorPrompt,
		llm:              llm,
		runtime:          runtime,
		tracker:          tracker,
		recursionLimit:   limit,
		logger:           logging.OrNop(logger),
	}
}

func (g *TeamGraph) memberNames() []task.AgentName {
	names := make([]task.AgentName, len(g.members))
	for i, m := range g.members {
		names[i] = m.Agent
	}
	return names
}

// updateAgent writes through tracker when one is bound, and is a no-op
// otherwise (standalone verification pass).
func (g *TeamGraph) updateAgent(ctx context.Context, agent task.AgentName, status task.AgentStatus, activity, findings, errMessage string) error {
	if g.tracker == nil {
		return nil
	}
	return g.tracker.UpdateAgent(ctx, agent, status, activity, findings, errMessage)
}

func (g *TeamGraph) roleFor(agent task.AgentName) (agentruntime.Role, bool) {
	for _, m := range g.members {
		if m.Agent == agent {
			return m.Role, true
		}
	}
	return agentruntime.Role{}, false
}

// Run drives the team's members to completion (supervisor routes Finish) or
// a recursion-limit error, writing agent/team progress through tracker as
// it goes (I1/I5). log accumulates every turn emitted along the way.
func (g *TeamGraph) Run(ctx context.Context, log *task.Log) error {
	for round := 0; ; round++ {
		if round >= g.recursionLimit {
			return &ErrRecursionExceeded{Scope: fmt.Sprintf("team:%s", g.team), Limit: g.recursionLimit}
		}
		if err := ctx.Err(); err != nil {
			return alexerrors.NewTransientError(err, "Cancelled while running a team.")
		}

		route, err := g.decideRoute(ctx, log)
		if err != nil {
			return err
		}
		if route.Finish {
			return nil
		}
		role, ok := g.roleFor(route.Member)
		if !ok {
			// Supervisor named an agent outside this team; treat as finish
			// rather than trust an out-of-band instruction.
			g.logger.Warn("team %s: supervisor routed to unknown member %s, finishing", g.team, route.Member)
			return nil
		}

		if err := g.updateAgent(ctx, route.Member, task.AgentWorking, "running", "", ""); err != nil {
			return err
		}
		stepErr := g.runtime.Step(ctx, role, log)
		if stepErr != nil {
			_ = g.updateAgent(ctx, route.Member, task.AgentError, "", "", stepErr.Error())
			return fmt.Errorf("team %s member %s: %w", g.team, route.Member, stepErr)
		}
		findings, _ := log.LastByAgent(route.Member)
		if err := g.updateAgent(ctx, route.Member, task.AgentCompleted, "done", findings.Content, ""); err != nil {
			return err
		}

		// A supervisor that keeps re-routing without ever finishing still
		// terminates via recursionLimit (spec §9: loop-back is permitted,
		// not forced to stop after one pass per member).
	}
}

// decideRoute asks the supervisor LLM for the next hop given the current
// log, decoding its answer with the tolerant parser (spec §9).
func (g *TeamGraph) decideRoute(ctx context.Context, log *task.Log) (Route, error) {
	req := ports.CompletionRequest{
		SystemPrompt: g.supervisorPrompt,
		Messages:     supervisorMessages(log.Snapshot()),
		Temperature:  0,
		MaxTokens:    128,
	}
	resp, err := g.llm.Complete(ctx, req)
	if err != nil {
		return Route{}, fmt.Errorf("team %s supervisor: %w", g.team, err)
	}
	return decodeRoute(resp.Content, g.memberNames()), nil
}

func supervisorMessages(messages []task.Message) []ports.CompletionMessage {
	out := make([]ports.CompletionMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == task.RoleTool {
			continue
		}
		out = append(out, ports.CompletionMessage{
			Role:    string(m.Role),
			Name:    string(m.Name),
			Content: m.Content,
		})
	}
	return out
}
