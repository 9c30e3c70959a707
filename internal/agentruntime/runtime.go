// Package agentruntime implements the AgentRuntime (spec §4.4): evaluate
// one "agent step" by driving an LLM tool-call loop until the role produces
// a terminal assistant message. Grounded on the teacher's ReAct engine
// (internal/domain/agent/react/engine.go, solve.go): a bounded think/act
// loop with OTel tracing around each LLM call and a per-step round cap.
package agentruntime

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	alexerrors "paperpost-orchestrator/internal/errors"
	"paperpost-orchestrator/internal/domain/ports"
	"paperpost-orchestrator/internal/domain/task"
	"paperpost-orchestrator/internal/logging"
	"paperpost-orchestrator/internal/tools"
	"paperpost-orchestrator/internal/tracing"
)

// promptTokenBudget caps the message log handed to the LLM on any one
// completion request (spec §9 supplemented concern: nothing in the original
// spec bounds prompt size, but an unbounded log eventually exceeds every
// provider's context window once a team loops close to its recursion
// limit).
const promptTokenBudget = 6000

// Role describes one agent: its system prompt and the tool names it may
// call (spec §4.4: "a role descriptor (system_prompt, tool_set)").
type Role struct {
	Name         task.AgentName
	SystemPrompt string
	ToolNames    []string
	Temperature  float64
	MaxTokens    int
}

// ErrRecursionExceeded is returned when a step's tool-call loop exceeds
// MaxToolRounds (spec §4.4, error taxonomy RecursionExceeded).
type ErrRecursionExceeded struct {
	Agent     task.AgentName
	MaxRounds int
}

func (e *ErrRecursionExceeded) Error() string {
	return fmt.Sprintf("agent %s exceeded max tool rounds (%d)", e.Agent, e.MaxRounds)
}

// MetricsRecorder is the narrow metrics capability Runtime reports LLM call
// latency through. Satisfied by *metrics.Metrics; kept as an interface here
// so this package does not import internal/metrics for one method.
type MetricsRecorder interface {
	ObserveLLMCallSeconds(agent string, seconds float64)
}

// Runtime drives one agent step at a time against a shared message log.
type Runtime struct {
	llm           ports.LLMClient
	catalog       *tools.Catalog
	maxToolRounds int
	logger        logging.Logger
	tracer        tracing.Tracer
	tokens        *tokenCounter
	metrics       MetricsRecorder
}

// SetMetrics binds a MetricsRecorder after construction, mirroring
// internal/server/http.Server.SetJobs -- most callers (tests, the
// standalone-verify path) never need metrics, so it stays optional rather
// than a required New() parameter.
func (r *Runtime) SetMetrics(m MetricsRecorder) { r.metrics = m }

// Config configures a Runtime (spec §6 env var MAX_TOOL_ROUNDS).
type Config struct {
	MaxToolRounds int
}

// New builds a Runtime. tracer may be tracing.Noop() when tracing is
// disabled.
func New(llm ports.LLMClient, catalog *tools.Catalog, cfg Config, tracer tracing.Tracer, logger logging.Logger) *Runtime {
	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 8 // spec §4.4 default
	}
	return &Runtime{
		llm:           llm,
		catalog:       catalog,
		maxToolRounds: maxRounds,
		logger:        logging.OrNop(logger),
		tracer:        tracer,
		tokens:        newTokenCounter(),
	}
}

// Step runs role's tool-call loop against log, appending the agent's
// intermediate tool turns and final terminal message directly to log
// (spec §4.4 algorithm, §9: "agents return deltas, the job appends" --
// here the step owns log append since it is the sole caller within one
// job, matching the single-writer vector design).
func (r *Runtime) Step(ctx context.Context, role Role, log *task.Log) error {
	defs := r.catalog.Definitions(role.ToolNames...)

	for round := 0; ; round++ {
		if round >= r.maxToolRounds {
			return &ErrRecursionExceeded{Agent: role.Name, MaxRounds: r.maxToolRounds}
		}
		if err := ctx.Err(); err != nil {
			return alexerrors.NewTransientError(err, "Cancelled while running agent step.")
		}

		req := ports.CompletionRequest{
			SystemPrompt: role.SystemPrompt,
			Messages:     toCompletionMessages(r.tokens.trimToBudget(log.Snapshot(), promptTokenBudget)),
			Tools:        defs,
			Temperature:  role.Temperature,
			MaxTokens:    role.MaxTokens,
		}

		spanCtx, span := r.tracer.StartLLMSpan(ctx, string(role.Name))
		start := time.Now()
		completion, err := r.llm.Complete(spanCtx, req)
		if r.metrics != nil {
			r.metrics.ObserveLLMCallSeconds(string(role.Name), time.Since(start).Seconds())
		}
		span.End(err)

		if err != nil {
			return fmt.Errorf("LLM call failed: %w", err)
		}

		if len(completion.ToolCalls) == 0 {
			log.Append(task.Message{
				Role:    task.RoleAI,
				Name:    role.Name,
				Content: completion.Content,
			})
			return nil
		}

		// Parallel tool calls within one turn are permitted, but appended
		// results must stay in model-emitted order (spec §4.4 ordering).
		log.Append(task.Message{
			Role:      task.RoleAI,
			Name:      role.Name,
			Content:   completion.Content,
			ToolCalls: toDomainToolCalls(completion.ToolCalls),
		})
		results := r.dispatchAll(ctx, completion.ToolCalls)
		for i, call := range completion.ToolCalls {
			log.Append(task.Message{
				Role:       task.RoleTool,
				Name:       role.Name,
				Content:    results[i],
				ToolCallID: call.ID,
			})
		}
	}
}

// dispatchAll runs one model turn's tool calls concurrently, grounded on the
// teacher's SubAgentOrchestrator fan-out (internal/agent/app/subagent.go,
// errgroup.SetLimit), and returns results indexed the same as calls so the
// caller can append them back in model-emitted order regardless of which
// goroutine finished first.
func (r *Runtime) dispatchAll(ctx context.Context, calls []ports.ToolCallRequest) []string {
	results := make([]string, len(calls))
	if len(calls) == 0 {
		return results
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for i, call := range calls {
		i, call := i, call
		group.Go(func() error {
			result, dispatchErr := r.catalog.Dispatch(gctx, call.ToolName, call.Arguments)
			if dispatchErr != nil {
				// Only a malformed call or unknown tool reaches here; still
				// fed back as a string rather than aborting the step, so the
				// model can retry with corrected arguments.
				result = fmt.Sprintf("TOOL_ERROR: %v", dispatchErr)
				r.logger.Warn("tool dispatch error for %s: %v", call.ToolName, dispatchErr)
			}
			results[i] = result
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func toCompletionMessages(messages []task.Message) []ports.CompletionMessage {
	out := make([]ports.CompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, ports.CompletionMessage{
			Role:       string(m.Role),
			Name:       string(m.Name),
			Content:    m.Content,
			ToolCalls:  toPortsToolCalls(m.ToolCalls),
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}

func toPortsToolCalls(calls []task.ToolCall) []ports.ToolCallRequest {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ports.ToolCallRequest, len(calls))
	for i, c := range calls {
		out[i] = ports.ToolCallRequest{ID: c.ID, ToolName: c.ToolName, Arguments: c.Arguments}
	}
	return out
}

func toDomainToolCalls(calls []ports.ToolCallRequest) []task.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]task.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = task.ToolCall{ID: c.ID, ToolName: c.ToolName, Arguments: c.Arguments}
	}
	return out
}
