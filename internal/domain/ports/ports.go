// Package ports declares the capability boundaries the orchestrator depends
// on but does not implement the internals of: the LLM client and the Web
// Search client (spec §1 explicitly keeps both external, "specified only by
// the capability interfaces the orchestrator consumes"). Shape follows the
// teacher's internal/domain/agent/ports/llm client boundary.
package ports

import "context"

// ToolDefinition describes one callable tool offered to the LLM for a given
// agent step (spec §4.4/§4.5).
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-schema-shaped parameter description
}

// ToolCallRequest is one tool invocation the model emitted.
type ToolCallRequest struct {
	ID        string
	ToolName  string
	Arguments string // raw JSON arguments, as emitted by the model
}

// CompletionRequest is what AgentRuntime submits to the LLM for one turn
// (spec §4.4 step 1).
type CompletionRequest struct {
	SystemPrompt string
	Messages     []CompletionMessage
	Tools        []ToolDefinition
	Temperature  float64
	MaxTokens    int
}

// CompletionMessage is one turn of conversation handed to the LLM client,
// role-tagged the same way as task.Message but decoupled from the domain
// package so ports has no dependency on it.
type CompletionMessage struct {
	Role      string
	Name      string
	Content   string
	ToolCalls []ToolCallRequest
	// ToolCallID, set only on role "tool", answers a prior ToolCallRequest.
	ToolCallID string
}

// CompletionResponse is the LLM's answer for one turn.
type CompletionResponse struct {
	Content      string
	ToolCalls    []ToolCallRequest
	PromptTokens int
	OutputTokens int
}

// LLMClient is the narrow capability AgentRuntime and the graph supervisors
// depend on. A concrete adapter (internal/llm) wraps a real provider with
// retry + circuit breaker.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// SearchClient is the Web Search capability the research_paper/web_search
// tools delegate to (spec §4.5).
type SearchClient interface {
	Search(ctx context.Context, query string) (string, error)
}
