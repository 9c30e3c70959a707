package task

// Role is the author of a Message in the append-only log (I7).
type Role string

const (
	RoleHuman  Role = "human"
	RoleSystem Role = "system"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// ToolCall is one model-emitted tool invocation request.
type ToolCall struct {
	ID        string `json:"id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments"`
}

// Message is one entry in a job's append-only message log. The log itself
// is never persisted to TaskStore (spec §3: "not persisted individually,
// only the final artifact is kept"); it lives for the duration of one job.
type Message struct {
	Role      Role       `json:"role"`
	Name      AgentName  `json:"name,omitempty"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID identifies which ToolCall a RoleTool message answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Log is the single-writer, append-only vector owned by one job (spec §9:
// "a single-writer vector owned by the job; agents return deltas, the job
// appends").
type Log struct {
	messages []Message
}

// Append adds msgs to the end of the log, in order.
func (l *Log) Append(msgs ...Message) {
	l.messages = append(l.messages, msgs...)
}

// Snapshot returns a copy of the log's current contents.
func (l *Log) Snapshot() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len reports the number of messages currently in the log.
func (l *Log) Len() int { return len(l.messages) }

// LastByAgent returns the last non-tool-call assistant message authored by
// name, used for MetaGraph result extraction (spec §4.7).
func (l *Log) LastByAgent(name AgentName) (Message, bool) {
	for i := len(l.messages) - 1; i >= 0; i-- {
		m := l.messages[i]
		if m.Role == RoleAI && m.Name == name && len(m.ToolCalls) == 0 {
			return m, true
		}
	}
	return Message{}, false
}
