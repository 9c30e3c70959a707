package agentruntime

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"paperpost-orchestrator/internal/domain/task"
)

// tokenCounter wraps a cl100k_base tiktoken encoding, grounded on the
// teacher's EstimateTokens (internal/app/context/manager_compress.go), which
// counts each message's content through the same encoding before deciding
// whether to compact.
type tokenCounter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

func newTokenCounter() *tokenCounter {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &tokenCounter{enc: enc}
}

// count returns enc's token count for s, or a conservative length-based
// estimate when no encoding is available (the teacher's tests tolerate the
// encoding being unavailable the same way -- see tokenutil_test.go's
// `if encoding != nil` guards).
func (c *tokenCounter) count(s string) int {
	if c.enc == nil {
		return len(s) / 4
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.enc.Encode(s, nil, nil))
}

func (c *tokenCounter) countMessages(messages []task.Message) int {
	total := 0
	for _, m := range messages {
		total += c.count(m.Content)
	}
	return total
}

// trimToBudget drops the oldest non-system-role messages from messages until
// the remainder fits under budget tokens, mirroring the teacher's
// AutoCompact threshold check without the full summarization machinery this
// domain's short-lived team logs don't need: a capped run never grows large
// enough to warrant an LLM-driven compression pass, so dropping the oldest
// turns is sufficient to keep every completion request within budget. The
// last message is never dropped.
func (c *tokenCounter) trimToBudget(messages []task.Message, budget int) []task.Message {
	if budget <= 0 || c.countMessages(messages) <= budget {
		return messages
	}
	trimmed := append([]task.Message(nil), messages...)
	for len(trimmed) > 1 && c.countMessages(trimmed) > budget {
		drop := -1
		for i := 0; i < len(trimmed)-1; i++ {
			if trimmed[i].Role != task.RoleSystem {
				drop = i
				break
			}
		}
		if drop < 0 {
			break
		}
		trimmed = append(trimmed[:drop], trimmed[drop+1:]...)
	}
	return trimmed
}
