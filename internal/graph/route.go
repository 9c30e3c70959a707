// Package graph implements TeamGraph and MetaGraph (spec §4.6/§4.7): the two
// fixed-shape state machines that drive the Content team, the Verification
// team, and the overall job. Grounded on the teacher's supervisor pattern in
// internal/agent/tool_executor.go (tolerant JSON decode of a model's
// structured output via jsonrepair, with a conservative fallback), applied
// here to the supervisor's next-agent routing decision instead of tool-call
// arguments.
package graph

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"paperpost-orchestrator/internal/domain/task"
)

// Route is the supervisor's decision after one member turn: hand off to a
// named member, or finish the team/job (spec §9: "make the supervisor return
// a value Route = Member(name) | Finish directly, not a mutation").
type Route struct {
	Member task.AgentName
	Finish bool
}

type routeDecision struct {
	Next string `json:"next"`
}

// decodeRoute is the tolerant parser spec §9 calls for: JSON first, a
// name-scan fallback second, defaulting safely to Finish on ambiguity so a
// malformed supervisor response can never spin the graph forever.
func decodeRoute(raw string, members []task.AgentName) Route {
	if dec, ok := tryJSON(raw); ok {
		return classify(dec.Next, members)
	}
	if repaired, err := jsonrepair.JSONRepair(raw); err == nil {
		if dec, ok := tryJSON(repaired); ok {
			return classify(dec.Next, members)
		}
	}
	return classify(scanForMemberName(raw, members), members)
}

func tryJSON(raw string) (routeDecision, bool) {
	var dec routeDecision
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &dec); err != nil {
		return routeDecision{}, false
	}
	if dec.Next == "" {
		return routeDecision{}, false
	}
	return dec, true
}

// scanForMemberName looks for known members' names anywhere in the raw
// text, as the last-resort fallback the teacher's simpleFallbackRepair
// plays for malformed tool-call JSON. It returns a name only when exactly
// one member is named; none or several yield "" (which classify turns into
// Finish).
func scanForMemberName(raw string, members []task.AgentName) string {
	upper := strings.ToUpper(raw)
	if strings.Contains(upper, "FINISH") {
		return "FINISH"
	}
	found := ""
	for _, m := range members {
		if strings.Contains(raw, string(m)) {
			if found != "" {
				return ""
			}
			found = string(m)
		}
	}
	return found
}

func classify(next string, members []task.AgentName) Route {
	trimmed := strings.TrimSpace(next)
	for _, m := range members {
		if strings.EqualFold(trimmed, string(m)) {
			return Route{Member: m}
		}
	}
	// Safe default: any unrecognized or empty decision finishes the team
	// rather than risk looping on a name the parser couldn't place.
	return Route{Finish: true}
}
