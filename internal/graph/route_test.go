package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"paperpost-orchestrator/internal/domain/task"
)

var members = []task.AgentName{task.AgentPaperResearcher, task.AgentLinkedInCreator}

func TestDecodeRoute_WellFormedJSON(t *testing.T) {
	route := decodeRoute(`{"next": "PaperResearcher"}`, members)
	require.False(t, route.Finish)
	require.Equal(t, task.AgentPaperResearcher, route.Member)
}

func TestDecodeRoute_Finish(t *testing.T) {
	route := decodeRoute(`{"next": "FINISH"}`, members)
	require.True(t, route.Finish)
}

func TestDecodeRoute_RepairableJSON(t *testing.T) {
	// Trailing comma and missing closing brace -- jsonrepair's territory.
	route := decodeRoute(`{"next": "LinkedInCreator",`, members)
	require.False(t, route.Finish)
	require.Equal(t, task.AgentLinkedInCreator, route.Member)
}

func TestDecodeRoute_NameScanFallback(t *testing.T) {
	route := decodeRoute(`I think we should route to PaperResearcher next.`, members)
	require.False(t, route.Finish)
	require.Equal(t, task.AgentPaperResearcher, route.Member)
}

func TestDecodeRoute_UnrecognizedDefaultsToFinish(t *testing.T) {
	route := decodeRoute(`complete gibberish with no member name`, members)
	require.True(t, route.Finish)
}
