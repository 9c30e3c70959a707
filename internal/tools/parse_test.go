package tools

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReport_ScoreAndIssues(t *testing.T) {
	report := "Score: 0.80/1.0\nStatus: NOT READY\nIssues:\n- zero emoji\n- missing numbered list\n"
	score, issues := ParseReport(report)
	require.Equal(t, 0.80, score)
	require.Equal(t, []string{"zero emoji", "missing numbered list"}, issues)
}

func TestParseReport_NoIssues(t *testing.T) {
	score, issues := ParseReport("Score: 1.00/1.0\nStatus: APPROVED\n")
	require.Equal(t, 1.0, score)
	require.Empty(t, issues)
}

func TestParseReport_MissingScoreDefaultsZero(t *testing.T) {
	score, _ := ParseReport("no score here")
	require.Equal(t, 0.0, score)
}
