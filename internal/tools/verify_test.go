package tools

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyTechnical_CleanPostApproved(t *testing.T) {
	post := "This paper by the authors shows a modest improvement in accuracy."
	report := VerifyTechnical(post, "Attention Mechanisms")
	require.Contains(t, report, "Status: APPROVED")
}

func TestVerifyTechnical_HypeWordsFlagged(t *testing.T) {
	post := "This revolutionary breakthrough solves everything and guarantees perfect results, by the authors."
	report := VerifyTechnical(post, "")
	require.Contains(t, report, "Status: NEEDS REVISION")
	require.Contains(t, report, `overstatement: "revolutionary"`)
	require.Contains(t, report, `overstatement: "breakthrough"`)
}

func TestVerifyTechnical_MissingAttribution(t *testing.T) {
	report := VerifyTechnical("A plain summary with no source mentioned.", "")
	require.Contains(t, report, "missing citation/author attribution")
}

func TestVerifyTechnical_ReferenceMismatch(t *testing.T) {
	post := "A study by our team on unrelated matters entirely."
	report := VerifyTechnical(post, "Transformer Architectures")
	require.Contains(t, report, "reference mismatch: paper title not reflected in post")
}
