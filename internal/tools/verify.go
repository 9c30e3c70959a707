package tools

import (
	"fmt"
	"regexp"
	"strings"
)

// hypeWords is the fixed list of overstatement triggers (spec §4.5).
var hypeWords = []string{
	"revolutionary", "breakthrough", "perfect", "solves", "guarantees",
}

var attributionPattern = regexp.MustCompile(`(?i)\b(authors?|research(ed)? by|study by|paper by)\b`)

// VerifyTechnical is a pattern-based scorer: counts overstatement triggers
// and a missing-attribution signal, returning a textual report including
// "Score: X/1.0" and "Status: APPROVED" iff score >= 0.7 (spec §4.5).
func VerifyTechnical(postContent, paperReference string) string {
	var issues []string

	lower := strings.ToLower(postContent)
	for _, w := range hypeWords {
		if strings.Contains(lower, w) {
			issues = append(issues, fmt.Sprintf("overstatement: %q", w))
		}
	}

	if !attributionPattern.MatchString(postContent) {
		issues = append(issues, "missing citation/author attribution")
	}

	if paperReference != "" && !strings.Contains(lower, strings.ToLower(firstSignificantWord(paperReference))) {
		issues = append(issues, "reference mismatch: paper title not reflected in post")
	}

	score := 1.0 - 0.2*float64(len(issues))
	if score < 0 {
		score = 0
	}

	status := "NEEDS REVISION"
	if score >= 0.7 {
		status = "APPROVED"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Score: %.2f/1.0\nStatus: %s\n", score, status)
	if len(issues) > 0 {
		sb.WriteString("Issues:\n")
		for _, i := range issues {
			fmt.Fprintf(&sb, "- %s\n", i)
		}
	}
	return sb.String()
}

func firstSignificantWord(s string) string {
	for _, w := range strings.Fields(s) {
		if len(w) >= 4 {
			return w
		}
	}
	return s
}
