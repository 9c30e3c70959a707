package tools

import (
	"regexp"
	"strconv"
	"strings"
)

var scorePattern = regexp.MustCompile(`Score:\s*([0-9]*\.?[0-9]+)`)
var issuePattern = regexp.MustCompile(`(?m)^- (.+)$`)

// ParseReport extracts the numeric score and issue list out of the textual
// report produced by VerifyTechnical/CheckStyle, so the graph can populate
// task.ScoreReport without the orchestrator needing to understand tool
// output beyond its documented shape (spec §4.5/§4.7).
func ParseReport(report string) (score float64, issues []string) {
	if m := scorePattern.FindStringSubmatch(report); len(m) == 2 {
		score, _ = strconv.ParseFloat(m[1], 64)
	}
	for _, m := range issuePattern.FindAllStringSubmatch(report, -1) {
		issues = append(issues, strings.TrimSpace(m[1]))
	}
	return score, issues
}
