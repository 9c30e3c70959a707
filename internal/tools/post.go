package tools

import (
	"fmt"
	"strings"
)

// CreatePost is a pure formatter: an opening line, numbered insights (<=5),
// an engagement question, and a deterministic hashtag block (spec §4.5).
func CreatePost(content, paperTitle string, keyInsights []string, tone, audience string, maxHashtags int) string {
	if tone == "" {
		tone = "professional"
	}
	if maxHashtags <= 0 || maxHashtags > 20 {
		maxHashtags = 10
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Exciting insights from \"%s\"! ", paperTitle)
	sb.WriteString(strings.TrimSpace(content))
	sb.WriteString("\n\n")

	limit := len(keyInsights)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSpace(keyInsights[i]))
	}

	sb.WriteString("\nWhat's your take on this research? Let's discuss in the comments!\n\n")

	sb.WriteString(buildHashtags(paperTitle, audience, maxHashtags))
	return sb.String()
}

// buildHashtags deterministically selects up to maxHashtags tags from the
// paper title's significant words plus a fixed audience-appropriate tail.
func buildHashtags(paperTitle, audience string, maxHashtags int) string {
	var tags []string
	for _, word := range strings.Fields(paperTitle) {
		w := strings.Trim(word, ".,:;!?\"'()")
		if len(w) < 4 {
			continue
		}
		tag := "#" + strings.Title(strings.ToLower(w)) //nolint:staticcheck // deterministic, not locale-sensitive
		tags = append(tags, tag)
	}

	base := []string{"#AI", "#MachineLearning", "#Research"}
	switch audience {
	case "academic":
		base = append(base, "#AcademicResearch")
	case "general":
		base = append(base, "#TechForEveryone")
	default:
		base = append(base, "#Innovation")
	}
	tags = append(tags, base...)

	seen := make(map[string]bool, len(tags))
	deduped := make([]string, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		deduped = append(deduped, t)
	}
	if len(deduped) > maxHashtags {
		deduped = deduped[:maxHashtags]
	}
	return strings.Join(deduped, " ")
}
