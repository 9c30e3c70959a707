package tools

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var engagementPattern = regexp.MustCompile(`\?\s*$|\?\s*\n`)
var numberedListPattern = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)

// isEmoji is a coarse but deterministic check over common emoji code
// blocks, sufficient for "zero emoji" detection without an external
// dependency the rest of the pack doesn't already carry.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	default:
		return false
	}
}

// CheckStyle computes structural metrics and returns a textual report
// including a numeric style score in [0,1] and "Status: LINKEDIN READY"
// iff score >= threshold (spec §4.5).
func CheckStyle(postContent string) string {
	charCount := len([]rune(postContent))
	emojiCount := 0
	for _, r := range postContent {
		if isEmoji(r) {
			emojiCount++
		}
	}
	hashtagCount := len(ExtractHashtags(postContent))
	hasEngagement := engagementPattern.MatchString(postContent)
	hasNumberedList := numberedListPattern.MatchString(postContent)

	score := 1.0
	var issues []string

	if charCount < 600 || charCount > 1300 {
		score -= 0.1
		issues = append(issues, fmt.Sprintf("char count %d outside [600, 1300]", charCount))
	}
	if emojiCount == 0 {
		score -= 0.1
		issues = append(issues, "zero emoji")
	}
	if !hasEngagement {
		score -= 0.1
		issues = append(issues, "no engagement question")
	}
	if hashtagCount < 3 || hashtagCount > 15 {
		score -= 0.1
		issues = append(issues, fmt.Sprintf("hashtag count %d outside [3, 15]", hashtagCount))
	}
	if !hasNumberedList {
		score -= 0.1
		issues = append(issues, "missing numbered list")
	}
	if score < 0 {
		score = 0
	}

	const threshold = 0.7
	status := "NOT READY"
	if score >= threshold {
		status = "LINKEDIN READY"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Score: %.2f/1.0\nStatus: %s\n", score, status)
	fmt.Fprintf(&sb, "Characters: %d, Emoji: %d, Hashtags: %d\n", charCount, emojiCount, hashtagCount)
	if len(issues) > 0 {
		sb.WriteString("Issues:\n")
		for _, i := range issues {
			fmt.Fprintf(&sb, "- %s\n", i)
		}
	}
	return sb.String()
}

// wordCount backs the exported WordCount, used for artifact construction
// (spec §3 LinkedInPostArtifact.word_count).
func wordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}

// WordCount computes the word count of content for artifact construction.
func WordCount(content string) int { return wordCount(content) }
