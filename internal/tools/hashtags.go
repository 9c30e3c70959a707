package tools

import "regexp"

var hashtagPattern = regexp.MustCompile(`#[A-Za-z0-9_]+`)

// ExtractHashtags returns the hashtags in content as `#[A-Za-z0-9_]+`, in
// order of first appearance, deduplicated (spec §4.7 result extraction;
// P8: idempotent under repeated application).
func ExtractHashtags(content string) []string {
	matches := hashtagPattern.FindAllString(content, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
