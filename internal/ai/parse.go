package ai

import "strings"

// extractJSON pulls the first JSON object out of a model reply, tolerating
// markdown code fences and leading prose.
func extractJSON(s string) string {
	trimmed := strings.TrimSpace(s)

	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			trimmed = rest[:end]
		} else {
			trimmed = rest
		}
	}

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end < start {
		return ""
	}

	return trimmed[start : end+1]
}
