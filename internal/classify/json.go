package classify

import "strings"

// cleanResponse strips markdown fences and isolates the first balanced
// JSON object. Models in JSON mode usually return clean JSON, but text
// mode and smaller models wrap it in prose or code fences.
func cleanResponse(resp string) (string, bool) {
	cleaned := strings.TrimSpace(resp)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return extractFirstJSONObject(cleaned)
}

// extractFirstJSONObject finds the first outermost balanced {...},
// honoring string literals and escapes.
func extractFirstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if char == '{' {
				depth++
			} else if char == '}' {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
