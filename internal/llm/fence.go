package llm

import "strings"

// StripCodeFence trims a model answer and removes a surrounding markdown code
// block, including an optional "json" language tag.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		// Single line like ```{"a":1}```.
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimPrefix(text, "json")
		return strings.TrimSpace(text)
	}

	text = strings.Join(lines[1:len(lines)-1], "\n")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "json")
	return strings.TrimSpace(text)
}
