package llm

import "strings"

// ExtractJSON strips markdown code fences from a model response, leaving
// the raw JSON payload. Models fence their output despite instructions
// often enough that every structured caller goes through here.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	endIdx := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// RepairJSON escapes raw control characters that models sometimes emit
// inside string literals, the most common strict-parse failure after
// fencing. It only touches characters inside strings.
func RepairJSON(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	escaped := false
	for _, r := range text {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch {
		case inString && r == '\\':
			b.WriteRune(r)
			escaped = true
		case r == '"':
			b.WriteRune(r)
			inString = !inString
		case inString && r == '\n':
			b.WriteString(`\n`)
		case inString && r == '\r':
			b.WriteString(`\r`)
		case inString && r == '\t':
			b.WriteString(`\t`)
		case inString && r < 0x20:
			// Drop other raw control characters.
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
