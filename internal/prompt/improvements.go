package prompt

import (
	"fmt"
	"strings"
)

// Heading tokens that open the two recognized critique sections. A heading
// is any line whose last word (after an optional trailing ':' or '.') is
// one of these, case-insensitively.
var (
	priorityTokens = []string{"improvement", "improvements", "priority", "priorities"}
	approachTokens = []string{"approach", "suggestion", "recommendation"}
)

// ExtractImprovements parses free-form critique text into an ordered list
// of actionable suggestions. Best-effort by contract: unrecognized layouts
// yield an empty or partial list, never an error.
func ExtractImprovements(critique string) []string {
	lines := normalizeLines(critique)
	if len(lines) == 0 {
		return nil
	}

	var improvements []string

	if span, ok := sectionSpan(lines, priorityTokens); ok {
		items := bulletItems(span)
		if len(items) == 0 {
			items = numberedItems(span)
		}
		improvements = append(improvements, items...)
	}

	if span, ok := sectionSpan(lines, approachTokens); ok {
		if text := strings.TrimSpace(strings.Join(span, "\n")); text != "" {
			improvements = append(improvements, "APPROACH: "+text)
		}
	}

	return improvements
}

// FormatImprovements renders suggestions as a numbered list for embedding
// in the next solution request.
func FormatImprovements(improvements []string) string {
	var valid []string
	for _, imp := range improvements {
		if s := strings.TrimSpace(imp); s != "" {
			valid = append(valid, s)
		}
	}

	if len(valid) == 0 {
		return "No specific improvements identified."
	}

	var b strings.Builder
	for i, imp := range valid {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, imp)
	}
	return b.String()
}

func normalizeLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// sectionSpan returns the lines between the first heading matching tokens
// and the next '#'-prefixed line or end of text.
func sectionSpan(lines []string, tokens []string) ([]string, bool) {
	start := -1
	for i, line := range lines {
		if isHeading(line, tokens) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, false
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "#") {
			end = i
			break
		}
	}
	return lines[start:end], true
}

func isHeading(line string, tokens []string) bool {
	fields := strings.Fields(strings.TrimRight(line, ":."))
	if len(fields) == 0 {
		return false
	}
	last := strings.ToLower(fields[len(fields)-1])
	for _, tok := range tokens {
		if last == tok {
			return true
		}
	}
	return false
}

// bulletItems collects '-'/'*' items from a section span. An item continues
// across lines until the next bullet or numbered line.
func bulletItems(span []string) []string {
	var items []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		if item := strings.TrimSpace(strings.Join(current, "\n")); item != "" {
			items = append(items, item)
		}
		current = nil
	}

	for _, line := range span {
		switch {
		case line[0] == '-' || line[0] == '*':
			flush()
			current = []string{strings.TrimSpace(line[1:])}
		case line[0] >= '0' && line[0] <= '9':
			flush()
		case len(current) > 0:
			current = append(current, line)
		}
	}
	flush()
	return items
}

// numberedItems is the fallback for spans with no bullets: items start at
// "1. " / "2) " style lines.
func numberedItems(span []string) []string {
	var items []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		if item := strings.TrimSpace(strings.Join(current, "\n")); item != "" {
			items = append(items, item)
		}
		current = nil
	}

	for _, line := range span {
		if content, ok := numberedContent(line); ok {
			flush()
			current = []string{content}
			continue
		}
		if len(current) > 0 {
			current = append(current, line)
		}
	}
	flush()
	return items
}

// numberedContent strips a leading "12." / "3)" / "4 " marker.
func numberedContent(line string) (string, bool) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", false
	}

	rest := line[i:]
	if rest == "" {
		return "", true
	}
	switch rest[0] {
	case '.', ')':
		rest = rest[1:]
	case ' ', '\t':
	default:
		return "", false
	}
	return strings.TrimSpace(rest), true
}
