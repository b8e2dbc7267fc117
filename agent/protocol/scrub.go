package protocol

import (
	"regexp"
	"strings"
	"unicode"
)

var preambles = []string{
	"based on the tool results,",
	"based on the tool result,",
	"according to the tool results,",
	"according to the results,",
	"here is my response:",
	"here's my response:",
	"final response:",
	"response:",
	"assistant:",
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// ScrubLeaks removes protocol residue from a reply before it reaches the
// user: call blocks, echoed "Tool Results:" sections with their
// Function:/Result: lines and JSON bodies, and boilerplate preambles.
func ScrubLeaks(text string) string {
	text = Strip(text)

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	depth := 0
	for _, line := range lines {
		if depth > 0 {
			depth += braceDelta(line)
			continue
		}
		rest := trimPreambles(strings.TrimSpace(line))
		lower := strings.ToLower(rest)
		switch {
		case strings.HasPrefix(lower, strings.ToLower(ToolResultsHeader)),
			strings.HasPrefix(lower, "function:"),
			rest == "---":
			continue
		case strings.HasPrefix(lower, "result:"):
			depth = max(braceDelta(rest), 0)
			continue
		case rest == "" && strings.TrimSpace(line) != "":
			continue
		case rest != strings.TrimSpace(line):
			line = rest
		}
		kept = append(kept, line)
	}
	text = strings.TrimSpace(strings.Join(kept, "\n"))
	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n"))
}

func trimPreambles(line string) string {
	for {
		lower := strings.ToLower(line)
		trimmed := false
		for _, p := range preambles {
			if strings.HasPrefix(lower, p) {
				line = strings.TrimSpace(line[len(p):])
				trimmed = true
				break
			}
		}
		if !trimmed {
			return line
		}
	}
}

func braceDelta(line string) int {
	return strings.Count(line, "{") + strings.Count(line, "[") -
		strings.Count(line, "}") - strings.Count(line, "]")
}

// NearEmpty reports whether the scrubbed reply carries no usable prose.
func NearEmpty(text string) bool {
	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if letters >= 8 {
				return false
			}
		}
	}
	return true
}
