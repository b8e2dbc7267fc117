package protocol

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
)

const (
	openCall      = "<tool_call>"
	closeCall     = "</tool_call>"
	openFunction  = "<function>"
	closeFunction = "</function>"
	openArgs      = "<args>"
	closeArgs     = "</args>"

	ToolResultsHeader = "Tool Results:"
)

// Malformed is a call block that was recognised but could not be decoded.
type Malformed struct {
	Name   string
	Raw    string
	Reason string
}

type Span struct {
	Start int
	End   int
}

// Parsed is the outcome of scanning one backend response. Calls keep the
// order in which their blocks appear; Spans covers every block, malformed
// ones included, so the surrounding prose can be recovered.
type Parsed struct {
	Calls     []contractx.ToolCall
	Malformed []Malformed
	Spans     []Span
}

func (p Parsed) HasCalls() bool { return len(p.Calls) > 0 }

// Parse scans text for
//
//	<tool_call><function>NAME</function><args>{JSON}</args></tool_call>
//
// blocks. Whitespace between tags is ignored, the JSON object may nest and
// may contain braces inside strings. An empty <args></args> yields no args.
func Parse(text string) Parsed {
	var out Parsed
	pos := 0
	for pos < len(text) {
		idx := strings.Index(text[pos:], openCall)
		if idx < 0 {
			break
		}
		start := pos + idx
		s := &scanner{input: text, pos: start + len(openCall)}
		call, err := s.block()
		if err != nil {
			end := len(text)
			if closeIdx := strings.Index(text[start:], closeCall); closeIdx >= 0 {
				end = start + closeIdx + len(closeCall)
			}
			out.Malformed = append(out.Malformed, Malformed{
				Name:   call.Name,
				Raw:    text[start:end],
				Reason: err.Error(),
			})
			out.Spans = append(out.Spans, Span{Start: start, End: end})
			pos = end
			continue
		}
		out.Calls = append(out.Calls, call)
		out.Spans = append(out.Spans, Span{Start: start, End: s.pos})
		pos = s.pos
	}
	return out
}

// HasCallBlock reports whether text carries any call syntax, complete or not.
func HasCallBlock(text string) bool {
	lower := strings.ToLower(text)
	for _, tag := range []string{openCall, closeCall, openFunction, openArgs} {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

// Strip removes every call block and any stray call tag, returning the prose.
func Strip(text string) string {
	parsed := Parse(text)
	var b strings.Builder
	last := 0
	for _, sp := range parsed.Spans {
		b.WriteString(text[last:sp.Start])
		last = sp.End
	}
	b.WriteString(text[last:])
	return strings.TrimSpace(stripTags(b.String()))
}

var strayTag = regexp.MustCompile(`(?i)</?(tool_call|function|args)>`)

func stripTags(text string) string {
	return strayTag.ReplaceAllString(text, "")
}

var confirmationCode = regexp.MustCompile(`\bGF-\d{4,}\b`)

// ConfirmationCodes lists every GF-#### code quoted in text, in order.
func ConfirmationCodes(text string) []string {
	return confirmationCode.FindAllString(text, -1)
}

// Render formats results the way they are folded back into the context:
// a "Tool Results:" header followed by one Function/Result/--- group each.
func Render(results []contractx.ToolResult) string {
	var b strings.Builder
	b.WriteString(ToolResultsHeader)
	b.WriteString("\n")
	for _, r := range results {
		payload, err := json.MarshalIndent(r.Envelope(), "", "  ")
		if err != nil {
			payload = []byte(fmt.Sprintf(`{"success": false, "error": %q}`, err.Error()))
		}
		fmt.Fprintf(&b, "Function: %s\nResult: %s\n---\n", r.Tool, payload)
	}
	return strings.TrimRight(b.String(), "\n")
}

type scanner struct {
	input string
	pos   int
}

func (s *scanner) block() (contractx.ToolCall, error) {
	var call contractx.ToolCall

	s.skipSpaces()
	if !s.match(openFunction) {
		return call, fmt.Errorf("expected %s at position %d", openFunction, s.pos)
	}
	name, ok := s.until(closeFunction)
	if !ok {
		return call, fmt.Errorf("missing %s", closeFunction)
	}
	call.Name = strings.TrimSpace(name)
	if call.Name == "" {
		return call, fmt.Errorf("empty function name")
	}

	s.skipSpaces()
	if !s.match(openArgs) {
		return call, fmt.Errorf("expected %s at position %d", openArgs, s.pos)
	}
	s.skipSpaces()
	if s.match(closeArgs) {
		call.Args = map[string]any{}
	} else {
		raw, err := s.object()
		if err != nil {
			return call, err
		}
		args := map[string]any{}
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return call, fmt.Errorf("args are not a JSON object: %w", err)
		}
		call.Args = args
		s.skipSpaces()
		if !s.match(closeArgs) {
			return call, fmt.Errorf("expected %s at position %d", closeArgs, s.pos)
		}
	}

	s.skipSpaces()
	if !s.match(closeCall) {
		return call, fmt.Errorf("expected %s at position %d", closeCall, s.pos)
	}
	return call, nil
}

// object consumes one balanced {...} value, honouring string literals.
func (s *scanner) object() (string, error) {
	if !s.hasNext() || s.peek() != '{' {
		return "", fmt.Errorf("expected '{' at position %d", s.pos)
	}
	start := s.pos
	depth := 0
	inString := false
	escaped := false
	for s.hasNext() {
		ch := s.peek()
		s.pos++
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s.input[start:s.pos], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated args object starting at position %d", start)
}

func (s *scanner) until(tag string) (string, bool) {
	idx := strings.Index(s.input[s.pos:], tag)
	if idx < 0 {
		return "", false
	}
	out := s.input[s.pos : s.pos+idx]
	s.pos += idx + len(tag)
	return out, true
}

func (s *scanner) skipSpaces() {
	for s.hasNext() {
		switch s.peek() {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) hasNext() bool {
	return s.pos < len(s.input)
}

func (s *scanner) peek() byte {
	return s.input[s.pos]
}

func (s *scanner) match(tag string) bool {
	if strings.HasPrefix(s.input[s.pos:], tag) {
		s.pos += len(tag)
		return true
	}
	return false
}
