package protocol

import (
	"strings"
	"testing"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
)

func TestParseSingleBlock(t *testing.T) {
	t.Parallel()

	text := `Let me check that.
<tool_call>
  <function>check_availability</function>
  <args>{"restaurant_id": 5, "date": "2025-11-11", "time": "7pm", "party_size": 4}</args>
</tool_call>`

	got := Parse(text)
	if len(got.Calls) != 1 {
		t.Fatalf("expected 1 call, got %d (malformed=%v)", len(got.Calls), got.Malformed)
	}
	call := got.Calls[0]
	if call.Name != "check_availability" {
		t.Fatalf("unexpected name: %q", call.Name)
	}
	if call.Args["restaurant_id"] != float64(5) || call.Args["time"] != "7pm" {
		t.Fatalf("unexpected args: %#v", call.Args)
	}
	if Strip(text) != "Let me check that." {
		t.Fatalf("unexpected prose: %q", Strip(text))
	}
}

func TestParseKeepsOrderAndNestedBraces(t *testing.T) {
	t.Parallel()

	text := `<tool_call><function>search_restaurants</function><args>{"query": "a {cozy} place", "meta": {"tags": ["x", "}"]}}</args></tool_call>` +
		"\nthen\n" +
		`<tool_call><function>get_user_reservations</function><args></args></tool_call>`

	got := Parse(text)
	if len(got.Calls) != 2 {
		t.Fatalf("expected 2 calls, got %d (malformed=%v)", len(got.Calls), got.Malformed)
	}
	if got.Calls[0].Name != "search_restaurants" || got.Calls[1].Name != "get_user_reservations" {
		t.Fatalf("unexpected order: %#v", got.Calls)
	}
	if got.Calls[0].Args["query"] != "a {cozy} place" {
		t.Fatalf("unexpected query: %#v", got.Calls[0].Args["query"])
	}
	meta, ok := got.Calls[0].Args["meta"].(map[string]any)
	if !ok || len(meta["tags"].([]any)) != 2 {
		t.Fatalf("nested object lost: %#v", got.Calls[0].Args["meta"])
	}
	if len(got.Calls[1].Args) != 0 {
		t.Fatalf("expected empty args, got %#v", got.Calls[1].Args)
	}
}

func TestParseDropsMalformedPayload(t *testing.T) {
	t.Parallel()

	text := `<tool_call><function>book_reservation</function><args>{"restaurant_id": 5, date: tomorrow}</args></tool_call>` +
		`<tool_call><function>get_analytics</function><args>{}</args></tool_call>`

	got := Parse(text)
	if len(got.Calls) != 1 || got.Calls[0].Name != "get_analytics" {
		t.Fatalf("expected only get_analytics, got %#v", got.Calls)
	}
	if len(got.Malformed) != 1 || got.Malformed[0].Name != "book_reservation" {
		t.Fatalf("expected one malformed book_reservation, got %#v", got.Malformed)
	}
	if len(got.Spans) != 2 {
		t.Fatalf("expected spans for both blocks, got %d", len(got.Spans))
	}
}

func TestParseUnterminatedBlock(t *testing.T) {
	t.Parallel()

	text := `Sure! <tool_call><function>book_reservation</function><args>{"restaurant_id": 5`
	got := Parse(text)
	if got.HasCalls() {
		t.Fatalf("expected no calls, got %#v", got.Calls)
	}
	if len(got.Malformed) != 1 {
		t.Fatalf("expected malformed block, got %#v", got.Malformed)
	}
	if Strip(text) != "Sure!" {
		t.Fatalf("unexpected prose: %q", Strip(text))
	}
}

func TestParseNoBlock(t *testing.T) {
	t.Parallel()

	got := Parse("Hello! How many guests will be joining?")
	if got.HasCalls() || len(got.Malformed) != 0 {
		t.Fatalf("expected nothing, got %#v", got)
	}
	if HasCallBlock("Hello! How many guests?") {
		t.Fatal("plain text must not report a call block")
	}
	if !HasCallBlock("ok <FUNCTION>book_reservation") {
		t.Fatal("stray function tag must count as call syntax")
	}
}

func TestScrubLeaks(t *testing.T) {
	t.Parallel()

	text := `Based on the tool results, Tool Results:
Function: book_reservation
Result: {
  "success": true,
  "confirmation_code": "GF-0007"
}
---
Your table is booked! Confirmation code GF-0007.

<tool_call><function>get_user_reservations</function><args>{}</args></tool_call>`

	got := ScrubLeaks(text)
	if got != "Your table is booked! Confirmation code GF-0007." {
		t.Fatalf("unexpected scrub: %q", got)
	}
}

func TestScrubLeaksKeepsPlainReply(t *testing.T) {
	t.Parallel()

	text := "Great choice.\n\n\n\nWould you like me to book it?"
	if got := ScrubLeaks(text); got != "Great choice.\n\nWould you like me to book it?" {
		t.Fatalf("unexpected scrub: %q", got)
	}
}

func TestRenderAndCodes(t *testing.T) {
	t.Parallel()

	out := Render([]contractx.ToolResult{
		contractx.Succeeded("book_reservation", nil, map[string]any{"confirmation_code": "GF-0012"}),
		contractx.Failed("cancel_reservation", nil, "Reservation not found"),
	})
	if !strings.HasPrefix(out, "Tool Results:\nFunction: book_reservation\nResult: {") {
		t.Fatalf("unexpected render head: %q", out)
	}
	if !strings.Contains(out, `"error": "Reservation not found"`) {
		t.Fatalf("failure envelope missing: %q", out)
	}
	if codes := ConfirmationCodes(out); len(codes) != 1 || codes[0] != "GF-0012" {
		t.Fatalf("unexpected codes: %v", codes)
	}
	if !NearEmpty("  ..  ") || NearEmpty("Your table is ready") {
		t.Fatal("NearEmpty misclassified")
	}
}
