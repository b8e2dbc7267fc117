package orchestratornode

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	"github.com/tanpawarit/table-reservation-agent/agent/prompt"
	"github.com/tanpawarit/table-reservation-agent/agent/protocol"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
	"github.com/tanpawarit/table-reservation-agent/agent/tool"
)

// MaxNarrationRetries is the hard ceiling on re-prompts after a rejected
// narration.
const MaxNarrationRetries = 2

// NarrationState is the position of the narration guard.
type NarrationState int

const (
	NarrationIdle NarrationState = iota
	NarrationAwaitBackend
	NarrationValidate
	NarrationRetry
	NarrationEmit
	NarrationFallback
)

func (s NarrationState) String() string {
	switch s {
	case NarrationAwaitBackend:
		return "await_backend"
	case NarrationValidate:
		return "validate"
	case NarrationRetry:
		return "retry"
	case NarrationEmit:
		return "emit"
	case NarrationFallback:
		return "fallback"
	default:
		return "idle"
	}
}

// Narrate asks the backend to describe this turn's tool results in plain
// text. Replies carrying call syntax, no prose, or confirmation codes that
// no tool produced are rejected and re-prompted up to maxRetries times, then
// replaced by a reply built from the last result.
func Narrate(
	ctx context.Context,
	in *GraphState,
	chat model.BaseChatModel,
	prompts prompt.PromptSet,
	maxRetries int,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if len(in.Results) == 0 {
		return in, nil
	}
	maxRetries = min(max(maxRetries, 0), MaxNarrationRetries)

	msgs := toSchemaMessages(in.Session.History(true))
	msgs = append(msgs, schema.SystemMessage(prompts.Narration(narrationFor(in.Results))))
	allowed := knownCodes(in.Session, in.Results)

	var candidate, reason string
	in.Narration = NarrationAwaitBackend
	for {
		switch in.Narration {
		case NarrationAwaitBackend:
			raw, err := generate(ctx, chat, msgs)
			if err != nil {
				log.Error().Err(err).Str("session_id", in.SessionID).Int("attempt", in.Attempts+1).Msg("orchestrator: narration call failed")
				in.Narration = NarrationFallback
				continue
			}
			in.Attempts++
			candidate = raw
			in.Narration = NarrationValidate

		case NarrationValidate:
			var cleaned string
			cleaned, reason = validateNarration(candidate, allowed)
			if reason == "" {
				in.Reply = cleaned
				in.Narration = NarrationEmit
				continue
			}
			log.Warn().
				Err(fmt.Errorf("%w: %s", contractx.ErrSchemaViolation, reason)).
				Str("session_id", in.SessionID).
				Int("attempt", in.Attempts).
				Msg("orchestrator: narration rejected")
			if in.Attempts > maxRetries {
				in.Narration = NarrationFallback
			} else {
				in.Narration = NarrationRetry
			}

		case NarrationRetry:
			msgs = append(msgs,
				schema.AssistantMessage(candidate, nil),
				schema.SystemMessage(prompt.Correction(reason)),
			)
			in.Narration = NarrationAwaitBackend

		case NarrationFallback:
			in.Reply = FallbackReply(in.Results)
			in.Fallback = true
			in.Narration = NarrationEmit

		default:
			return in, nil
		}
	}
}

func narrationFor(results []contractx.ToolResult) prompt.Narration {
	switch tool.KindOf(results[len(results)-1].Tool) {
	case tool.KindBook:
		return prompt.NarrateBooking
	case tool.KindSearch:
		return prompt.NarrateSearch
	default:
		return prompt.NarrateGeneric
	}
}

// validateNarration returns the scrubbed reply, or the reason it must be
// rejected.
func validateNarration(raw string, allowed map[string]bool) (string, string) {
	if protocol.HasCallBlock(raw) {
		return "", "it contained tool call syntax"
	}
	cleaned := protocol.ScrubLeaks(raw)
	if protocol.NearEmpty(cleaned) {
		return "", "it was empty once tool output was removed"
	}
	for _, code := range protocol.ConfirmationCodes(cleaned) {
		if !allowed[code] {
			return "", fmt.Sprintf("it quoted confirmation code %s, which no tool returned", code)
		}
	}
	return cleaned, ""
}

// knownCodes are the confirmation codes the guest or a tool has already put
// on record: this turn's results plus user and system messages in the session.
func knownCodes(session *statex.Context, results []contractx.ToolResult) map[string]bool {
	known := make(map[string]bool)
	for _, code := range protocol.ConfirmationCodes(protocol.Render(results)) {
		known[code] = true
	}
	for _, m := range session.History(true) {
		if m.Role == statex.RoleAssistant {
			continue
		}
		for _, code := range protocol.ConfirmationCodes(m.Content) {
			known[code] = true
		}
	}
	return known
}
