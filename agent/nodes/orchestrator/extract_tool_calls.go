package orchestratornode

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	"github.com/tanpawarit/table-reservation-agent/agent/protocol"
)

const (
	NodeEmitResponse = "emit_response"
	NodeExecuteTools = "execute_tools"
)

func ExtractToolCalls(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if in.BackendFailed {
		return in, nil
	}

	in.Parsed = protocol.Parse(in.Raw)
	for _, m := range in.Parsed.Malformed {
		log.Warn().
			Str("session_id", in.SessionID).
			Str("tool", m.Name).
			Str("reason", m.Reason).
			Msg("orchestrator: dropping malformed call block")
	}
	return in, nil
}

// RouteAfterExtract picks the next node: tools when at least one call
// parsed, otherwise the backend text is the answer.
func RouteAfterExtract(in *GraphState) string {
	if in == nil || in.BackendFailed || !in.Parsed.HasCalls() {
		return NodeEmitResponse
	}
	return NodeExecuteTools
}

// UnverifiedReply replaces a direct reply that quotes a confirmation code no
// tool or guest has put on record.
const UnverifiedReply = "I haven't completed any booking in this conversation yet. Which restaurant, date, time and party size would you like me to book?"

// EmitResponse settles the reply for a turn that ran no tools. The text is
// scrubbed and must not quote an unknown confirmation code.
func EmitResponse(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if in.BackendFailed {
		return in, nil
	}

	reply := protocol.ScrubLeaks(in.Raw)
	known := knownCodes(in.Session, nil)
	for _, code := range protocol.ConfirmationCodes(reply) {
		if known[code] {
			continue
		}
		log.Warn().
			Err(fmt.Errorf("%w: direct reply quoted confirmation code %s", contractx.ErrSchemaViolation, code)).
			Str("session_id", in.SessionID).
			Msg("orchestrator: direct reply rejected")
		reply = UnverifiedReply
		in.Fallback = true
		break
	}
	if strings.TrimSpace(reply) == "" {
		reply = BackendApology
	}
	in.Reply = reply
	return in, nil
}
