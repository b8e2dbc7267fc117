package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	"github.com/tanpawarit/table-reservation-agent/agent/protocol"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
)

// FinalizeReply scrubs protocol residue and records the assistant turn.
// A backend apology is returned but kept out of the history.
func FinalizeReply(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if len(in.Results) > 0 || protocol.HasCallBlock(reply) {
		reply = protocol.ScrubLeaks(reply)
	}
	if reply == "" {
		reply = FallbackReply(in.Results)
	}
	in.Reply = reply

	if !in.BackendFailed {
		in.Session.AddMessage(statex.RoleAssistant, reply, in.Now)
	}
	return in, nil
}
