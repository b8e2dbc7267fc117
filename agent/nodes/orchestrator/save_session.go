package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
)

// SaveSession persists the context. A store failure is logged; the guest
// still gets the reply computed for this turn.
func SaveSession(ctx context.Context, in *GraphState, store statex.Store) (GraphOutput, error) {
	if in == nil || in.Session == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	in.Session.Touch(in.Now)
	if err := store.Save(ctx, in.Session); err != nil {
		log.Error().Err(err).Str("session_id", in.SessionID).Msg("orchestrator: save session failed")
	}

	return GraphOutput{
		Reply:    in.Reply,
		Results:  in.Results,
		Fallback: in.Fallback,
	}, nil
}
