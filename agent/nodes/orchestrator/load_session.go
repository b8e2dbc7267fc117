package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
)

// StandingFunc renders the standing instruction for a new or reset session.
type StandingFunc func(now time.Time) string

func LoadSession(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	standing StandingFunc,
	maxHistory int,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	c, err := store.Load(ctx, in.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, statex.ErrStateNotFound):
		c = statex.NewContext(in.SessionID, standing(in.Now), maxHistory, in.Now)
	default:
		log.Warn().Err(err).Str("session_id", in.SessionID).Msg("orchestrator: load session failed, starting fresh")
		c = statex.NewContext(in.SessionID, standing(in.Now), maxHistory, in.Now)
	}

	in.Session = c
	return in, nil
}
