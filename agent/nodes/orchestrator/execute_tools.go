package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	"github.com/tanpawarit/table-reservation-agent/agent/protocol"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
)

// ExecuteTools dispatches each parsed call in order and folds the results
// back into the session as one system message.
func ExecuteTools(ctx context.Context, in *GraphState, tools contractx.Dispatcher) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	for _, call := range in.Parsed.Calls {
		res := tools.Dispatch(ctx, call, in.Session, in.Now)
		log.Info().
			Str("session_id", in.SessionID).
			Str("tool", res.Tool).
			Bool("success", res.Success).
			Msg("orchestrator: tool executed")
		in.Results = append(in.Results, res)
	}

	foldResults(in, in.Results)
	return in, nil
}

func foldResults(in *GraphState, results []contractx.ToolResult) {
	if len(results) == 0 {
		return
	}
	in.Session.AddMessage(statex.RoleSystem, protocol.Render(results), in.Now)
}
