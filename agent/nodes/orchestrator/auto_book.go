package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	"github.com/tanpawarit/table-reservation-agent/agent/tool"
)

var bookAnywherePhrases = []string{
	"book any",
	"book anywhere",
	"anywhere available",
	"any restaurant",
	"any available",
	"whichever is available",
	"wherever is available",
	"first available",
}

// WantsAnyTable reports whether the guest explicitly delegated the choice
// of restaurant.
func WantsAnyTable(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range bookAnywherePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// AutoBook books the first available search hit when the guest asked to
// book anywhere and the backend stopped at a search. Disabled unless enabled.
func AutoBook(ctx context.Context, in *GraphState, tools contractx.Dispatcher, enabled bool) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if !enabled || !WantsAnyTable(in.Text) {
		return in, nil
	}

	var search *contractx.ToolResult
	for i := range in.Results {
		switch tool.KindOf(in.Results[i].Tool) {
		case tool.KindBook:
			return in, nil
		case tool.KindSearch:
			if in.Results[i].Success {
				search = &in.Results[i]
			}
		}
	}
	if search == nil {
		return in, nil
	}

	date := search.Args["date"]
	tm := search.Args["time"]
	party := search.Args["party_size"]
	if date == nil || tm == nil || party == nil {
		return in, nil
	}

	recs, _ := search.Fields["recommendations"].([]map[string]any)
	for _, rec := range recs {
		if available, _ := rec["available"].(bool); !available {
			continue
		}
		call := contractx.ToolCall{
			Name: tool.ToolBookReservation,
			Args: map[string]any{
				"restaurant_id": rec["id"],
				"date":          date,
				"time":          tm,
				"party_size":    party,
			},
		}
		res := tools.Dispatch(ctx, call, in.Session, in.Now)
		log.Info().
			Str("session_id", in.SessionID).
			Interface("restaurant_id", rec["id"]).
			Bool("success", res.Success).
			Msg("orchestrator: auto-booked first available restaurant")
		in.Results = append(in.Results, res)
		foldResults(in, []contractx.ToolResult{res})
		return in, nil
	}
	return in, nil
}
