package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	"github.com/tanpawarit/table-reservation-agent/agent/protocol"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

type GraphInput struct {
	SessionID string
	Text      string
	Identity  contractx.Identity
}

type GraphOutput struct {
	Reply    string
	Results  []contractx.ToolResult
	Fallback bool
}

// GraphState is the single value threaded through every node of a turn.
type GraphState struct {
	SessionID string
	Text      string
	Identity  contractx.Identity
	Now       time.Time

	Session *statex.Context

	Raw           string
	BackendFailed bool
	Parsed        protocol.Parsed
	Results       []contractx.ToolResult

	Narration NarrationState
	Attempts  int
	Fallback  bool

	Reply string
}

// ValidateRequest trims the input and stamps the turn clock in loc.
func ValidateRequest(in GraphInput, nowFn func() time.Time, loc *time.Location) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	if loc == nil {
		loc = time.UTC
	}
	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Identity:  in.Identity,
		Now:       nowFn().In(loc),
	}, nil
}
