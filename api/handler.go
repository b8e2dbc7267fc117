package api

import (
	"context"
	"strings"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
	"github.com/tanpawarit/table-reservation-agent/reservation"
)

// Agent is the conversational surface the HTTP layer drives.
type Agent interface {
	ProcessTurn(ctx context.Context, sessionID, text string, identity contractx.Identity) (string, error)
	Reset(ctx context.Context, sessionID string) error
	History(ctx context.Context, sessionID string) ([]statex.Message, error)
}

// Events authenticates webhook deliveries.
type Events interface {
	Verify(signature string, body []byte, hookURL string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	agent    Agent
	store    reservation.Store
	verifier Events
	hookURL  string
	health   Pinger
	newID    func() string
}

func NewHandler(d Deps) *Handler {
	h := &Handler{
		agent:    d.Agent,
		store:    d.Store,
		verifier: d.Events,
		health:   d.Health,
		newID:    d.NewID,
	}
	if u := strings.TrimRight(strings.TrimSpace(d.Config.PublicURL), "/"); u != "" {
		h.hookURL = u + EventsPath
	}
	if h.newID == nil {
		h.newID = newSessionID
	}
	return h
}
