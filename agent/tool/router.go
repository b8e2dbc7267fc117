package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	"github.com/tanpawarit/table-reservation-agent/reservation"
)

const (
	TopicReservationConfirmed = "reservation.confirmed"
	TopicReservationCancelled = "reservation.cancelled"

	maxRecommendations = 5
	maxCandidates      = 10
	maxAlternatives    = 5
)

var _ contractx.Dispatcher = (*Router)(nil)

type handler func(ctx context.Context, spec Spec, in Values) contractx.ToolResult

// Router validates, normalises and executes tool calls against the
// reservation store. Every outcome, failures included, is a ToolResult.
type Router struct {
	store    reservation.Store
	ranker   Ranker
	events   contractx.EventPublisher
	handlers map[Kind]handler
}

type Option func(*Router)

func WithRanker(r Ranker) Option {
	return func(rt *Router) {
		if r != nil {
			rt.ranker = r
		}
	}
}

func WithPublisher(p contractx.EventPublisher) Option {
	return func(rt *Router) { rt.events = p }
}

func NewRouter(store reservation.Store, opts ...Option) *Router {
	r := &Router{
		store:  store,
		ranker: KeywordRanker{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.handlers = map[Kind]handler{
		KindSearch:           r.search,
		KindAvailability:     r.availability,
		KindBook:             r.book,
		KindCancel:           r.cancel,
		KindListReservations: r.listReservations,
		KindAnalytics:        r.analytics,
	}
	return r
}

func (r *Router) Dispatch(ctx context.Context, call contractx.ToolCall, facts contractx.Facts, now time.Time) (out contractx.ToolResult) {
	spec, ok := Lookup(call.Name)
	if !ok {
		return contractx.Failed(call.Name, call.Args, contractx.ErrUnknownTool.Error())
	}

	args := make(map[string]any, len(call.Args)+3)
	for k, v := range call.Args {
		args[k] = v
	}
	if spec.Identity {
		injectIdentity(spec, args, facts)
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("tool", spec.Name).Interface("panic", rec).Msg("tool: handler panicked")
			out = contractx.Failed(spec.Name, args, "internal error while running "+spec.Name)
		}
	}()

	in, err := bind(spec, args, now)
	if err != nil {
		return contractx.Failed(spec.Name, args, err.Error())
	}
	if msg := misuse(spec, args); msg != "" {
		return contractx.Failed(spec.Name, args, msg)
	}

	out = r.handlers[spec.Kind](ctx, spec, in)
	out.Tool = spec.Name
	out.Args = args
	log.Debug().
		Str("tool", spec.Name).
		Bool("success", out.Success).
		Str("error", out.Error).
		Msg("tool: dispatched")
	return out
}

// injectIdentity binds an identity tool to the session user. The user id
// always comes from the session. A booking keeps a guest name or email the
// dialogue supplied; every other identity tool uses the session's.
func injectIdentity(spec Spec, args map[string]any, facts contractx.Facts) {
	for _, key := range []string{contractx.FactUserID, contractx.FactUserName, contractx.FactUserEmail} {
		dialogueWins := spec.Kind == KindBook && key != contractx.FactUserID
		if v, ok := args[key]; ok && dialogueWins && !isBlank(v) {
			continue
		}
		delete(args, key)
		if facts == nil {
			continue
		}
		if v := facts.Fact(key, ""); v != "" {
			args[key] = v
		}
	}
}

func misuse(spec Spec, args map[string]any) string {
	if spec.Kind != KindAvailability {
		return ""
	}
	for _, k := range []string{"query", "cuisine", "location"} {
		if _, ok := args[k]; ok {
			return "check_availability needs a restaurant_id; use search_restaurants to find restaurants by name, cuisine or location"
		}
	}
	return ""
}

func ownerFrom(in Values) reservation.Owner {
	return reservation.Owner{
		UserID: in.String(contractx.FactUserID),
		Name:   in.String(contractx.FactUserName),
	}
}

func (r *Router) publish(ctx context.Context, topic string, res reservation.Reservation) {
	if r.events == nil {
		return
	}
	payload := map[string]any{
		"reservation_id":    res.ID,
		"confirmation_code": res.ConfirmationCode(),
		"restaurant_id":     res.RestaurantID,
		"restaurant_name":   res.RestaurantName,
		"user_id":           res.UserID,
		"user_name":         res.UserName,
		"date":              res.Date,
		"time":              res.Time,
		"party_size":        res.PartySize,
		"status":            string(res.Status),
	}
	if err := r.events.Publish(ctx, topic, payload); err != nil {
		log.Warn().Err(err).Str("topic", topic).Int64("reservation_id", res.ID).Msg("tool: publish event failed")
	}
}

func restaurantNotFound(id int) string {
	return fmt.Sprintf("Restaurant with ID %d not found", id)
}
