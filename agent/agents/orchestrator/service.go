package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	nodex "github.com/tanpawarit/table-reservation-agent/agent/nodes/orchestrator"
	"github.com/tanpawarit/table-reservation-agent/agent/prompt"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
	"github.com/tanpawarit/table-reservation-agent/agent/tool"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

type Config struct {
	MaxHistory          int           `envconfig:"MAX_HISTORY" split_words:"true" default:"20"`
	MaxNarrationRetries int           `envconfig:"MAX_NARRATION_RETRIES" split_words:"true" default:"2"`
	AutoBook            bool          `envconfig:"AUTO_BOOK" split_words:"true" default:"true"`
	Timezone            string        `envconfig:"TIMEZONE" split_words:"true" default:"Asia/Kolkata"`
	TurnTimeout         time.Duration `envconfig:"TURN_TIMEOUT" split_words:"true" default:"90s"`
}

// Orchestrator runs one conversational turn at a time per session.
type Orchestrator struct {
	store   statex.Store
	chat    model.BaseChatModel
	tools   contractx.Dispatcher
	prompts prompt.PromptSet
	cfg     Config
	loc     *time.Location

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
	locks       *sessionLocks

	now func() time.Time
}

type Option func(*Orchestrator)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(
	store statex.Store,
	chat model.BaseChatModel,
	tools contractx.Dispatcher,
	cfg Config,
	opts ...Option,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if chat == nil {
		return nil, errors.New("chat model is required")
	}
	if tools == nil {
		return nil, errors.New("tool dispatcher is required")
	}

	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone %q: %v", contractx.ErrValidation, tz, err)
		}
		loc = l
	}
	if cfg.MaxNarrationRetries > nodex.MaxNarrationRetries {
		cfg.MaxNarrationRetries = nodex.MaxNarrationRetries
	}
	if cfg.MaxNarrationRetries < 0 {
		cfg.MaxNarrationRetries = 0
	}

	prompts := prompt.LoadPromptSet()
	if err := prompts.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		store:   store,
		chat:    chat,
		tools:   tools,
		prompts: prompts,
		cfg:     cfg,
		loc:     loc,
		locks:   newSessionLocks(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// ProcessTurn answers one user message. It errors only on a blank session
// id or message; every other failure is turned into a reply.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, text string, identity contractx.Identity) (string, error) {
	out, err := o.Turn(ctx, sessionID, text, identity)
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}

// Turn is ProcessTurn with the executed tool results attached.
func (o *Orchestrator) Turn(ctx context.Context, sessionID, text string, identity contractx.Identity) (out nodex.GraphOutput, err error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nodex.GraphOutput{}, ErrInvalidSession
	}
	if strings.TrimSpace(text) == "" {
		return nodex.GraphOutput{}, ErrInvalidMessage
	}

	unlock := o.locks.lock(sessionID)
	defer unlock()

	if o.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TurnTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("session_id", sessionID).Interface("panic", rec).Msg("orchestrator: turn panicked")
			out, err = nodex.GraphOutput{Reply: nodex.BackendApology}, nil
		}
	}()

	out, err = o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
		Identity:  identity,
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("orchestrator: turn failed")
		return nodex.GraphOutput{Reply: nodex.BackendApology}, nil
	}
	return out, nil
}

// Reset returns the session to just its standing instruction.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}

	unlock := o.locks.lock(sessionID)
	defer unlock()

	now := o.now().In(o.loc)
	c, err := o.store.Load(ctx, sessionID)
	switch {
	case err == nil:
		c.Reset(o.standing(now), now)
	case errors.Is(err, statex.ErrStateNotFound):
		c = statex.NewContext(sessionID, o.standing(now), o.cfg.MaxHistory, now)
	default:
		return fmt.Errorf("load session: %w", err)
	}
	return o.store.Save(ctx, c)
}

// History lists the user and assistant messages of a session.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]statex.Message, error) {
	c, err := o.store.Load(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, err
	}
	return c.History(false), nil
}

// Summary renders the last n user and assistant messages, one per line.
func (o *Orchestrator) Summary(ctx context.Context, sessionID string, n int) (string, error) {
	c, err := o.store.Load(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return "", err
	}
	return c.RecentSummary(n), nil
}

func (o *Orchestrator) standing(now time.Time) string {
	specs := tool.Specs()
	lines := make([]prompt.ToolLine, 0, len(specs))
	for _, s := range specs {
		lines = append(lines, prompt.ToolLine{Name: s.Name, Desc: s.Desc, Args: s.ArgSummary()})
	}
	text, err := prompt.Standing(now, lines)
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: render standing prompt")
		return "You are a restaurant reservation assistant. Use tools for every booking."
	}
	return text
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type sessionLocks struct {
	mu    sync.Mutex
	byKey map[string]*sessionLock
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{byKey: make(map[string]*sessionLock)}
}

func (l *sessionLocks) lock(key string) func() {
	l.mu.Lock()
	sl, ok := l.byKey[key]
	if !ok {
		sl = &sessionLock{}
		l.byKey[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.byKey, key)
		}
		l.mu.Unlock()
	}
}
