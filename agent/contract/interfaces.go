package contract

import (
	"context"
	"time"
)

// Dispatcher executes parsed tool calls on behalf of one session.
type Dispatcher interface {
	Dispatch(ctx context.Context, call ToolCall, facts Facts, now time.Time) ToolResult
}

// Facts is the read side of the session-scoped fact store.
type Facts interface {
	Fact(key string, def string) string
}

// EventPublisher fans reservation lifecycle events out to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}
