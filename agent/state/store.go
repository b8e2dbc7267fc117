package state

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrStateNotFound   = errors.New("session state not found")
	ErrNilSessionState = errors.New("session state is nil")
	ErrInvalidSession  = errors.New("session id is empty")
)

// Store is the persistence contract used by the orchestrator.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Context, error)
	Save(ctx context.Context, c *Context) error
	Delete(ctx context.Context, sessionID string) error
}

func prepareSave(c *Context) error {
	if c == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(c.SessionID) == "" {
		return ErrInvalidSession
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c.Validate()
}

func loaded(c *Context) (*Context, error) {
	if c.Facts == nil {
		c.Facts = make(map[string]string, 4)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
