package state

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	DefaultMaxHistory = 20
	minHistory        = 2
	summaryClip       = 100
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is one session's bounded conversation history plus its fact
// store. The first message is the standing instruction and survives trimming.
type Context struct {
	SessionID  string            `json:"session_id"`
	MaxHistory int               `json:"max_history"`
	Messages   []Message         `json:"messages"`
	Facts      map[string]string `json:"facts,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func NewContext(sessionID, standing string, maxHistory int, now time.Time) *Context {
	c := &Context{
		SessionID:  sessionID,
		MaxHistory: clampHistory(maxHistory),
		Facts:      make(map[string]string, 4),
	}
	c.Reset(standing, now)
	return c
}

func clampHistory(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxHistory
	case n < minHistory:
		return minHistory
	default:
		return n
	}
}

func (c *Context) AddMessage(role Role, content string, now time.Time) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content, Timestamp: now.UTC()})
	c.UpdatedAt = now.UTC()

	limit := clampHistory(c.MaxHistory)
	if len(c.Messages) <= limit {
		return
	}
	trimmed := make([]Message, 0, limit)
	trimmed = append(trimmed, c.Messages[0])
	trimmed = append(trimmed, c.Messages[len(c.Messages)-(limit-1):]...)
	c.Messages = trimmed
}

// History returns a copy of the messages, optionally without system turns.
func (c *Context) History(includeSystem bool) []Message {
	out := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if !includeSystem && m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c *Context) Standing() string {
	if len(c.Messages) == 0 || c.Messages[0].Role != RoleSystem {
		return ""
	}
	return c.Messages[0].Content
}

func (c *Context) SetFact(key, value string) {
	if c.Facts == nil {
		c.Facts = make(map[string]string, 4)
	}
	c.Facts[key] = value
}

func (c *Context) DeleteFact(key string) {
	delete(c.Facts, key)
}

func (c *Context) Fact(key, def string) string {
	if v, ok := c.Facts[key]; ok {
		return v
	}
	return def
}

// Reset drops history and facts, leaving only the standing instruction.
func (c *Context) Reset(standing string, now time.Time) {
	c.Messages = c.Messages[:0]
	if standing != "" {
		c.Messages = append(c.Messages, Message{Role: RoleSystem, Content: standing, Timestamp: now.UTC()})
	}
	c.Facts = make(map[string]string, 4)
	c.UpdatedAt = now.UTC()
}

// RecentSummary renders the last n messages as "User: ..." / "Assistant: ..."
// lines, each clipped.
func (c *Context) RecentSummary(n int) string {
	if n <= 0 {
		return ""
	}
	recent := c.Messages
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	var b strings.Builder
	for _, m := range recent {
		var label string
		switch m.Role {
		case RoleUser:
			label = "User"
		case RoleAssistant:
			label = "Assistant"
		default:
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(clip(m.Content, summaryClip))
	}
	return b.String()
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (c *Context) Touch(now time.Time) {
	c.UpdatedAt = now.UTC()
}

func (c *Context) Validate() error {
	if c == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(c.SessionID) == "" {
		return ErrInvalidSession
	}
	if c.MaxHistory < minHistory {
		return fmt.Errorf("max history must be >= %d, got %d", minHistory, c.MaxHistory)
	}
	if len(c.Messages) > c.MaxHistory {
		return fmt.Errorf("history holds %d messages, cap is %d", len(c.Messages), c.MaxHistory)
	}
	for i, m := range c.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
	}
	return nil
}
