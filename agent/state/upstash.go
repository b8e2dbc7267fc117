package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultStoreKeyPrefix = "tablebot:session:"
	defaultStoreTTL       = 24 * time.Hour
	maxResponseSizeBytes  = 2 << 20
)

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// UpstashRedisStore keeps one JSON document per session in Upstash Redis,
// spoken to over its REST API. With a TTL, reads slide the expiry forward
// so only idle sessions expire.
type UpstashRedisStore struct {
	endpoint string
	token    string
	client   *http.Client
	prefix   string
	ttl      time.Duration
}

var _ Store = (*UpstashRedisStore)(nil)

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		if p := strings.TrimSpace(prefix); p != "" {
			s.prefix = p
		}
	}
}

// WithTTL sets the idle expiry; zero keeps sessions forever.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) { s.ttl = ttl }
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.client = client
		}
	}
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if endpoint == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &UpstashRedisStore{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
		prefix:   defaultStoreKeyPrefix,
		ttl:      defaultStoreTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return s, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, sessionID string) (*Context, error) {
	key, err := s.key(sessionID)
	if err != nil {
		return nil, err
	}

	command := []any{"GET", key}
	if s.ttl > 0 {
		command = []any{"GETEX", key, "EX", expirySeconds(s.ttl)}
	}
	result, err := s.do(ctx, command...)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrStateNotFound
	}

	// Values come back as a JSON string holding the stored document.
	var doc string
	if err := json.Unmarshal(result, &doc); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}
	var c Context
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, fmt.Errorf("unmarshal session context: %w", err)
	}
	out, err := loaded(&c)
	if err != nil {
		return nil, fmt.Errorf("invalid session context loaded from store: %w", err)
	}
	return out, nil
}

func (s *UpstashRedisStore) Save(ctx context.Context, c *Context) error {
	if err := prepareSave(c); err != nil {
		return err
	}
	key, err := s.key(c.SessionID)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal session context: %w", err)
	}

	command := []any{"SET", key, string(doc)}
	if s.ttl > 0 {
		command = append(command, "EX", expirySeconds(s.ttl))
	}
	_, err = s.do(ctx, command...)
	return err
}

func (s *UpstashRedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := s.key(sessionID)
	if err != nil {
		return err
	}
	_, err = s.do(ctx, "DEL", key)
	return err
}

func (s *UpstashRedisStore) key(sessionID string) (string, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return "", ErrInvalidSession
	}
	return s.prefix + id, nil
}

type restReply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// do sends one command as a JSON array and returns the raw result.
func (s *UpstashRedisStore) do(ctx context.Context, command ...any) (json.RawMessage, error) {
	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("redis %v: %w", command[0], err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	var reply restReply
	if jsonErr := json.Unmarshal(raw, &reply); jsonErr == nil && reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	return bytes.TrimSpace(reply.Result), nil
}

// expirySeconds rounds up so sub-second TTLs still expire.
func expirySeconds(ttl time.Duration) int64 {
	secs := int64((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
