package qstash

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	SignatureHeader = "Upstash-Signature"
	TopicHeader     = "Upstash-Forward-X-Event-Topic"

	maxResponseSizeBytes = 1 << 20
)

var ErrInvalidSignature = errors.New("qstash: invalid signature")

type Config struct {
	URL               string        `split_words:"true" required:"true"`
	Token             string        `split_words:"true" required:"true"`
	CurrentSigningKey string        `split_words:"true" required:"true"`
	NextSigningKey    string        `split_words:"true" required:"true"`
	Destination       string        `split_words:"true" required:"true"`
	Timeout           time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL           string
	token             string
	currentSigningKey string
	nextSigningKey    string
	destination       string
	httpClient        *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		token:             strings.TrimSpace(cfg.Token),
		currentSigningKey: strings.TrimSpace(cfg.CurrentSigningKey),
		nextSigningKey:    strings.TrimSpace(cfg.NextSigningKey),
		destination:       strings.TrimSpace(cfg.Destination),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	return client, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

type publishResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// Publish enqueues payload as JSON for the configured destination, which
// may be a URL or a URL group. The topic travels as a forwarded header.
func (c *Client) Publish(ctx context.Context, topic string, payload any) error {
	if c.destination == "" {
		return errors.New("qstash destination is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal qstash payload: %w", err)
	}

	endpoint := c.baseURL + "/v2/publish/" + c.destination
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build qstash request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	if topic != "" {
		req.Header.Set(TopicHeader, topic)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute qstash request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read qstash response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("qstash http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed publishResponse
	if len(raw) > 0 && json.Unmarshal(raw, &parsed) == nil && parsed.Error != "" {
		return errors.New(parsed.Error)
	}
	return nil
}

type signatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// Verify checks a delivery's Upstash-Signature against the current and then
// the next signing key. hookURL, when set, must match the token subject.
func (c *Client) Verify(signature string, body []byte, hookURL string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}

	var lastErr error
	for _, key := range []string{c.currentSigningKey, c.nextSigningKey} {
		if key == "" {
			continue
		}
		if lastErr = verifyWithKey(signature, body, hookURL, key); lastErr == nil {
			return nil
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no signing key configured")
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func verifyWithKey(signature string, body []byte, hookURL, key string) error {
	claims := &signatureClaims{}
	token, err := jwt.ParseWithClaims(signature, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(key), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("Upstash"),
		jwt.WithLeeway(time.Second),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("token is not valid")
	}
	if hookURL != "" && claims.Subject != hookURL {
		return fmt.Errorf("subject %q does not match %q", claims.Subject, hookURL)
	}

	sum := sha256.Sum256(body)
	want := strings.TrimRight(base64.URLEncoding.EncodeToString(sum[:]), "=")
	if strings.TrimRight(claims.Body, "=") != want {
		return errors.New("body hash mismatch")
	}
	return nil
}
