package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Config describes one OpenRouter-backed chat model. SiteURL and SiteName
// become the attribution headers OpenRouter shows on its leaderboard.
type Config struct {
	BaseURL          string
	APIKey           string
	Model            string
	MaxTokens        int
	Temperature      float32
	Timeout          time.Duration
	SiteURL          string
	SiteName         string
	ExcludeReasoning bool
}

func (c Config) baseURL() string {
	if u := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); u != "" {
		return u
	}
	return DefaultBaseURL
}

// Headers are the OpenRouter attribution headers for this config.
func (c Config) Headers() map[string]string {
	h := make(map[string]string, 2)
	if v := strings.TrimSpace(c.SiteURL); v != "" {
		h["HTTP-Referer"] = v
	}
	if v := strings.TrimSpace(c.SiteName); v != "" {
		h["X-Title"] = v
	}
	return h
}

// reasoningFields asks OpenRouter to drop reasoning tokens. Replies are
// read as plain text, so hidden reasoning only costs latency.
func (c Config) reasoningFields() map[string]any {
	if !c.ExcludeReasoning {
		return nil
	}
	return map[string]any{
		"reasoning": map[string]any{"exclude": true, "effort": "none"},
	}
}

// ChatModel builds an eino chat model that talks to OpenRouter.
func (c Config) ChatModel(ctx context.Context) (model.ToolCallingChatModel, error) {
	conf := &openaimodel.ChatModelConfig{
		BaseURL:     c.baseURL(),
		APIKey:      strings.TrimSpace(c.APIKey),
		Model:       strings.TrimSpace(c.Model),
		Timeout:     c.Timeout,
		ExtraFields: c.reasoningFields(),
	}
	if c.MaxTokens > 0 {
		maxTokens := c.MaxTokens
		conf.MaxTokens = &maxTokens
	}
	temperature := c.Temperature
	conf.Temperature = &temperature

	if headers := c.Headers(); len(headers) > 0 {
		conf.HTTPClient = &http.Client{
			Timeout:   c.Timeout,
			Transport: headerTransport{base: http.DefaultTransport, headers: headers},
		}
	}

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("openrouter: create chat model: %w", err)
	}
	return m, nil
}

// NewClient creates an OpenAI SDK client pointed at OpenRouter, or nil
// without an API key.
func NewClient(c Config) *openaisdk.Client {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithBaseURL(c.baseURL()),
		option.WithMaxRetries(1),
	}
	for k, v := range c.Headers() {
		opts = append(opts, option.WithHeader(k, v))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
