package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	openrouterx "github.com/tanpawarit/table-reservation-agent/pkg/openrouter"
)

const (
	ProviderEino = "eino"
	ProviderSDK  = "sdk"
)

type Config struct {
	Provider           string        `envconfig:"PROVIDER" split_words:"true" default:"eino"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"1024"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.7"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
	ExcludeReasoning   bool          `envconfig:"EXCLUDE_REASONING" split_words:"true"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: llm model is required", contractx.ErrValidation)
	}
	switch c.provider() {
	case ProviderEino, ProviderSDK:
	default:
		return fmt.Errorf("%w: unknown llm provider %q", contractx.ErrValidation, c.Provider)
	}
	return nil
}

func (c Config) provider() string {
	p := strings.ToLower(strings.TrimSpace(c.Provider))
	if p == "" {
		return ProviderEino
	}
	return p
}

func (c Config) OpenRouter() openrouterx.Config {
	return openrouterx.Config{
		BaseURL:          strings.TrimSpace(c.BaseURL),
		APIKey:           strings.TrimSpace(c.APIKey),
		Model:            strings.TrimSpace(c.Model),
		MaxTokens:        c.MaxCompletionToken,
		Temperature:      c.Temperature,
		Timeout:          c.Timeout,
		SiteURL:          strings.TrimSpace(c.SiteURL),
		SiteName:         strings.TrimSpace(c.SiteName),
		ExcludeReasoning: c.ExcludeReasoning,
	}
}

// New builds the text-generation backend named by c.Provider.
func New(ctx context.Context, c Config) (model.BaseChatModel, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	orCfg := c.OpenRouter()

	switch c.provider() {
	case ProviderSDK:
		client := openrouterx.NewClient(orCfg)
		if client == nil {
			return nil, fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
		}
		return NewSDKChatModel(client, SDKOptions{
			Model:       orCfg.Model,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxCompletionToken,
			Timeout:     c.Timeout,
		}), nil
	default:
		return orCfg.ChatModel(ctx)
	}
}
