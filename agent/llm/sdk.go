package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openaisdk "github.com/openai/openai-go"
)

var _ model.BaseChatModel = (*SDKChatModel)(nil)

var ErrEmptyCompletion = errors.New("completion has no choices")

type SDKOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// SDKChatModel serves eino messages through the openai-go client directly.
type SDKChatModel struct {
	client *openaisdk.Client
	opts   SDKOptions
}

func NewSDKChatModel(client *openaisdk.Client, opts SDKOptions) *SDKChatModel {
	return &SDKChatModel{client: client, opts: opts}
}

func (m *SDKChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	temperature := m.opts.Temperature
	maxTokens := m.opts.MaxTokens
	modelName := m.opts.Model
	common := model.GetCommonOptions(&model.Options{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Model:       &modelName,
	}, opts...)

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(*common.Model),
		Messages: toSDKMessages(input),
	}
	if common.Temperature != nil {
		params.Temperature = openaisdk.Float(float64(*common.Temperature))
	}
	if common.MaxTokens != nil && *common.MaxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(*common.MaxTokens))
	}

	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}
	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

func (m *SDKChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func toSDKMessages(in []*schema.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(in))
	for _, msg := range in {
		if msg == nil {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		switch msg.Role {
		case schema.System:
			out = append(out, openaisdk.SystemMessage(content))
		case schema.Assistant:
			out = append(out, openaisdk.AssistantMessage(content))
		default:
			out = append(out, openaisdk.UserMessage(content))
		}
	}
	return out
}
