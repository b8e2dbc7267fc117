package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
)

const BackendApology = "I apologize, but I encountered an error while preparing a response. Please try again."

var errEmptyCompletion = errors.New("backend returned an empty message")

func CallBackend(ctx context.Context, in *GraphState, chat model.BaseChatModel) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	raw, err := generate(ctx, chat, toSchemaMessages(in.Session.History(true)))
	if err != nil {
		log.Error().Err(err).Str("session_id", in.SessionID).Msg("orchestrator: backend call failed")
		in.BackendFailed = true
		in.Reply = BackendApology
		return in, nil
	}
	in.Raw = raw
	return in, nil
}

func generate(ctx context.Context, chat model.BaseChatModel, msgs []*schema.Message) (string, error) {
	resp, err := chat.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, errEmptyCompletion)
	}
	return resp.Content, nil
}

func toSchemaMessages(history []statex.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case statex.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case statex.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}
