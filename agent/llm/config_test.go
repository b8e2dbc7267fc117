package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	openrouterx "github.com/tanpawarit/table-reservation-agent/pkg/openrouter"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []Config{
		{Model: "m"},
		{APIKey: "k"},
		{APIKey: "k", Model: "m", Provider: "grpc"},
	}
	for _, c := range cases {
		if err := c.Validate(); !errors.Is(err, contractx.ErrValidation) {
			t.Fatalf("Validate(%+v) = %v, want ErrValidation", c, err)
		}
	}
	if err := (Config{APIKey: "k", Model: "m"}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestSDKChatModelGenerate(t *testing.T) {
	t.Parallel()

	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Table for two?"}}]}`))
	}))
	t.Cleanup(server.Close)

	client := openrouterx.NewClient(openrouterx.Config{APIKey: "k", BaseURL: server.URL})
	m := NewSDKChatModel(client, SDKOptions{Model: "test-model", Temperature: 0.2, MaxTokens: 64})

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("standing"),
		schema.UserMessage("hi"),
		schema.AssistantMessage("hello", nil),
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if msg.Role != schema.Assistant || msg.Content != "Table for two?" {
		t.Fatalf("Generate() = %+v", msg)
	}
	if got.Model != "test-model" || len(got.Messages) != 3 {
		t.Fatalf("request = %+v", got)
	}
	roles := []string{got.Messages[0].Role, got.Messages[1].Role, got.Messages[2].Role}
	if roles[0] != "system" || roles[1] != "user" || roles[2] != "assistant" {
		t.Fatalf("roles = %v", roles)
	}
}
