package contract

import (
	"encoding/json"
	"strings"
)

// Identity is the signed-in user as handed over by the presentation shell.
// UserID is the stable identity; DisplayName is what the agent calls the user.
type Identity struct {
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

func (i Identity) Name() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	return "Guest"
}

// ToolCall is one invocation parsed out of an agent turn.
type ToolCall struct {
	Name string         `json:"function"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the outcome of one dispatched ToolCall. It renders as the
// envelope {success, error?, ...fields}.
type ToolResult struct {
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args,omitempty"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func Succeeded(tool string, args map[string]any, fields map[string]any) ToolResult {
	if fields == nil {
		fields = map[string]any{}
	}
	return ToolResult{Tool: tool, Args: args, Success: true, Fields: fields}
}

func Failed(tool string, args map[string]any, msg string) ToolResult {
	return ToolResult{Tool: tool, Args: args, Success: false, Error: msg}
}

// With returns a copy of r carrying an additional field.
func (r ToolResult) With(key string, val any) ToolResult {
	fields := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		fields[k] = v
	}
	fields[key] = val
	r.Fields = fields
	return r
}

func (r ToolResult) Envelope() map[string]any {
	env := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		env[k] = v
	}
	env["success"] = r.Success
	if !r.Success {
		env["error"] = r.Error
	}
	return env
}

func (r ToolResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Envelope())
}

// String field accessor with "" on miss or type mismatch.
func (r ToolResult) String(key string) string {
	v, _ := r.Fields[key].(string)
	return v
}

func (r ToolResult) Int(key string) int {
	switch v := r.Fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Session fact keys shared by the orchestrator (writer) and the router (reader).
const (
	FactUserID    = "user_id"
	FactUserName  = "user_name"
	FactUserEmail = "user_email"
)
