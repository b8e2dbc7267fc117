package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/tanpawarit/table-reservation-agent/agent/nodes/orchestrator"
)

func (o *Orchestrator) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now, o.loc)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	steps := []struct {
		name string
		fn   func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error)
	}{
		{"load_session", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadSession(ctx, in, o.store, o.standing, o.cfg.MaxHistory)
		}},
		{"record_user_message", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RecordUserMessage(in)
		}},
		{"call_backend", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CallBackend(ctx, in, o.chat)
		}},
		{"extract_tool_calls", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExtractToolCalls(in)
		}},
		{nodex.NodeEmitResponse, func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.EmitResponse(in)
		}},
		{nodex.NodeExecuteTools, func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExecuteTools(ctx, in, o.tools)
		}},
		{"auto_book", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AutoBook(ctx, in, o.tools, o.cfg.AutoBook)
		}},
		{"narrate", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Narrate(ctx, in, o.chat, o.prompts, o.cfg.MaxNarrationRetries)
		}},
		{"finalize_reply", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.FinalizeReply(in)
		}},
	}
	for _, step := range steps {
		if err := graph.AddLambdaNode(step.name, compose.InvokableLambda(step.fn)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", step.name, err)
		}
	}

	if err := graph.AddLambdaNode("save_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.SaveSession(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node save_session: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			return nodex.RouteAfterExtract(in), nil
		},
		map[string]bool{
			nodex.NodeEmitResponse: true,
			nodex.NodeExecuteTools: true,
		},
	)
	if err := graph.AddBranch("extract_tool_calls", branch); err != nil {
		return nil, fmt.Errorf("add branch after extract_tool_calls: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_session"},
		{"load_session", "record_user_message"},
		{"record_user_message", "call_backend"},
		{"call_backend", "extract_tool_calls"},
		{nodex.NodeExecuteTools, "auto_book"},
		{"auto_book", "narrate"},
		{"narrate", "finalize_reply"},
		{nodex.NodeEmitResponse, "finalize_reply"},
		{"finalize_reply", "save_session"},
		{"save_session", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.process_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
