package recorder

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/wsrecorder/kit"
)

// RegisterMCP exposes the recorder services as MCP tools, plus
// recorder_events for feeding page events from an MCP client.
func (r *Recorder) RegisterMCP(srv *mcp.Server) {
	for _, s := range r.services() {
		kit.RegisterMCPTool(srv, &mcp.Tool{
			Name:        s.name,
			Description: s.description,
			InputSchema: kit.InputSchema(map[string]any{}),
		}, s.endpoint, kit.NoArgs)
	}

	events := func(ctx context.Context, req any) (any, error) {
		return r.submitEvents(req.(eventsArgs).Events)
	}
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        ToolEvents,
		Description: "Queue raw page events for capture, in the format the page script reports them. Events are recorded only while recording is on.",
		InputSchema: kit.InputSchema(map[string]any{
			"events": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "object"},
			},
		}, "events"),
	}, kit.Chain(r.logCall(ToolEvents))(events), kit.DecodeJSON[eventsArgs]())
}
