package crawl

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP exposes the single-shot answerer as an MCP tool so hosts
// can ask web questions through the crawler.
func (o *OneShot) RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webgaze_answer",
		Description: "Answer a natural-language question by crawling the web: a model proposes a URL, the page is screenshotted, and a vision model answers from the capture.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{"type": "string", "description": "The question to answer"},
			},
			"required": []string{"question"},
		},
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Question string `json:"question"`
		}
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New("invalid arguments: " + err.Error()))
			return &res, nil
		}
		if args.Question == "" {
			var res mcp.CallToolResult
			res.SetError(errors.New("question is required"))
			return &res, nil
		}

		answer, err := o.Ask(ctx, args.Question)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: answer}},
		}, nil
	})
}
