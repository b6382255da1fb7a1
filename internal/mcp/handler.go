package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tendant/signed-upload/pkg/signedurl/uploads"
)

// Handler exposes signed URL issuance as MCP tools
type Handler struct {
	issuer *uploads.Issuer
}

// NewHandler creates a new instance of Handler
func NewHandler(issuer *uploads.Issuer) *Handler {
	return &Handler{issuer: issuer}
}

// RegisterTools registers the upload tools with the MCP server
func (h *Handler) RegisterTools(s *server.MCPServer) {
	s.AddTool(mcp.Tool{
		Name: "create_upload_url",
		Description: "Create a short-lived signed URL that lets a client PUT one object into the upload bucket. " +
			"The client must send the returned headers (notably Content-Type) unchanged.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"filename": map[string]any{
					"type":        "string",
					"description": "Object key to upload to. A random key under the configured prefix is used when omitted.",
				},
				"content_type": map[string]any{
					"type":        "string",
					"description": "Content-Type the upload will carry. Defaults to the configured type when omitted, application/octet-stream when empty.",
				},
				"expires_minutes": map[string]any{
					"type":        "integer",
					"description": "URL lifetime in minutes, at most 10080 (7 days). Defaults to 15.",
					"minimum":     1,
				},
			},
		},
	}, h.handleCreateUploadURL)
}

func (h *Handler) handleCreateUploadURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var req uploads.Request
	if v, ok := args["filename"].(string); ok {
		req.Filename = v
	}
	if v, ok := args["content_type"]; ok {
		switch ct := v.(type) {
		case nil:
			req.ContentType = uploads.Some("")
		case string:
			req.ContentType = uploads.Some(ct)
		default:
			return mcp.NewToolResultError(fmt.Sprintf("content_type: must be a string, got %T", v)), nil
		}
	}
	if v, ok := args["expires_minutes"]; ok && v != nil {
		minutes, err := toInt(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("expires_minutes: %v", err)), nil
		}
		req.ExpiresMinutes = &minutes
	}

	signed, err := h.issuer.Issue(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", uploads.ErrorCode(err), err)), nil
	}

	data, err := json.MarshalIndent(signed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed URL: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toInt accepts the number shapes JSON decoding produces.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, fmt.Errorf("must be a whole number, got %v", n)
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("must be a whole number, got %s", n)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("must be a number, got %T", v)
	}
}
