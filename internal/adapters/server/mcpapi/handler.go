// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/connboard/internal/adapters/server/common"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the board tools.
func NewHandler(cfg Config, board common.BoardService) (*Handler, error) {
	if board == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerOpportunityTools(mcpSrv, board)
	registerSessionTools(mcpSrv, board)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "connboard"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerOpportunityTools registers the `connboard.list_opportunities` tool.
func registerOpportunityTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"connboard.list_opportunities",
			mcp.WithDescription("List connection opportunities, optionally for one connection type."),
			mcp.WithNumber("connection_type_id", mcp.Description("Connection type id (0 lists every type)")),
			mcp.WithBoolean("active_only", mcp.Description("Skip inactive opportunities")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			opportunities, err := board.ListOpportunities(ctx, common.ListOpportunitiesRequest{
				ConnectionTypeID: int64(req.GetInt("connection_type_id", 0)),
				ActiveOnly:       req.GetBool("active_only", false),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"opportunities": opportunities,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_opportunities result: %w", err)
			}
			return result, nil
		},
	)
}

// registerSessionTools registers the board session tools.
func registerSessionTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"connboard.start_session",
			mcp.WithDescription("Start a board session for one person. A request id deep-links into its modal."),
			mcp.WithNumber("actor_id", mcp.Required(), mcp.Description("Person id of the current user")),
			mcp.WithNumber("opportunity_id", mcp.Description("Opportunity to open")),
			mcp.WithNumber("request_id", mcp.Description("Connection request to open")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			actorID, err := req.RequireInt("actor_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			started, err := board.StartSession(ctx, common.StartSessionRequest{
				ActorID:       int64(actorID),
				OpportunityID: int64(req.GetInt("opportunity_id", 0)),
				RequestID:     int64(req.GetInt("request_id", 0)),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(started)
			if err != nil {
				return nil, fmt.Errorf("encode start_session result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"connboard.command",
			mcp.WithDescription("Apply one board command to a session. The command is an object {\"type\": \"<name>\", ...}."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Board session id")),
			mcp.WithObject("command", mcp.Required(), mcp.Description("Command envelope; type is one of: "+strings.Join(common.CommandNames(), ", "))),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				SessionID string          `json:"session_id"`
				Command   json.RawMessage `json:"command"`
			}
			if err := req.BindArguments(&args); err != nil {
				return toolResultFromError(errors.Join(common.ErrInvalidRequest, err)), nil
			}
			if strings.TrimSpace(args.SessionID) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "session_id" not found`), nil
			}
			command := bytes.TrimSpace(args.Command)
			if len(command) == 0 || bytes.Equal(command, []byte("null")) {
				return mcp.NewToolResultError(`invalid_request: required argument "command" not found`), nil
			}
			applied, err := board.ApplyCommand(ctx, args.SessionID, json.RawMessage(command))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(applied)
			if err != nil {
				return nil, fmt.Errorf("encode command result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"connboard.view",
			mcp.WithDescription("Return the projected board for a session: columns or grid, filters, and the open request."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Board session id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			view, err := board.View(ctx, sessionID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(view)
			if err != nil {
				return nil, fmt.Errorf("encode view result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"connboard.close_session",
			mcp.WithDescription("Close one board session."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Board session id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := board.CloseSession(ctx, sessionID); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"session_id": sessionID,
				"closed":     true,
			})
			if err != nil {
				return nil, fmt.Errorf("encode close_session result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrPreconditionFailed):
		return mcp.NewToolResultError("precondition_failed: " + err.Error())
	case errors.Is(err, common.ErrServiceUnavailable):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
