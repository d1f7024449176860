// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanschultz/initboard/internal/adapters/server/common"
	"github.com/evanschultz/initboard/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
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

// NewHandler builds one stateless MCP adapter exposing board tools.
func NewHandler(cfg Config, boards common.BoardService) (*Handler, error) {
	if boards == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerInitiativeTools(mcpSrv, boards)
	registerBoardTools(mcpSrv, boards)

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
		cfg.ServerName = "initboard"
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

// registerInitiativeTools registers `initboard.list_initiatives` and `initboard.list_members`.
func registerInitiativeTools(srv *mcpserver.MCPServer, boards common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"initboard.list_initiatives",
			mcp.WithDescription("List initiatives that own task boards."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			initiatives, err := boards.ListInitiatives(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			if initiatives == nil {
				initiatives = []domain.Initiative{}
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"initiatives": initiatives})
			if err != nil {
				return nil, fmt.Errorf("encode list_initiatives result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"initboard.list_members",
			mcp.WithDescription("List team members of one initiative."),
			mcp.WithString("initiative_id", mcp.Required(), mcp.Description("Initiative identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			initiativeID, err := req.RequireString("initiative_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			members, err := boards.ListTeamMembers(ctx, initiativeID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			if members == nil {
				members = []domain.TeamMember{}
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"members": members})
			if err != nil {
				return nil, fmt.Errorf("encode list_members result: %w", err)
			}
			return result, nil
		},
	)
}

// registerBoardTools registers `initboard.list_board` and `initboard.move_task`.
func registerBoardTools(srv *mcpserver.MCPServer, boards common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"initboard.list_board",
			mcp.WithDescription("Return one initiative's tasks grouped into To Do, In Progress and Done columns in display order."),
			mcp.WithString("initiative_id", mcp.Required(), mcp.Description("Initiative identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			initiativeID, err := req.RequireString("initiative_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			board, err := boards.Board(ctx, initiativeID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(board)
			if err != nil {
				return nil, fmt.Errorf("encode list_board result: %w", err)
			}
			return result, nil
		},
	)

	statuses := make([]string, 0, len(domain.ColumnOrder))
	for _, status := range domain.ColumnOrder {
		statuses = append(statuses, string(status))
	}
	srv.AddTool(
		mcp.NewTool(
			"initboard.move_task",
			mcp.WithDescription("Move one task to a column and index, then persist the full board order."),
			mcp.WithString("initiative_id", mcp.Required(), mcp.Description("Initiative identifier")),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Target column"), mcp.Enum(statuses...)),
			mcp.WithNumber("index", mcp.Description("Zero-based index within the target column; clamped to the column size")),
			mcp.WithString("user_id", mcp.Description("Acting user; when set, must be the owner or a team member")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			initiativeID, err := req.RequireString("initiative_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			board, err := boards.MoveTask(ctx, common.MoveTaskRequest{
				InitiativeID: initiativeID,
				TaskID:       taskID,
				Status:       status,
				Index:        req.GetInt("index", 0),
				UserID:       req.GetString("user_id", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(board)
			if err != nil {
				return nil, fmt.Errorf("encode move_task result: %w", err)
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
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrForbidden):
		return mcp.NewToolResultError("forbidden: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
