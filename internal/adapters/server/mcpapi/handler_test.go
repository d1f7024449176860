package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/evanschultz/initboard/internal/adapters/server/common"
	"github.com/evanschultz/initboard/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubBoardService provides deterministic board responses for MCP tool tests.
type stubBoardService struct {
	tasks    []domain.Task
	err      error
	lastMove common.MoveTaskRequest
}

func (s *stubBoardService) ListInitiatives(context.Context) ([]domain.Initiative, error) {
	return []domain.Initiative{{ID: "i1", Name: "Launch", OwnerID: "u1"}}, s.err
}

func (s *stubBoardService) Board(_ context.Context, initiativeID string) (common.Board, error) {
	if s.err != nil {
		return common.Board{}, s.err
	}
	return common.BuildBoard(domain.Initiative{ID: initiativeID, Name: "Launch"}, s.tasks), nil
}

func (s *stubBoardService) ListTasks(context.Context, string) ([]domain.Task, error) {
	return slices.Clone(s.tasks), s.err
}

func (s *stubBoardService) BulkUpdateTasks(context.Context, string, []domain.Task) error {
	return s.err
}

func (s *stubBoardService) MoveTask(ctx context.Context, req common.MoveTaskRequest) (common.Board, error) {
	s.lastMove = req
	return s.Board(ctx, req.InitiativeID)
}

func (s *stubBoardService) ListTeamMembers(context.Context, string) ([]domain.TeamMember, error) {
	return []domain.TeamMember{{ID: "m1", InitiativeID: "i1", Name: "Ana"}}, s.err
}

func (s *stubBoardService) Access(context.Context, string, string) (domain.Access, error) {
	return domain.Access{IsTeamMember: true}, s.err
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "initboard-test",
				"version": "1.0.0",
			},
		},
	}
}

func newTestServer(t *testing.T, boards common.BoardService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, boards)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubBoardService{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

func TestNewHandlerRequiresBoardService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("NewHandler(nil) error = nil, want error")
	}
}

func TestHandlerRegistersBoardTools(t *testing.T) {
	server := newTestServer(t, &stubBoardService{})

	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})
	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, want := range []string{
		"initboard.list_initiatives",
		"initboard.list_members",
		"initboard.list_board",
		"initboard.move_task",
	} {
		if !slices.Contains(toolNames, want) {
			t.Fatalf("tools = %#v, want %q", toolNames, want)
		}
	}
}

func TestHandlerListBoardGroupsColumns(t *testing.T) {
	stub := &stubBoardService{tasks: []domain.Task{
		{ID: "T1", InitiativeID: "i1", Title: "Plan", Status: domain.StatusTodo},
		{ID: "T2", InitiativeID: "i1", Title: "Ship", Status: domain.StatusDone},
	}}
	server := newTestServer(t, stub)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "initboard.list_board", map[string]any{
		"initiative_id": "i1",
	}))
	structured := toolResultStructured(t, callResp.Result)
	columns, ok := structured["columns"].([]any)
	if !ok || len(columns) != 3 {
		t.Fatalf("columns = %#v, want three", structured["columns"])
	}
	done, _ := columns[2].(map[string]any)
	if done["status"] != "done" {
		t.Fatalf("columns[2].status = %#v, want done", done["status"])
	}
	doneTasks, _ := done["tasks"].([]any)
	if len(doneTasks) != 1 {
		t.Fatalf("done tasks = %#v, want one", done["tasks"])
	}
}

func TestHandlerMoveTaskForwardsRequest(t *testing.T) {
	stub := &stubBoardService{}
	server := newTestServer(t, stub)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "initboard.move_task", map[string]any{
		"initiative_id": "i1",
		"task_id":       "T3",
		"status":        "todo",
		"index":         1,
		"user_id":       "m1",
	}))
	if isErr, _ := callResp.Result["isError"].(bool); isErr {
		t.Fatalf("move_task returned error: %s", toolResultText(t, callResp.Result))
	}
	want := common.MoveTaskRequest{InitiativeID: "i1", TaskID: "T3", Status: "todo", Index: 1, UserID: "m1"}
	if stub.lastMove != want {
		t.Fatalf("lastMove = %#v, want %#v", stub.lastMove, want)
	}
}

func TestHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{err: common.ErrNotFound, code: "not_found"},
		{err: common.ErrConflict, code: "conflict"},
		{err: common.ErrForbidden, code: "forbidden"},
		{err: common.ErrInvalidRequest, code: "invalid_request"},
		{err: fmt.Errorf("disk full"), code: "internal_error"},
	}
	for i, tc := range cases {
		server := newTestServer(t, &stubBoardService{err: tc.err})
		_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(10+i, "initboard.move_task", map[string]any{
			"initiative_id": "i1",
			"task_id":       "T1",
			"status":        "done",
		}))
		if isErr, _ := callResp.Result["isError"].(bool); !isErr {
			t.Fatalf("%v: isError = false, want true", tc.err)
		}
		if text := toolResultText(t, callResp.Result); !strings.HasPrefix(text, tc.code+":") {
			t.Fatalf("%v: text = %q, want prefix %q", tc.err, text, tc.code)
		}
	}
}

func TestHandlerRejectsMissingArguments(t *testing.T) {
	server := newTestServer(t, &stubBoardService{})
	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(5, "initboard.list_board", map[string]any{}))
	if text := toolResultText(t, callResp.Result); !strings.HasPrefix(text, "invalid_request:") {
		t.Fatalf("text = %q, want invalid_request", text)
	}
}
