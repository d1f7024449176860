// Package remote talks to an initboard server of record over its HTTP API and change feed.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/evanschultz/initboard/internal/adapters/server/common"
	"github.com/evanschultz/initboard/internal/domain"
)

// defaultTimeout bounds one API round trip.
const defaultTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL      string
	APIEndpoint  string
	FeedEndpoint string
	HTTPClient   *http.Client
	Logger       *log.Logger
}

// Client is a board source backed by a remote server.
type Client struct {
	base     *url.URL
	apiPath  string
	feedPath string
	http     *http.Client
	dialer   *websocket.Dialer
	logger   *log.Logger
}

// Error is one structured API failure returned by the server.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap maps server error codes back onto transport sentinels.
func (e *Error) Unwrap() error {
	switch e.Code {
	case "not_found":
		return common.ErrNotFound
	case "conflict":
		return common.ErrConflict
	case "forbidden":
		return common.ErrForbidden
	case "invalid_request":
		return common.ErrInvalidRequest
	default:
		return nil
	}
}

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("remote base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse remote base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote base url %q must use http or https", raw)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		base:     base,
		apiPath:  cleanPath(cfg.APIEndpoint, "/api/v1"),
		feedPath: cleanPath(cfg.FeedEndpoint, "/feed"),
		http:     httpClient,
		dialer:   &websocket.Dialer{HandshakeTimeout: defaultTimeout},
		logger:   logger,
	}, nil
}

// ListInitiatives lists initiatives on the server.
func (c *Client) ListInitiatives(ctx context.Context) ([]domain.Initiative, error) {
	var out struct {
		Initiatives []domain.Initiative `json:"initiatives"`
	}
	if err := c.do(ctx, http.MethodGet, "initiatives", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list initiatives: %w", err)
	}
	return out.Initiatives, nil
}

// ListTasks fetches one initiative's ordered task list.
func (c *Client) ListTasks(ctx context.Context, initiativeID string) ([]domain.Task, error) {
	var out common.BulkUpdateRequest
	if err := c.do(ctx, http.MethodGet, initiativePath(initiativeID, "tasks"), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out.Tasks, nil
}

// BulkUpdateTasks sends the full ordered task list.
func (c *Client) BulkUpdateTasks(ctx context.Context, initiativeID string, tasks []domain.Task) error {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	if err := c.do(ctx, http.MethodPut, initiativePath(initiativeID, "tasks"), nil, common.BulkUpdateRequest{Tasks: tasks}, nil); err != nil {
		return fmt.Errorf("bulk update tasks: %w", err)
	}
	return nil
}

// Board fetches one initiative grouped into columns.
func (c *Client) Board(ctx context.Context, initiativeID string) (common.Board, error) {
	var out common.Board
	if err := c.do(ctx, http.MethodGet, initiativePath(initiativeID, "board"), nil, nil, &out); err != nil {
		return common.Board{}, fmt.Errorf("board: %w", err)
	}
	return out, nil
}

// ListTeamMembers fetches one initiative's members.
func (c *Client) ListTeamMembers(ctx context.Context, initiativeID string) ([]domain.TeamMember, error) {
	var out struct {
		Members []domain.TeamMember `json:"members"`
	}
	if err := c.do(ctx, http.MethodGet, initiativePath(initiativeID, "members"), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	return out.Members, nil
}

// Access fetches edit rights of userID on one initiative.
func (c *Client) Access(ctx context.Context, initiativeID, userID string) (domain.Access, error) {
	var out domain.Access
	query := url.Values{"user_id": []string{userID}}
	if err := c.do(ctx, http.MethodGet, initiativePath(initiativeID, "access"), query, nil, &out); err != nil {
		return domain.Access{}, fmt.Errorf("access: %w", err)
	}
	return out, nil
}

// Watch subscribes to the change feed of one initiative. The returned channel
// receives one signal per refresh frame, coalescing bursts, and is closed when
// ctx ends or the connection drops.
func (c *Client) Watch(ctx context.Context, initiativeID string) (<-chan struct{}, error) {
	target := c.feedURL(initiativeID)
	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial change feed: %w", err)
	}
	out := make(chan struct{}, 1)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	go func() {
		defer close(out)
		defer stop()
		defer conn.Close()
		for {
			var msg feedMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("change feed closed", "initiative_id", initiativeID, "err", err)
				}
				return
			}
			if msg.Type != "refresh" {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}

// feedMessage mirrors the change-feed frame shape.
type feedMessage struct {
	Type         string `json:"type"`
	InitiativeID string `json:"initiativeId"`
}

// do performs one JSON request against the API and decodes the reply into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.base.JoinPath(c.apiPath, path)
	if query != nil {
		target.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError turns an error envelope into an *Error.
func decodeError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &Error{StatusCode: resp.StatusCode, Code: "http_error", Message: resp.Status}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

// feedURL builds the websocket url for one initiative.
func (c *Client) feedURL(initiativeID string) string {
	target := c.base.JoinPath(c.feedPath)
	if target.Scheme == "https" {
		target.Scheme = "wss"
	} else {
		target.Scheme = "ws"
	}
	target.RawQuery = url.Values{"initiative_id": []string{initiativeID}}.Encode()
	return target.String()
}

// initiativePath builds `initiatives/{id}/{rest}` with the id escaped.
func initiativePath(initiativeID, rest string) string {
	return "initiatives/" + url.PathEscape(initiativeID) + "/" + rest
}

// cleanPath normalizes one endpoint path with a fallback.
func cleanPath(path, fallback string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return fallback
	}
	return "/" + path
}
