package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evanschultz/initboard/internal/adapters/server/common"
	"github.com/evanschultz/initboard/internal/adapters/server/changefeed"
	"github.com/evanschultz/initboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/initboard/internal/app"
	"github.com/evanschultz/initboard/internal/domain"
	"github.com/google/uuid"
)

// failingBoards reports a broken store for readiness probes.
type failingBoards struct {
	common.BoardService
}

func (failingBoards) ListInitiatives(context.Context) ([]domain.Initiative, error) {
	return nil, errors.New("database is locked")
}

func newBoards(t *testing.T) (common.BoardService, string) {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{})
	initiative, err := svc.EnsureDefaultInitiative(context.Background(), "u1")
	if err != nil {
		t.Fatalf("EnsureDefaultInitiative() error = %v", err)
	}
	return common.NewAppServiceAdapter(svc), initiative.ID
}

func TestNormalizeConfigDefaults(t *testing.T) {
	cfg, err := normalizeConfig(Config{})
	if err != nil {
		t.Fatalf("normalizeConfig() error = %v", err)
	}
	if cfg.HTTPBind != defaultBindAddress {
		t.Fatalf("HTTPBind = %q, want %q", cfg.HTTPBind, defaultBindAddress)
	}
	if cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" || cfg.FeedEndpoint != "/feed" {
		t.Fatalf("unexpected endpoints %#v", cfg)
	}
	if cfg.ServerName != "initboard" || cfg.ServerVersion != "dev" {
		t.Fatalf("unexpected server identity %#v", cfg)
	}
}

func TestNormalizeConfigRejectsCollisions(t *testing.T) {
	if _, err := normalizeConfig(Config{APIEndpoint: "/x", MCPEndpoint: "x/"}); err == nil {
		t.Fatal("normalizeConfig() error = nil, want api/mcp collision")
	}
	if _, err := normalizeConfig(Config{FeedEndpoint: "/mcp"}); err == nil {
		t.Fatal("normalizeConfig() error = nil, want feed collision")
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"":          "/fallback",
		"/":         "/fallback",
		"api":       "/api",
		" /api/v2/": "/api/v2",
	}
	for in, want := range cases {
		if got := normalizeEndpoint(in, "/fallback"); got != want {
			t.Fatalf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewHandlerRequiresBoards(t *testing.T) {
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("NewHandler() error = nil, want missing dependency error")
	}
}

func TestNewHandlerRoutesHealthAndAPI(t *testing.T) {
	boards, initiativeID := newBoards(t)
	handler, _, err := NewHandler(Config{}, Dependencies{Boards: boards, Feed: changefeed.NewHub()})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/initiatives/"+initiativeID+"/tasks", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("tasks status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("feed without initiative_id status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	boards, _ := newBoards(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, Config{HTTPBind: "127.0.0.1:0"}, Dependencies{Boards: boards}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestReadyzReportsStoreAndFeed(t *testing.T) {
	boards, _ := newBoards(t)
	handler, _, err := NewHandler(Config{}, Dependencies{Boards: boards, Feed: changefeed.NewHub()})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Status          string `json:"status"`
		Initiatives     int    `json:"initiatives"`
		FeedSubscribers *int   `json:"feed_subscribers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode readyz: %v", err)
	}
	if body.Status != "ready" || body.Initiatives != 1 {
		t.Fatalf("unexpected readyz body %s", rec.Body.String())
	}
	if body.FeedSubscribers == nil || *body.FeedSubscribers != 0 {
		t.Fatalf("expected feed_subscribers = 0, got %s", rec.Body.String())
	}
}

func TestReadyzUnavailableWhenStoreFails(t *testing.T) {
	handler, _, err := NewHandler(Config{}, Dependencies{Boards: failingBoards{}})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "database is locked") {
		t.Fatalf("readyz = %d %q", rec.Code, rec.Body.String())
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRunFailsOnBusyAddress(t *testing.T) {
	boards, _ := newBoards(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	addr := strings.TrimPrefix(srv.URL, "http://")
	if err := Run(context.Background(), Config{HTTPBind: addr}, Dependencies{Boards: boards}); err == nil {
		t.Fatal("Run() error = nil, want listen failure")
	}
}
