package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Identity IdentityConfig `toml:"identity"`
	Board    BoardConfig    `toml:"board"`
	Server   ServerConfig   `toml:"server"`
	Cache    CacheConfig    `toml:"cache"`
	Remote   RemoteConfig   `toml:"remote"`
	Keys     KeyConfig      `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the logfmt file sink used in dev mode.
type DevFileConfig struct {
	Enabled bool `toml:"enabled"`
	// Dir is resolved against the nearest workspace root when relative.
	// Blank selects the per-user log dir.
	Dir string `toml:"dir"`
}

// IdentityConfig names the local user; drag access is resolved for UserID.
type IdentityConfig struct {
	UserID      string `toml:"user_id"`
	DisplayName string `toml:"display_name"`
}

type BoardConfig struct {
	// InitiativeID selects the board; empty means the first initiative.
	InitiativeID    string        `toml:"initiative_id"`
	ShowDescription bool          `toml:"show_description"`
	Columns         ColumnsConfig `toml:"columns"`
}

// ColumnsConfig overrides column header labels.
type ColumnsConfig struct {
	Todo     string `toml:"todo"`
	Progress string `toml:"progress"`
	Done     string `toml:"done"`
}

type ServerConfig struct {
	HTTPBind     string `toml:"http_bind"`
	APIEndpoint  string `toml:"api_endpoint"`
	MCPEndpoint  string `toml:"mcp_endpoint"`
	FeedEndpoint string `toml:"feed_endpoint"`
}

// CacheConfig enables the redis task-list cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string `toml:"redis_addr"`
	TTL       string `toml:"ttl"`
}

// RemoteConfig points the board at a server of record instead of the local database.
type RemoteConfig struct {
	BaseURL string `toml:"base_url"`
}

type KeyConfig struct {
	Reload        string `toml:"reload"`
	CopyID        string `toml:"copy_id"`
	ToggleDetails string `toml:"toggle_details"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".initboard/log",
			},
		},
		Identity: IdentityConfig{
			UserID:      "local",
			DisplayName: "Local User",
		},
		Board: BoardConfig{
			ShowDescription: true,
			Columns: ColumnsConfig{
				Todo:     "To Do",
				Progress: "In Progress",
				Done:     "Done",
			},
		},
		Server: ServerConfig{
			HTTPBind:     "127.0.0.1:8080",
			APIEndpoint:  "/api/v1",
			MCPEndpoint:  "/mcp",
			FeedEndpoint: "/feed",
		},
		Cache: CacheConfig{
			TTL: "30s",
		},
		Keys: KeyConfig{
			Reload:        "r",
			CopyID:        "y",
			ToggleDetails: "d",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" && strings.TrimSpace(c.Remote.BaseURL) == "" {
		return errors.New("database path is required")
	}

	if _, err := log.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if strings.TrimSpace(c.Identity.UserID) == "" {
		return errors.New("identity.user_id is required")
	}

	endpoints := map[string]string{}
	for name, value := range map[string]string{
		"server.api_endpoint":  c.Server.APIEndpoint,
		"server.mcp_endpoint":  c.Server.MCPEndpoint,
		"server.feed_endpoint": c.Server.FeedEndpoint,
	} {
		path := "/" + strings.Trim(strings.TrimSpace(value), "/")
		if path == "/" {
			continue
		}
		if other, ok := endpoints[path]; ok {
			return fmt.Errorf("%s collides with %s: %q", name, other, path)
		}
		endpoints[path] = name
	}

	if _, err := c.Cache.TTLDuration(); err != nil {
		return err
	}

	if raw := strings.TrimSpace(c.Remote.BaseURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid remote.base_url: %q", c.Remote.BaseURL)
		}
	}

	return nil
}

// TTLDuration parses the cache ttl; empty means no expiry.
func (c CacheConfig) TTLDuration() (time.Duration, error) {
	raw := strings.TrimSpace(c.TTL)
	if raw == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl < 0 {
		return 0, fmt.Errorf("invalid cache.ttl: %q", c.TTL)
	}
	return ttl, nil
}

// ColumnLabel returns the configured header label for a column id, or "".
func (c BoardConfig) ColumnLabel(status string) string {
	switch status {
	case "todo":
		return strings.TrimSpace(c.Columns.Todo)
	case "progress":
		return strings.TrimSpace(c.Columns.Progress)
	case "done":
		return strings.TrimSpace(c.Columns.Done)
	default:
		return ""
	}
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
