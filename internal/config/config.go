// Package config loads the connboard TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/hylla/connboard/internal/app"
)

type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
	Board     BoardConfig     `toml:"board"`
	Templates TemplatesConfig `toml:"templates"`
	Server    ServerConfig    `toml:"server"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the logfmt sink written while running in dev mode.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type BoardConfig struct {
	MaxCardsPerColumn int    `toml:"max_cards_per_column"`
	ActivityPageSize  int    `toml:"activity_page_size"`
	GridPageSize      int    `toml:"grid_page_size"`
	DefaultSort       string `toml:"default_sort"`
	DefaultViewMode   string `toml:"default_view_mode"`
}

// TemplatesConfig holds html/template sources for the status pills. Blank means built-in.
type TemplatesConfig struct {
	StatusIcons  string `toml:"status_icons"`
	StatusLegend string `toml:"status_legend"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
	SessionTTL  string `toml:"session_ttl"`
}

func Default(dbPath string) Config {
	board := app.DefaultBoardConfig()
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".connboard/log",
			},
		},
		Board: BoardConfig{
			MaxCardsPerColumn: board.MaxCardsPerColumn,
			ActivityPageSize:  board.ActivityPageSize,
			GridPageSize:      board.GridPageSize,
			DefaultSort:       string(board.DefaultSort),
			DefaultViewMode:   string(board.DefaultViewMode),
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
			SessionTTL:  "2h",
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
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if _, err := charmLog.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if c.Board.MaxCardsPerColumn < 0 {
		return errors.New("board.max_cards_per_column must be >= 0")
	}
	if c.Board.ActivityPageSize <= 0 {
		return errors.New("board.activity_page_size must be > 0")
	}
	if c.Board.GridPageSize < 0 {
		return errors.New("board.grid_page_size must be >= 0")
	}
	if _, err := app.ParseSortProperty(c.Board.DefaultSort); err != nil {
		return fmt.Errorf("invalid board.default_sort: %q", c.Board.DefaultSort)
	}
	if _, err := app.ParseViewMode(c.Board.DefaultViewMode); err != nil {
		return fmt.Errorf("invalid board.default_view_mode: %q", c.Board.DefaultViewMode)
	}

	api := strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/")
	mcp := strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/")
	if api != "" && api == mcp {
		return fmt.Errorf("server.api_endpoint and server.mcp_endpoint must differ: %q", c.Server.APIEndpoint)
	}
	if _, err := c.Server.TTL(); err != nil {
		return err
	}

	return nil
}

// TTL parses session_ttl. Blank means zero, which the server replaces with its default.
func (s ServerConfig) TTL() (time.Duration, error) {
	raw := strings.TrimSpace(s.SessionTTL)
	if raw == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl < 0 {
		return 0, fmt.Errorf("invalid server.session_ttl: %q", s.SessionTTL)
	}
	return ttl, nil
}

// ToBoardConfig maps the [board] table into controller limits.
func (c Config) ToBoardConfig() app.BoardConfig {
	return app.BoardConfig{
		MaxCardsPerColumn: c.Board.MaxCardsPerColumn,
		ActivityPageSize:  c.Board.ActivityPageSize,
		GridPageSize:      c.Board.GridPageSize,
		DefaultSort:       app.SortProperty(strings.TrimSpace(c.Board.DefaultSort)),
		DefaultViewMode:   app.ViewMode(strings.TrimSpace(c.Board.DefaultViewMode)),
	}
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
