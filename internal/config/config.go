// Package config loads nanoclaw configuration from YAML, .env files and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/activeobjects-uk/nanoclaw/internal/gateway"
	"github.com/activeobjects-uk/nanoclaw/internal/logging"
)

// Store drivers
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, cgo
)

// DefaultWorkspaceDir is where relative upload paths resolve.
const DefaultWorkspaceDir = "/workspace/group"

// Config represents the main configuration
type Config struct {
	AssistantName string          `yaml:"assistant_name"`
	Linear        *LinearConfig   `yaml:"linear"`
	Store         *StoreConfig    `yaml:"store"`
	Gateway       *gateway.Config `yaml:"gateway"`
	Logging       *logging.Config `yaml:"logging"`
}

// LinearConfig holds the watched account and polling settings
type LinearConfig struct {
	APIKey       string        `yaml:"api_key"`
	UserID       string        `yaml:"user_id"`
	PollInterval time.Duration `yaml:"poll_interval"`
	AllowedUsers []string      `yaml:"allowed_users"`
	WorkspaceDir string        `yaml:"workspace_dir"`
}

// StoreConfig holds SQLite settings
type StoreConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver"`
}

// DBPath returns the database file inside the store directory.
// ":memory:" is passed through unchanged.
func (s *StoreConfig) DBPath() string {
	if s.Path == ":memory:" {
		return s.Path
	}
	return filepath.Join(s.Path, "nanoclaw.db")
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		AssistantName: "Andy",
		Linear: &LinearConfig{
			PollInterval: 30 * time.Second,
			AllowedUsers: []string{},
			WorkspaceDir: DefaultWorkspaceDir,
		},
		Store: &StoreConfig{
			Path:   filepath.Join(homeDir, ".nanoclaw", "data"),
			Driver: DriverModernc,
		},
		Gateway: &gateway.Config{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9191,
			MCP:     true,
			Auth: &gateway.AuthConfig{
				Type: gateway.AuthTypeLocal,
			},
		},
		Logging: logging.DefaultConfig(),
	}
}

// LoadDotEnv loads KEY=VALUE files into the environment. Variables that are
// already set win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from a file, then applies environment overrides
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Expand environment variables
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config.fillDefaults()
	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	config.Store.Path = expandPath(config.Store.Path)
	if config.Logging.Output != "stdout" && config.Logging.Output != "stderr" {
		config.Logging.Output = expandPath(config.Logging.Output)
	}

	return config, nil
}

// fillDefaults restores sections a partial YAML file left nil
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Linear == nil {
		c.Linear = def.Linear
	}
	if c.Store == nil {
		c.Store = def.Store
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverModernc
	}
	if c.Gateway == nil {
		c.Gateway = def.Gateway
	}
	if c.Gateway.Auth == nil {
		c.Gateway.Auth = def.Gateway.Auth
	}
	if c.Logging == nil {
		c.Logging = def.Logging
	}
	if c.Linear.WorkspaceDir == "" {
		c.Linear.WorkspaceDir = DefaultWorkspaceDir
	}
	if c.AssistantName == "" {
		c.AssistantName = def.AssistantName
	}
}

// applyEnv overlays LINEAR_* and ASSISTANT_NAME variables
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("LINEAR_API_KEY"); ok && v != "" {
		c.Linear.APIKey = v
	}
	if v, ok := lookup("LINEAR_USER_ID"); ok && v != "" {
		c.Linear.UserID = v
	}
	if v, ok := lookup("LINEAR_POLL_INTERVAL"); ok && v != "" {
		ms, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid LINEAR_POLL_INTERVAL %q: %w", v, err)
		}
		c.Linear.PollInterval = time.Duration(ms) * time.Millisecond
	}
	if v, ok := lookup("LINEAR_ALLOWED_USERS"); ok {
		c.Linear.AllowedUsers = splitList(v)
	}
	if v, ok := lookup("ASSISTANT_NAME"); ok && v != "" {
		c.AssistantName = v
	}
	return nil
}

// splitList parses a comma-separated list, dropping blanks
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".nanoclaw", "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Linear == nil || c.Store == nil || c.Gateway == nil {
		return fmt.Errorf("linear, store and gateway sections are required")
	}
	if c.Linear.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval: %v", c.Linear.PollInterval)
	}
	if c.Store.Driver != DriverModernc && c.Store.Driver != DriverMattn {
		return fmt.Errorf("unknown store driver %q (want %q or %q)", c.Store.Driver, DriverModernc, DriverMattn)
	}
	if c.Gateway.Enabled {
		if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
			return fmt.Errorf("invalid gateway port: %d", c.Gateway.Port)
		}
		if auth := c.Gateway.Auth; auth != nil && auth.Token == "" {
			switch auth.Type {
			case gateway.AuthTypeAPIToken:
				return fmt.Errorf("API token is required when auth type is api-token")
			case gateway.AuthTypeJWT:
				return fmt.Errorf("signing secret is required when auth type is jwt")
			}
		}
	}
	return nil
}

// RequireCredentials checks the Linear API key and, when watching is
// needed, the watched user id.
func (c *Config) RequireCredentials(needUserID bool) error {
	if c.Linear.APIKey == "" {
		return fmt.Errorf("linear api key is required (linear.api_key or LINEAR_API_KEY)")
	}
	if needUserID && c.Linear.UserID == "" {
		return fmt.Errorf("linear user id is required (linear.user_id or LINEAR_USER_ID); run `nanoclaw ids` to find it")
	}
	return nil
}
