package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/activeobjects-uk/nanoclaw/internal/gateway"
	"github.com/activeobjects-uk/nanoclaw/internal/testutil"
)

// clearEnv unsets the override variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LINEAR_API_KEY", "LINEAR_USER_ID", "LINEAR_POLL_INTERVAL", "LINEAR_ALLOWED_USERS", "ASSISTANT_NAME"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	t.Run("AssistantName", func(t *testing.T) {
		if config.AssistantName != "Andy" {
			t.Errorf("AssistantName = %q, want %q", config.AssistantName, "Andy")
		}
	})

	t.Run("Linear", func(t *testing.T) {
		if config.Linear.PollInterval != 30*time.Second {
			t.Errorf("PollInterval = %v, want 30s", config.Linear.PollInterval)
		}
		if config.Linear.WorkspaceDir != DefaultWorkspaceDir {
			t.Errorf("WorkspaceDir = %q, want %q", config.Linear.WorkspaceDir, DefaultWorkspaceDir)
		}
		if len(config.Linear.AllowedUsers) != 0 {
			t.Errorf("AllowedUsers = %v, want empty", config.Linear.AllowedUsers)
		}
	})

	t.Run("Store", func(t *testing.T) {
		homeDir, _ := os.UserHomeDir()
		if config.Store.Path != filepath.Join(homeDir, ".nanoclaw", "data") {
			t.Errorf("Store.Path = %q", config.Store.Path)
		}
		if config.Store.Driver != DriverModernc {
			t.Errorf("Store.Driver = %q, want %q", config.Store.Driver, DriverModernc)
		}
	})

	t.Run("Gateway", func(t *testing.T) {
		if config.Gateway.Enabled {
			t.Error("Gateway should be disabled by default")
		}
		if config.Gateway.Port != 9191 {
			t.Errorf("Gateway.Port = %d, want 9191", config.Gateway.Port)
		}
		if config.Gateway.Auth.Type != gateway.AuthTypeLocal {
			t.Errorf("Auth.Type = %q, want %q", config.Gateway.Auth.Type, gateway.AuthTypeLocal)
		}
	})

	t.Run("Logging", func(t *testing.T) {
		if config.Logging == nil || config.Logging.Level != "info" {
			t.Errorf("Logging = %+v", config.Logging)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		clearEnv(t)
		config, err := Load("/nonexistent/path/config.yaml")
		if err != nil {
			t.Fatalf("Load should return defaults for missing file, got error: %v", err)
		}
		if config.Linear.PollInterval != 30*time.Second {
			t.Errorf("PollInterval = %v, want default", config.Linear.PollInterval)
		}
	})

	t.Run("ValidYAML", func(t *testing.T) {
		clearEnv(t)
		path := writeConfig(t, `
assistant_name: Bea
linear:
  api_key: key-from-file
  user_id: bot-1
  poll_interval: 45s
  allowed_users: [u1, u2]
store:
  path: /tmp/nanoclaw
  driver: sqlite3
gateway:
  enabled: true
  port: 8080
  auth:
    type: api-token
    token: secret
`)
		config, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if config.AssistantName != "Bea" {
			t.Errorf("AssistantName = %q, want Bea", config.AssistantName)
		}
		if config.Linear.APIKey != "key-from-file" || config.Linear.UserID != "bot-1" {
			t.Errorf("Linear = %+v", config.Linear)
		}
		if config.Linear.PollInterval != 45*time.Second {
			t.Errorf("PollInterval = %v, want 45s", config.Linear.PollInterval)
		}
		if !reflect.DeepEqual(config.Linear.AllowedUsers, []string{"u1", "u2"}) {
			t.Errorf("AllowedUsers = %v", config.Linear.AllowedUsers)
		}
		if config.Linear.WorkspaceDir != DefaultWorkspaceDir {
			t.Errorf("WorkspaceDir = %q, want default kept", config.Linear.WorkspaceDir)
		}
		if config.Store.Driver != DriverMattn {
			t.Errorf("Store.Driver = %q, want sqlite3", config.Store.Driver)
		}
		if config.Gateway.Port != 8080 || config.Gateway.Host != "127.0.0.1" {
			t.Errorf("Gateway = %+v", config.Gateway)
		}
		if !config.Gateway.MCP {
			t.Error("Gateway.MCP default should survive a partial gateway section")
		}
		if config.Gateway.Auth.Token != "secret" {
			t.Errorf("Auth.Token = %q, want secret", config.Gateway.Auth.Token)
		}
	})

	t.Run("EnvExpansion", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("NANOCLAW_TEST_KEY", testutil.FakeLinearAPIKey)
		path := writeConfig(t, "linear:\n  api_key: ${NANOCLAW_TEST_KEY}\n")

		config, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if config.Linear.APIKey != testutil.FakeLinearAPIKey {
			t.Errorf("APIKey = %q, want %q", config.Linear.APIKey, testutil.FakeLinearAPIKey)
		}
	})

	t.Run("InvalidYAML", func(t *testing.T) {
		clearEnv(t)
		path := writeConfig(t, "linear: [unterminated\n")
		if _, err := Load(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("TildePath", func(t *testing.T) {
		clearEnv(t)
		path := writeConfig(t, "store:\n  path: ~/custom\n")
		config, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		homeDir, _ := os.UserHomeDir()
		if config.Store.Path != filepath.Join(homeDir, "custom") {
			t.Errorf("Store.Path = %q", config.Store.Path)
		}
		if config.Store.Driver != DriverModernc {
			t.Errorf("Store.Driver = %q, want default", config.Store.Driver)
		}
	})
}

func TestEnvOverrides(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, c *Config)
	}{
		{
			name: "credentials",
			env: map[string]string{
				"LINEAR_API_KEY": testutil.FakeLinearAPIKey,
				"LINEAR_USER_ID": testutil.FakeLinearUserID,
			},
			check: func(t *testing.T, c *Config) {
				if c.Linear.APIKey != testutil.FakeLinearAPIKey || c.Linear.UserID != testutil.FakeLinearUserID {
					t.Errorf("Linear = %+v", c.Linear)
				}
			},
		},
		{
			name: "poll interval in milliseconds",
			env:  map[string]string{"LINEAR_POLL_INTERVAL": "1500"},
			check: func(t *testing.T, c *Config) {
				if c.Linear.PollInterval != 1500*time.Millisecond {
					t.Errorf("PollInterval = %v, want 1.5s", c.Linear.PollInterval)
				}
			},
		},
		{
			name: "allowed users list",
			env:  map[string]string{"LINEAR_ALLOWED_USERS": " u1, ,u2 ,"},
			check: func(t *testing.T, c *Config) {
				if !reflect.DeepEqual(c.Linear.AllowedUsers, []string{"u1", "u2"}) {
					t.Errorf("AllowedUsers = %v, want [u1 u2]", c.Linear.AllowedUsers)
				}
			},
		},
		{
			name: "assistant name",
			env:  map[string]string{"ASSISTANT_NAME": "Cleo"},
			check: func(t *testing.T, c *Config) {
				if c.AssistantName != "Cleo" {
					t.Errorf("AssistantName = %q, want Cleo", c.AssistantName)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			lookup := func(k string) (string, bool) {
				v, ok := tt.env[k]
				return v, ok
			}
			if err := c.applyEnv(lookup); err != nil {
				t.Fatalf("applyEnv failed: %v", err)
			}
			tt.check(t, c)
		})
	}
}

func TestEnvOverrides_InvalidInterval(t *testing.T) {
	c := DefaultConfig()
	err := c.applyEnv(func(k string) (string, bool) {
		if k == "LINEAR_POLL_INTERVAL" {
			return "soon", true
		}
		return "", false
	})
	if err == nil || !strings.Contains(err.Error(), "LINEAR_POLL_INTERVAL") {
		t.Errorf("error = %v, want LINEAR_POLL_INTERVAL error", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("LINEAR_USER_ID=from-dotenv\nASSISTANT_NAME=Dot\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ASSISTANT_NAME", "FromShell")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("LINEAR_USER_ID") })

	if got := os.Getenv("LINEAR_USER_ID"); got != "from-dotenv" {
		t.Errorf("LINEAR_USER_ID = %q, want from-dotenv", got)
	}
	if got := os.Getenv("ASSISTANT_NAME"); got != "FromShell" {
		t.Errorf("ASSISTANT_NAME = %q, existing variables must win", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Linear.PollInterval = 0 },
			wantErr: "invalid poll interval",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "unknown store driver",
		},
		{
			name: "bad port when enabled",
			mutate: func(c *Config) {
				c.Gateway.Enabled = true
				c.Gateway.Port = 70000
			},
			wantErr: "invalid gateway port",
		},
		{
			name:   "bad port ignored when disabled",
			mutate: func(c *Config) { c.Gateway.Port = 0 },
		},
		{
			name: "api-token without token",
			mutate: func(c *Config) {
				c.Gateway.Enabled = true
				c.Gateway.Auth = &gateway.AuthConfig{Type: gateway.AuthTypeAPIToken}
			},
			wantErr: "API token is required",
		},
		{
			name: "jwt without secret",
			mutate: func(c *Config) {
				c.Gateway.Enabled = true
				c.Gateway.Auth = &gateway.AuthConfig{Type: gateway.AuthTypeJWT}
			},
			wantErr: "signing secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRequireCredentials(t *testing.T) {
	c := DefaultConfig()
	if err := c.RequireCredentials(false); err == nil {
		t.Error("expected error without api key")
	}

	c.Linear.APIKey = testutil.FakeLinearAPIKey
	if err := c.RequireCredentials(false); err != nil {
		t.Errorf("RequireCredentials(false) = %v, want nil", err)
	}
	if err := c.RequireCredentials(true); err == nil {
		t.Error("expected error without user id")
	}

	c.Linear.UserID = testutil.FakeLinearUserID
	if err := c.RequireCredentials(true); err != nil {
		t.Errorf("RequireCredentials(true) = %v, want nil", err)
	}
}

func TestStoreDBPath(t *testing.T) {
	s := &StoreConfig{Path: "/data"}
	if got := s.DBPath(); got != filepath.Join("/data", "nanoclaw.db") {
		t.Errorf("DBPath() = %q", got)
	}
	s.Path = ":memory:"
	if got := s.DBPath(); got != ":memory:" {
		t.Errorf("DBPath() = %q, want :memory:", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c := DefaultConfig()
	c.Linear.UserID = "bot-9"
	c.Linear.PollInterval = 10 * time.Second

	if err := Save(c, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Linear.UserID != "bot-9" || loaded.Linear.PollInterval != 10*time.Second {
		t.Errorf("Linear = %+v", loaded.Linear)
	}
}
