package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/activeobjects-uk/nanoclaw/internal/adapters/linear"
	"github.com/activeobjects-uk/nanoclaw/internal/channel"
)

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()

	want := []string{"run", "mcp", "ids", "register", "state", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered (err=%v)", name, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing --config flag")
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := out.String(); got != "nanoclaw v"+version+"\n" {
		t.Errorf("version output = %q", got)
	}
}

func TestGroupFromArgs(t *testing.T) {
	tests := []struct {
		name            string
		args            []string
		noTrigger       bool
		wantTrigger     string
		wantRequiresTrg bool
	}{
		{
			name:            "no trigger",
			args:            []string{"linear:__channel__", "Linear Issues", "linear"},
			wantRequiresTrg: true,
		},
		{
			name:            "with trigger",
			args:            []string{"linear:__channel__", "Linear Issues", "linear", "@Andy"},
			wantTrigger:     "@Andy",
			wantRequiresTrg: true,
		},
		{
			name:        "trigger not required",
			args:        []string{"linear:__channel__", "Linear Issues", "linear", "@Andy"},
			noTrigger:   true,
			wantTrigger: "@Andy",
		},
		{
			name:            "flag-like trigger ignored",
			args:            []string{"linear:__channel__", "Linear Issues", "linear", "--verbose"},
			wantRequiresTrg: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := groupFromArgs(tt.args, tt.noTrigger)
			if g.JID != tt.args[0] || g.Name != tt.args[1] || g.Folder != tt.args[2] {
				t.Errorf("group = %+v, want jid/name/folder from %v", g, tt.args)
			}
			if g.Trigger != tt.wantTrigger {
				t.Errorf("Trigger = %q, want %q", g.Trigger, tt.wantTrigger)
			}
			if g.RequiresTrigger != tt.wantRequiresTrg {
				t.Errorf("RequiresTrigger = %v, want %v", g.RequiresTrigger, tt.wantRequiresTrg)
			}
		})
	}
}

func TestRegisterCommandArgs(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"register", "only-one"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error for missing arguments")
	}
}

func TestPrintState(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var out bytes.Buffer
		if err := printState(&out, ""); err != nil {
			t.Fatalf("printState() error = %v", err)
		}
		if !strings.Contains(out.String(), "No processed issues") {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("sorted record", func(t *testing.T) {
		ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		raw, err := channel.ProcessedIssues{"issue-b": ts, "issue-a": ts}.Encode()
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}

		var out bytes.Buffer
		if err := printState(&out, raw); err != nil {
			t.Fatalf("printState() error = %v", err)
		}
		got := out.String()
		if !strings.Contains(got, "(2)") {
			t.Errorf("missing count in %q", got)
		}
		a, b := strings.Index(got, "issue-a"), strings.Index(got, "issue-b")
		if a < 0 || b < 0 || a > b {
			t.Errorf("issues not listed in order: %q", got)
		}
		if !strings.Contains(got, channel.FormatTimestamp(ts)) {
			t.Errorf("missing timestamp in %q", got)
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		if err := printState(&bytes.Buffer{}, "{not json"); err == nil {
			t.Error("expected decode error")
		}
	})
}

type fakeUsers struct {
	viewer *linear.User
	users  []linear.User
	err    error
}

func (f *fakeUsers) Viewer(ctx context.Context) (*linear.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.viewer, nil
}

func (f *fakeUsers) Users(ctx context.Context) ([]linear.User, error) {
	return f.users, nil
}

func TestPrintIDs(t *testing.T) {
	api := &fakeUsers{
		viewer: &linear.User{ID: "user-bot", Name: "Andy Bot", DisplayName: "andy"},
		users: []linear.User{
			{ID: "user-1", Name: "Alice Example"},
			{ID: "user-2", Name: "Bob Example", DisplayName: "bob"},
		},
	}

	var out bytes.Buffer
	if err := printIDs(context.Background(), &out, api); err != nil {
		t.Fatalf("printIDs() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"LINEAR_USER_ID=user-bot", "andy", "Alice Example", "user-1", "bob", "user-2"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPrintIDs_Error(t *testing.T) {
	api := &fakeUsers{err: errors.New("unauthorized")}
	err := printIDs(context.Background(), &bytes.Buffer{}, api)
	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("printIDs() error = %v, want wrapped unauthorized", err)
	}
}
