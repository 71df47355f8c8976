package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shineum/contact-relay/internal/config"
	"github.com/shineum/contact-relay/internal/contact"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
mail:
  username: "relay@example.com"
  password: "app-password"
  to: "owner@example.com"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	return cfg
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q): got %v, want %v", in, got, want)
		}
	}
}

func TestSelectProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*config.Config)
		wantName string
		wantErr  bool
	}{
		{name: "smtp", mutate: func(*config.Config) {}, wantName: "smtp"},
		{name: "stdout", mutate: func(c *config.Config) { c.Provider = config.ProviderStdout }, wantName: "stdout"},
		{
			name: "ses with static keys",
			mutate: func(c *config.Config) {
				c.Provider = config.ProviderSES
				c.SES = config.SESConfig{Region: "us-east-1", AccessKeyID: "AKIA", SecretAccessKey: "secret"}
			},
			wantName: "ses",
		},
		{
			name: "graph",
			mutate: func(c *config.Config) {
				c.Provider = config.ProviderGraph
				c.Graph = config.GraphConfig{TenantID: "t", ClientID: "c", ClientSecret: "s", Sender: "portfolio@example.com"}
			},
			wantName: "msgraph",
		},
		{name: "unknown", mutate: func(c *config.Config) { c.Provider = "fax" }, wantErr: true},
		{name: "smtp with missing CA file", mutate: func(c *config.Config) { c.Mail.CAFile = "/nonexistent/ca.pem" }, wantErr: true},
		{name: "smtp without credentials", mutate: func(c *config.Config) { c.Mail.Password = "" }, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig(t)
			tt.mutate(cfg)

			p, err := selectProvider(context.Background(), cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name: got %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestBuildRelay_RejectsBeforeSending(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.Provider = config.ProviderStdout

	relay, transport, err := buildRelay(context.Background(), cfg)
	if err != nil {
		t.Fatalf("buildRelay: %v", err)
	}
	if transport.Name() != "stdout" {
		t.Errorf("transport: got %q", transport.Name())
	}

	err = relay.Send(context.Background(), contact.Submission{Name: "Ada"})
	if _, ok := err.(*contact.ValidationError); !ok {
		t.Errorf("expected *contact.ValidationError, got %T", err)
	}
}

func TestServe_RefusesIncompleteConfig(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.Mail.Password = ""

	err := serve(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "EMAIL_PASSWORD") {
		t.Errorf("serve: got %v, want configuration error", err)
	}
}

func TestNewSink(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	if _, err := newSink(cfg); err != nil {
		t.Fatalf("newSink: %v", err)
	}

	cfg.Sink.Username = "only-user"
	if _, err := newSink(cfg); err == nil {
		t.Error("expected error for half-configured sink auth")
	}
}

func TestRootCommand(t *testing.T) {
	t.Parallel()

	root := newRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "sink"} {
		if !names[want] {
			t.Errorf("missing subcommand %q", want)
		}
	}
	for _, flag := range []string{"config", "env-file"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}
