package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q", cfg.Server.Host)
	}
	if cfg.Relay.InitTimeout != 10*time.Second {
		t.Errorf("InitTimeout = %v, want 10s", cfg.Relay.InitTimeout)
	}
	if cfg.Relay.DemoMinPause != 2*time.Second || cfg.Relay.DemoMaxPause != 3500*time.Millisecond {
		t.Errorf("demo pauses = %v/%v", cfg.Relay.DemoMinPause, cfg.Relay.DemoMaxPause)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
  allowed_origins:
    - https://callpilot.example.com
relay:
  init_timeout: 5s
  demo_min_pause: 100ms
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host default lost: %q", cfg.Server.Host)
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Relay.InitTimeout != 5*time.Second {
		t.Errorf("InitTimeout = %v, want 5s", cfg.Relay.InitTimeout)
	}
	if cfg.Relay.DemoMinPause != 100*time.Millisecond {
		t.Errorf("DemoMinPause = %v, want 100ms", cfg.Relay.DemoMinPause)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted invalid YAML")
	}
}

func TestCredentialsFromEnvironment(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "el-key")
	t.Setenv("ELEVENLABS_AGENT_ID", "agent-1")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_PLACES_API_KEY", "places-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	creds := cfg.Credentials
	if creds.ElevenLabsAPIKey != "el-key" || creds.ElevenLabsAgentID != "agent-1" {
		t.Errorf("elevenlabs creds = %+v", creds)
	}
	if creds.GooglePlacesKey != "places-key" {
		t.Errorf("places key = %q", creds.GooglePlacesKey)
	}
	if creds.DemoMode() {
		t.Error("DemoMode true with both elevenlabs credentials set")
	}
}

func TestDemoMode(t *testing.T) {
	tests := []struct {
		key, agent string
		want       bool
	}{
		{"", "", true},
		{"key", "", true},
		{"", "agent", true},
		{"key", "agent", false},
	}

	for _, tt := range tests {
		c := Credentials{ElevenLabsAPIKey: tt.key, ElevenLabsAgentID: tt.agent}
		if got := c.DemoMode(); got != tt.want {
			t.Errorf("DemoMode(%q, %q) = %v, want %v", tt.key, tt.agent, got, tt.want)
		}
	}
}
