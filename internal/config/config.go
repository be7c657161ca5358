package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Relay  RelayConfig  `yaml:"relay"`

	// Credentials come from the environment only, never from the
	// config file.
	Credentials Credentials `yaml:"-"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type RelayConfig struct {
	// InitTimeout bounds the wait for the browser's init message.
	InitTimeout time.Duration `yaml:"init_timeout"`
	// AgentURL overrides the upstream conversation endpoint.
	AgentURL string `yaml:"agent_url"`
	// Demo cadence: pause before each scripted line.
	DemoMinPause time.Duration `yaml:"demo_min_pause"`
	DemoMaxPause time.Duration `yaml:"demo_max_pause"`
}

type Credentials struct {
	ElevenLabsAPIKey  string
	ElevenLabsAgentID string
	OpenAIAPIKey      string
	GooglePlacesKey   string
}

// DemoMode reports whether calls run against the scripted fallback
// instead of the live voice agent.
func (c Credentials) DemoMode() bool {
	return c.ElevenLabsAPIKey == "" || c.ElevenLabsAgentID == ""
}

// Load reads the config file at path over built-in defaults, then
// overlays credentials from the environment. A missing file is not an
// error: the server runs fine on defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Relay: RelayConfig{
			InitTimeout:  10 * time.Second,
			DemoMinPause: 2 * time.Second,
			DemoMaxPause: 3500 * time.Millisecond,
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.Credentials = Credentials{
		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsAgentID: os.Getenv("ELEVENLABS_AGENT_ID"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		GooglePlacesKey:   os.Getenv("GOOGLE_PLACES_API_KEY"),
	}

	return cfg, nil
}
