package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/callpilot/backend/internal/call"
	"github.com/callpilot/backend/internal/config"
	"github.com/callpilot/backend/internal/demo"
	"github.com/callpilot/backend/internal/eleven"
	"github.com/callpilot/backend/internal/frontend"
	"github.com/callpilot/backend/internal/places"
	"github.com/callpilot/backend/internal/relay"
	"github.com/callpilot/backend/internal/ws"
)

func main() {
	demoMode := flag.Bool("demo", false, "Force the scripted demo agent even with credentials set")
	devMode := flag.Bool("dev", false, "Development mode (serve frontend from filesystem)")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	creds := cfg.Credentials
	log.Println("CallPilot backend starting")
	log.Printf("  ElevenLabs key:    %s", mark(creds.ElevenLabsAPIKey != ""))
	log.Printf("  Agent ID:          %s", mark(creds.ElevenLabsAgentID != ""))
	log.Printf("  OpenAI key:        %s", mark(creds.OpenAIAPIKey != ""))
	log.Printf("  Google Places key: %s", mark(creds.GooglePlacesKey != ""))

	state := call.NewState()

	var dial relay.AgentDialer
	if *demoMode || creds.DemoMode() {
		log.Println("Running in demo mode (scripted agent)")
		demoCfg := demo.DefaultConfig()
		if cfg.Relay.DemoMinPause > 0 {
			demoCfg.MinPause = cfg.Relay.DemoMinPause
		}
		if cfg.Relay.DemoMaxPause > 0 {
			demoCfg.MaxPause = cfg.Relay.DemoMaxPause
		}
		dial = demo.Dialer(demoCfg)
	} else {
		log.Println("Running in live mode (ElevenLabs agent)")
		dial = eleven.Dialer(eleven.Config{
			URL:     cfg.Relay.AgentURL,
			APIKey:  creds.ElevenLabsAPIKey,
			AgentID: creds.ElevenLabsAgentID,
		})
	}

	coordinator := relay.NewCoordinator(state, dial, cfg.Relay.InitTimeout)

	var placesClient *places.Client
	if creds.GooglePlacesKey != "" {
		placesClient = places.NewClient(creds.GooglePlacesKey)
	}

	frontendDir := ""
	if *devMode {
		exe, _ := os.Executable()
		frontendDir = filepath.Join(filepath.Dir(exe), "..", "..", "frontend")
		// If running with go run, the exe path is in a temp dir, use CWD instead
		if _, err := os.Stat(frontendDir); os.IsNotExist(err) {
			cwd, _ := os.Getwd()
			frontendDir = filepath.Join(cwd, "..", "frontend")
		}
	}

	// Embedded frontend handler: when built with -tags embed, serves from binary.
	// Otherwise falls back to serving from the filesystem.
	var embeddedHandler http.Handler
	if !*devMode {
		embeddedHandler = frontend.Handler()
		if embeddedHandler == nil {
			cwd, _ := os.Getwd()
			fallback := filepath.Join(cwd, "..", "frontend")
			if _, err := os.Stat(fallback); err == nil {
				log.Printf("No embedded frontend, falling back to: %s", fallback)
				embeddedHandler = http.FileServer(http.Dir(fallback))
			}
		}
	}

	server := ws.NewServer(cfg, state, placesClient,
		func(callCtx context.Context, conn *ws.Conn) {
			coordinator.HandleCall(callCtx, conn)
		},
		frontendDir, *devMode, embeddedHandler)

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		state.Stop()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, ws.Handler(mux)); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func mark(present bool) string {
	if present {
		return "set"
	}
	return "missing"
}
