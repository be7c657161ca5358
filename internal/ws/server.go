package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/callpilot/backend/internal/call"
	"github.com/callpilot/backend/internal/config"
	"github.com/callpilot/backend/internal/directory"
	"github.com/callpilot/backend/internal/places"
)

// CallHandlerFunc runs one relayed call on an upgraded connection and
// returns when the call is over.
type CallHandlerFunc func(ctx context.Context, conn *Conn)

type Server struct {
	cfg             *config.Config
	state           *call.State
	places          *places.Client // nil without a Google Places key
	handleCall      CallHandlerFunc
	frontendDir     string
	dev             bool
	embeddedHandler http.Handler
	allowedOrigins  map[string]bool
	allowedHosts    map[string]bool
	startedAt       time.Time
}

func NewServer(cfg *config.Config, state *call.State, placesClient *places.Client, handleCall CallHandlerFunc, frontendDir string, dev bool, embeddedHandler http.Handler) *Server {
	s := &Server{
		cfg:             cfg,
		state:           state,
		places:          placesClient,
		handleCall:      handleCall,
		frontendDir:     frontendDir,
		dev:             dev,
		embeddedHandler: embeddedHandler,
		allowedOrigins:  make(map[string]bool),
		allowedHosts:    make(map[string]bool),
		startedAt:       time.Now(),
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/call", s.handleWS)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/nearby", s.handleNearby)
	mux.HandleFunc("/api/place-details", s.handlePlaceDetails)
	mux.HandleFunc("/api/geocode", s.handleGeocode)
	mux.HandleFunc("/api/health", s.handleHealth)

	if s.dev {
		log.Printf("Serving frontend from filesystem: %s", s.frontendDir)
		mux.Handle("/", http.FileServer(http.Dir(s.frontendDir)))
	} else if s.embeddedHandler != nil {
		log.Println("Serving embedded frontend")
		mux.Handle("/", s.embeddedHandler)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	log.Printf("call client connected: %s", r.RemoteAddr)

	conn := NewConn(raw)
	s.handleCall(r.Context(), conn)
	conn.Close()
	log.Printf("call client disconnected: %s", r.RemoteAddr)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.state.Snapshot())
}

// handleStop deactivates the call slot. It does not touch the call's
// transports; the relay's pump loops observe the deactivation and tear
// down on their own.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.state.Stop()
	writeJSON(w, map[string]bool{"ok": true})
}

// handleConfig reports which credentials are present. Booleans only,
// never values.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	creds := s.cfg.Credentials
	writeJSON(w, map[string]bool{
		"has_elevenlabs":    creds.ElevenLabsAPIKey != "",
		"has_agent":         creds.ElevenLabsAgentID != "",
		"has_openai":        creds.OpenAIAPIKey != "",
		"has_google_places": creds.GooglePlacesKey != "",
		"demo_mode":         creds.DemoMode(),
	})
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	service := q.Get("service")
	if service == "" {
		http.Error(w, "missing service", http.StatusBadRequest)
		return
	}
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		http.Error(w, "invalid lat", http.StatusBadRequest)
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		http.Error(w, "invalid lng", http.StatusBadRequest)
		return
	}
	radius := 5000
	if v := q.Get("radius"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			radius = n
		}
	}

	if s.places != nil {
		providers, err := s.places.NearbySearch(r.Context(), service, lat, lng, radius)
		if err == nil && len(providers) > 0 {
			writeJSON(w, map[string]interface{}{"providers": providers, "source": "google_places"})
			return
		}
		if err != nil {
			log.Printf("Google Places error: %v", err)
		}
	}

	writeJSON(w, map[string]interface{}{
		"providers": directory.Nearby(service, lat, lng),
		"source":    "demo",
	})
}

func (s *Server) handlePlaceDetails(w http.ResponseWriter, r *http.Request) {
	if s.places == nil {
		writeJSON(w, map[string]string{"phone": "", "error": "No Google Places API key"})
		return
	}
	placeID := r.URL.Query().Get("place_id")
	if placeID == "" {
		http.Error(w, "missing place_id", http.StatusBadRequest)
		return
	}

	details, err := s.places.PlaceDetails(r.Context(), placeID)
	if err != nil {
		log.Printf("place details error: %v", err)
		writeJSON(w, map[string]string{"phone": "", "error": "lookup failed"})
		return
	}
	writeJSON(w, details)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}

	if s.places != nil {
		if loc, err := s.places.ReverseGeocode(r.Context(), lat, lng); err == nil {
			writeJSON(w, loc)
			return
		}
	}
	// Keyless or failed lookups degrade to the raw coordinates.
	writeJSON(w, places.Location{Address: fmt.Sprintf("%.4f, %.4f", lat, lng)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":         "ok",
		"service":        "CallPilot Backend",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfo(); err == nil {
			resp["rss_bytes"] = mem.RSS
		}
		if cpu, err := p.CPUPercent(); err == nil {
			resp["cpu_percent"] = cpu
		}
	}
	writeJSON(w, resp)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler wraps the mux with the standard middleware stack.
func Handler(mux *http.ServeMux) http.Handler {
	return securityHeaders(corsHeaders(mux))
}

func ListenAndServe(host string, port int, handler http.Handler) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, handler)
}
