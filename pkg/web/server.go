package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ChlorophyllA/skin2/internal/observability"
	"github.com/ChlorophyllA/skin2/pkg/channels"
	"github.com/ChlorophyllA/skin2/pkg/derm"
	"github.com/ChlorophyllA/skin2/pkg/hospital"
	"github.com/ChlorophyllA/skin2/pkg/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Dispatcher routes a question to a registered conversation channel
type Dispatcher interface {
	Dispatch(ctx context.Context, msg channels.InboundMessage) (string, error)
}

// Conversations exposes per-session history for the chat endpoints
type Conversations interface {
	History(sessionID string) ([]session.Turn, bool)
	Reset(sessionID string) bool
}

// HospitalStore answers the hospital directory endpoints
type HospitalStore interface {
	Suggestions(ctx context.Context, field, q string, limit int) ([]string, error)
	Cities(ctx context.Context, province string) ([]string, error)
	Levels(ctx context.Context) ([]string, error)
	Search(ctx context.Context, q hospital.Query) (*hospital.Result, error)
}

// SkinStore answers the skin disease encyclopedia endpoints
type SkinStore interface {
	Page(ctx context.Context, page int) (*derm.Page, error)
	Random(ctx context.Context) (derm.Row, error)
}

// Options configures the HTTP server
type Options struct {
	Host              string
	Port              int
	CookieName        string
	CookieSecure      bool
	RateLimitPerMin   int
	MaxConcurrent     int
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration

	WebSocketEnabled bool
	AllowedWSOrigins []string

	MetricsEnabled bool
	MetricsPath    string

	// Channel names used for Dispatch
	ChatChannel      string
	WebSocketChannel string
}

// Deps are the collaborators behind the routes. Hospitals and Skin are
// optional; their routes are only mounted when set.
type Deps struct {
	Dispatcher    Dispatcher
	Conversations Conversations
	Hospitals     HospitalStore
	Skin          SkinStore
	Logger        zerolog.Logger
}

// Server is the public HTTP API
type Server struct {
	options     Options
	deps        Deps
	server      *http.Server
	handler     http.Handler
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
	logger      zerolog.Logger
	startTime   time.Time

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup

	wsMu    sync.Mutex
	wsConns map[*websocket.Conn]struct{}
}

// NewServer creates the server and builds its routes
func NewServer(options Options, deps Deps) (*Server, error) {
	observability.EnsureRegistered()

	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Conversations == nil {
		return nil, fmt.Errorf("conversations are required")
	}

	if options.Port == 0 {
		options.Port = 5000
	}
	if options.CookieName == "" {
		options.CookieName = "skin2_session"
	}
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = 30 * time.Second
	}
	if options.ReadHeaderTimeout <= 0 {
		options.ReadHeaderTimeout = 10 * time.Second
	}
	if options.MetricsPath == "" {
		options.MetricsPath = "/metrics"
	}
	if options.ChatChannel == "" {
		options.ChatChannel = "web"
	}
	if options.WebSocketChannel == "" {
		options.WebSocketChannel = "ws"
	}

	s := &Server{
		options:     options,
		deps:        deps,
		rateLimiter: NewRateLimiter(options.RateLimitPerMin, options.MaxConcurrent),
		logger:      deps.Logger.With().Str("component", "web").Logger(),
		startTime:   time.Now(),
		wsConns:     make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.handler = s.routes()

	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /health", s.wrap("/health", false, s.handleHealth))
	if s.options.MetricsEnabled {
		mux.Handle("GET "+s.options.MetricsPath, observability.MetricsHandler())
	}

	mux.Handle("GET /diagnose", s.wrap("/diagnose", true, s.handleDiagnose))
	mux.Handle("POST /ask", s.wrap("/ask", true, s.handleAsk))
	mux.Handle("GET /api/chat/history", s.wrap("/api/chat/history", true, s.handleHistory))
	mux.Handle("POST /api/chat/reset", s.wrap("/api/chat/reset", true, s.handleReset))
	if s.options.WebSocketEnabled {
		// frames are limited individually inside the handler
		mux.Handle("GET /ws", s.wrap("/ws", false, s.handleWebSocket))
	}

	if s.deps.Hospitals != nil {
		mux.Handle("GET /api/suggestions", s.wrap("/api/suggestions", true, s.handleSuggestions))
		mux.Handle("GET /api/cities", s.wrap("/api/cities", true, s.handleCities))
		mux.Handle("GET /api/levels", s.wrap("/api/levels", true, s.handleLevels))
		mux.Handle("POST /api/search", s.wrap("/api/search", true, s.handleSearch))
	}

	if s.deps.Skin != nil {
		mux.Handle("GET /api/skin/page", s.wrap("/api/skin/page", true, s.handleSkinPage))
		mux.Handle("GET /api/skin/random", s.wrap("/api/skin/random", true, s.handleSkinRandom))
	}
	mux.Handle("GET /api/disease/{code}", s.wrap("/api/disease", true, s.handleDisease))

	return mux
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens and serves until Stop is called
func (s *Server) Start() error {
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: s.options.ReadHeaderTimeout,
	}
	s.shutdownMu.Lock()
	if s.isShuttingDown {
		s.shutdownMu.Unlock()
		return nil
	}
	s.server = server
	s.shutdownMu.Unlock()

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting web server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start web server: %w", err)
	}

	return nil
}

// Stop refuses new requests, closes websocket clients and waits for
// in-flight requests before shutting the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down web server")

	s.closeWebSockets()

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(s.options.ShutdownTimeout):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown cancelled, forcing close")
	}

	s.rateLimiter.Stop()

	s.shutdownMu.RLock()
	server := s.server
	s.shutdownMu.RUnlock()
	if server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown web server: %w", err)
	}

	s.logger.Info().Msg("Web server stopped")
	return nil
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().UnixMilli(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
