package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/servomount/internal/bus"
	"github.com/nerrad567/servomount/internal/infrastructure/config"
	"github.com/nerrad567/servomount/internal/infrastructure/logging"
	"github.com/nerrad567/servomount/internal/thing"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BusMonitor exposes the bus handle's health to the health endpoint.
type BusMonitor interface {
	Stats() bus.Stats
	HealthCheck() error
}

// HealthChecker is an optional subsystem reported by the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the thing server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Thing    *thing.Thing

	// Bus is optional; when set its statistics appear in /health.
	Bus BusMonitor

	// History is optional; without it the history endpoint answers 503.
	History thing.HistoryRepository

	// Components are optional subsystems (database, mqtt, influxdb) checked by /health.
	Components map[string]HealthChecker

	Version string
}

// Server serves one Thing over HTTP and WebSocket.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	thing      *thing.Thing
	bus        BusMonitor
	history    thing.HistoryRepository
	components map[string]HealthChecker
	version    string
	startTime  time.Time

	allowedHosts map[string]struct{}

	server   *http.Server
	listener net.Listener
	hub      *Hub
	cancel   context.CancelFunc // cancels background goroutines on Close()

	observeOnce sync.Once
}

// New creates a new thing server with the given dependencies.
//
// The server is not started until Start() is called. The WebSocket hub is
// created here so property changes are broadcast from the first write.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Thing == nil {
		return nil, fmt.Errorf("thing is required")
	}
	if deps.Security.JWT.Enabled && deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required when authentication is enabled")
	}
	if deps.WS.PingInterval <= 0 || deps.WS.PongTimeout <= 0 {
		return nil, fmt.Errorf("websocket ping interval and pong timeout must be positive")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		thing:      deps.Thing,
		bus:        deps.Bus,
		history:    deps.History,
		components: deps.Components,
		version:    deps.Version,
		startTime:  time.Now(),
		hub:        NewHub(deps.WS, deps.Logger),
	}
	s.allowedHosts = buildAllowedHosts(deps.Config)

	s.observeOnce.Do(func() {
		s.thing.Observe(s.broadcastChange)
	})

	return s, nil
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// The listener is opened synchronously so a port already in use is reported
// to the caller; serving then continues in a background goroutine until
// Close() is called.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("thing server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("thing server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("thing server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the address the server is listening on, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("thing server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down thing server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("thing server not started")
	}

	return nil
}

// broadcastChange pushes an accepted property write to every WebSocket client.
func (s *Server) broadcastChange(c thing.Change) {
	s.hub.Broadcast(WSTypePropertyStatus, map[string]any{c.Property: c.Value})
}

// buildAllowedHosts lists the Host header values the server answers to:
// loopback names, this machine's hostname (plain and .local), the configured
// bind address, and any configured extra hostnames.
func buildAllowedHosts(cfg config.APIConfig) map[string]struct{} {
	hosts := map[string]struct{}{
		"localhost": {},
		"127.0.0.1": {},
		"::1":       {},
	}
	if name, err := os.Hostname(); err == nil && name != "" {
		name = strings.ToLower(name)
		hosts[name] = struct{}{}
		hosts[name+".local"] = struct{}{}
	}
	if cfg.Host != "" && cfg.Host != "0.0.0.0" && cfg.Host != "::" {
		hosts[strings.ToLower(cfg.Host)] = struct{}{}
	}
	for _, h := range cfg.Hostnames {
		hosts[strings.ToLower(h)] = struct{}{}
	}
	return hosts
}
