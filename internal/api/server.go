package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/video-route/internal/dispatch"
	"github.com/nerrad567/video-route/internal/drivers/serial"
	"github.com/nerrad567/video-route/internal/infrastructure/config"
	"github.com/nerrad567/video-route/internal/infrastructure/logging"
	"github.com/nerrad567/video-route/internal/routing"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Dispatcher resolves selections and exposes the Source Tree.
// *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	ResolveAndDispatch(ctx context.Context, address, source string) *dispatch.Execution
	Tree() (*routing.Document, error)
}

// HealthChecker is implemented by optional infrastructure (database, MQTT,
// InfluxDB) whose state is reported by the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PortLister enumerates serial ports.
type PortLister func() ([]serial.PortInfo, error)

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Dispatcher Dispatcher
	History    dispatch.Repository      // optional; history routes return 503 without it
	Checks     map[string]HealthChecker // optional components reported by /health
	Ports      PortLister               // defaults to serial.ListPorts
	Hub        *Hub                     // if set, the server uses this hub instead of creating its own
	Version    string
}

// Server is the HTTP API server for video-route.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	dispatcher Dispatcher
	history    dispatch.Repository
	checks     map[string]HealthChecker
	ports      PortLister
	version    string
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, dispatcher) plus optional history and checks
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		dispatcher: deps.Dispatcher,
		history:    deps.History,
		checks:     deps.Checks,
		ports:      deps.Ports,
		version:    deps.Version,
	}
	if s.ports == nil {
		s.ports = serial.ListPorts
	}

	// The dispatcher broadcasts through the same hub, so main builds it first.
	s.hub = deps.Hub

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub when none was injected,
// and launches the HTTP listener in a background goroutine. The server can
// be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub and background goroutines
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}
	s.hub.SetSelector(s.selectOverWebSocket)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// selectOverWebSocket runs a selection received as a "select" message.
func (s *Server) selectOverWebSocket(ctx context.Context, address string) *dispatch.Execution {
	return s.dispatcher.ResolveAndDispatch(ctx, address, dispatch.SourceAPI)
}
