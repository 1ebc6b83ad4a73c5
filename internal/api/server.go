// Package api provides the HTTP REST API and WebSocket server for the
// VeganLens camera core.
//
// It exposes camera state, mode switching, configuration, capture and
// diagnostics to user interfaces (the mobile app screens and the web
// diagnostics panel), plus a WebSocket fan-out of every camera event.
//
// The server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/veganlens/veganlens-core/internal/camera"
	"github.com/veganlens/veganlens-core/internal/eventbus"
	"github.com/veganlens/veganlens-core/internal/infrastructure/config"
	"github.com/veganlens/veganlens-core/internal/infrastructure/database"
	"github.com/veganlens/veganlens-core/internal/infrastructure/influxdb"
	"github.com/veganlens/veganlens-core/internal/infrastructure/logging"
	"github.com/veganlens/veganlens-core/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Camera   *camera.Coordinator
	Bus      *eventbus.Bus

	// Optional diagnostics dependencies. Nil disables the related endpoints
	// or health probes.
	Journal *camera.Journal
	DB      *database.DB
	MQTT    *mqtt.Client
	Influx  *influxdb.Client

	Version string
}

// Server is the HTTP API server for the VeganLens camera core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	secCfg  config.SecurityConfig
	logger  *logging.Logger
	camera  *camera.Coordinator
	bus     *eventbus.Bus
	journal *camera.Journal
	db      *database.DB
	mqtt    *mqtt.Client
	influx  *influxdb.Client
	version string

	server  *http.Server
	hub     *Hub
	tickets *ticketStore
	relays  []*eventbus.Subscription
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Camera == nil {
		return nil, fmt.Errorf("camera coordinator is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	// An empty device key would compare equal to an empty request key in
	// the token exchange.
	if deps.Security.DeviceKey == "" {
		return nil, fmt.Errorf("device key is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		secCfg:  deps.Security,
		logger:  deps.Logger,
		camera:  deps.Camera,
		bus:     deps.Bus,
		journal: deps.Journal,
		db:      deps.DB,
		mqtt:    deps.MQTT,
		influx:  deps.Influx,
		version: deps.Version,
		tickets: newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, relays camera events from
// the bus to connected WebSocket clients, and launches the HTTP listener in
// a background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Periodic ticket cleanup to prevent memory leaks.
	go s.tickets.cleanLoop(srvCtx)

	s.relayCameraEvents()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
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
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	for _, sub := range s.relays {
		sub.Cancel()
	}
	s.relays = nil

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

// relayCameraEvents fans every camera event out to WebSocket clients
// subscribed to the matching "camera.{kind}" channel.
func (s *Server) relayCameraEvents() {
	kinds := []eventbus.Kind{
		camera.KindModeChanged,
		camera.KindActivated,
		camera.KindDeactivated,
		camera.KindPermissionChanged,
		camera.KindCapturingStateChanged,
		camera.KindConfigUpdated,
		camera.KindError,
		camera.KindCameraReset,
	}
	for _, kind := range kinds {
		sub := s.bus.SubscribePinned("websocket-hub", kind, func(e eventbus.Event) {
			s.hub.Broadcast("camera."+string(e.EventKind()), e)
		})
		s.relays = append(s.relays, sub)
	}
}
