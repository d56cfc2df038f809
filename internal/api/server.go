package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lumenfleet/lumen-core/internal/infrastructure/config"
	"github.com/lumenfleet/lumen-core/internal/infrastructure/logging"
	"github.com/lumenfleet/lumen-core/internal/node"
	"github.com/lumenfleet/lumen-core/internal/schedule"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Dispatcher sends manual node commands. Implemented by command.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, nodeID string, update node.Update, prov node.Provenance) error
}

// ScheduleSource serves the reconciler's view of the stored schedules.
// Implemented by schedule.Reconciler.
type ScheduleSource interface {
	Pending() []schedule.Entry
	OnChange(fn func([]schedule.Entry))
}

// ScheduleBackend proxies schedule writes to the fleet service.
// Implemented by fleetapi.Client.
type ScheduleBackend interface {
	CreateSchedule(ctx context.Context, entry schedule.Entry) (schedule.Entry, error)
	DeleteSchedule(ctx context.Context, id string) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Store      *node.Store
	Dispatcher Dispatcher
	Schedules  ScheduleSource
	Backend    ScheduleBackend

	// DefaultDim is the dim level applied to ON commands that omit one.
	DefaultDim int

	// SnapshotStatus reports the last successful fleet sync for health
	// output. Optional.
	SnapshotStatus func() (time.Time, error)

	Version string
}

// Server is the HTTP API server for Lumen Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	store      *node.Store
	dispatcher Dispatcher
	schedules  ScheduleSource
	backend    ScheduleBackend
	defaultDim int
	snapStatus func() (time.Time, error)
	version    string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("node store is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("command dispatcher is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		schedules:  deps.Schedules,
		backend:    deps.Backend,
		defaultDim: deps.DefaultDim,
		snapStatus: deps.SnapshotStatus,
		version:    deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It creates the WebSocket hub, wires store and schedule changes into
// hub broadcasts, and launches the HTTP listener in a background
// goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Store changes feed the node.state channel; schedule set changes
	// feed schedule.events.
	s.store.Subscribe(func(ev node.Event) {
		s.hub.Broadcast(ChannelNodeState, nodeEventPayload(ev))
	})
	if s.schedules != nil {
		s.schedules.OnChange(func(entries []schedule.Entry) {
			s.hub.Broadcast(ChannelScheduleEvents, schedule.CalendarEvents(entries))
		})
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
