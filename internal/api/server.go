package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/printlink-core/internal/audit"
	"github.com/nerrad567/printlink-core/internal/device"
	"github.com/nerrad567/printlink-core/internal/infrastructure/config"
	"github.com/nerrad567/printlink-core/internal/infrastructure/logging"
	"github.com/nerrad567/printlink-core/internal/printer"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Printer is the printer link as seen by the API.
// *printer.Device satisfies it.
type Printer interface {
	ID() string
	Status() printer.Status
	CoverImage(ctx context.Context) ([]byte, error)
	AMSUnits() []printer.AMSStatus
	AMSUnit(index int) (printer.AMSStatus, error)

	PausePrint(ctx context.Context) error
	ResumePrint(ctx context.Context) error
	StopPrint(ctx context.Context) error
	SetChamberLight(ctx context.Context, on bool) error
	SetWorkLight(ctx context.Context, on bool) error
	SetPrintSpeed(ctx context.Context, level printer.SpeedLevel) error
}

// CapabilityLister lists provisioned capabilities.
// *device.CapabilityStore satisfies it.
type CapabilityLister interface {
	List(ctx context.Context) ([]device.Capability, error)
}

// DBStatter reports connection pool statistics. *sql.DB satisfies it.
type DBStatter interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	WS           config.WebSocketConfig
	Logger       *logging.Logger
	Printer      Printer
	Capabilities CapabilityLister
	Events       device.EventRepository
	History      device.StateHistoryRepository
	Audit        audit.Repository
	DB           DBStatter
	Hub          *Hub
	Version      string
}

// Server is the local HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	logger       *logging.Logger
	printer      Printer
	capabilities CapabilityLister
	events       device.EventRepository
	history      device.StateHistoryRepository
	audit        audit.Repository
	db           DBStatter
	hub          *Hub
	ownHub       bool
	version      string
	startTime    time.Time

	server *http.Server
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. When Deps.Hub is nil
// the server creates its own and runs it from Start.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Printer == nil {
		return nil, fmt.Errorf("printer is required")
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		logger:       deps.Logger,
		printer:      deps.Printer,
		capabilities: deps.Capabilities,
		events:       deps.Events,
		history:      deps.History,
		audit:        deps.Audit,
		db:           deps.DB,
		hub:          deps.Hub,
		version:      deps.Version,
		startTime:    time.Now(),
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
		s.ownHub = true
	}
	return s, nil
}

// Start binds the listener and serves in a background goroutine.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.ownHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
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

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// Handler returns the router without starting a listener. Used by tests
// and by callers embedding the API in another server.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}
