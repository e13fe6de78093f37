package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"calgrid/internal/agenda"
	"calgrid/internal/calendar"
	"calgrid/internal/config"
	appLog "calgrid/internal/log"
)

const (
	// Upper bounds for a single request; anything larger is a client bug.
	maxWeeks      = 520
	maxExtendDays = maxWeeks * calendar.DaysPerWeek

	shutdownTimeout = 5 * time.Second
)

// Server exposes the calendar grid over HTTP.
//
//	GET /health
//	GET /api/weekdays
//	GET /api/calendar?date=YYYY-MM-DD&weeks=N
//	GET /api/calendar/next?last=YYYY-MM-DD&days=N
type Server struct {
	mu   sync.RWMutex
	cfg  *config.Config
	grid *calendar.Grid
	loc  *time.Location

	agenda *agenda.Store
	now    func() time.Time
	mux    *http.ServeMux
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer constructs a Server. store may be nil, in which case days carry
// no events.
func NewServer(cfg *config.Config, store *agenda.Store, opts ...Option) *Server {
	s := &Server{
		agenda: store,
		now:    time.Now,
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Apply(cfg)
	s.registerRoutes()
	return s
}

// Apply switches the server to cfg. In-flight requests finish with the
// settings they started with.
func (s *Server) Apply(cfg *config.Config) {
	grid := calendar.NewGrid(cfg.WeekStartDay())
	loc := cfg.Location()

	s.mu.Lock()
	s.cfg = cfg
	s.grid = grid
	s.loc = loc
	s.mu.Unlock()
}

// view is the per-request copy of the mutable server settings.
type view struct {
	grid         *calendar.Grid
	today        calendar.Date
	initialWeeks int
	extendDays   int
}

// snapshot captures the settings and evaluates today once, so a whole
// response is classified against the same date.
func (s *Server) snapshot() view {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{
		grid:         s.grid,
		today:        calendar.DateOf(s.now().In(s.loc)),
		initialWeeks: s.cfg.InitialWeeks,
		extendDays:   s.cfg.ExtendDays,
	}
}

// Handler returns the root handler, with request logging applied.
func (s *Server) Handler() http.Handler {
	return requestLogger(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/weekdays", s.handleWeekdays)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/calendar/next", s.handleNext)
}

// StartServer serves s on listen until ctx is canceled, then shuts down
// gracefully.
func StartServer(ctx context.Context, s *Server, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web: listen %s: %w", listen, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
