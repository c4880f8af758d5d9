package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nanashi-games/turingden/internal/genai"
)

// Options tunes an App. Zero values take the production defaults.
type Options struct {
	BaseURL          string
	PolicyVersion    string
	GeneratorTimeout time.Duration
	TickInterval     time.Duration
}

// App wires the room orchestrator together: store, event broker, persona
// pool, finalizer, and scheduler. Handlers hang off it.
type App struct {
	Store     Store
	Broker    *Broker
	Pool      *Pool
	Finalizer *Finalizer
	Scheduler *Scheduler
	Logger    *slog.Logger
	BaseURL   string
}

func NewApp(store Store, gen genai.Generator, logger *slog.Logger, opts Options) (*App, error) {
	if opts.PolicyVersion == "" {
		opts.PolicyVersion = "v2"
	}
	policy, err := policyByVersion(opts.PolicyVersion)
	if err != nil {
		return nil, err
	}

	broker := NewBroker()
	finalizer := NewFinalizer(store, broker, logger)
	return &App{
		Store:     store,
		Broker:    broker,
		Pool:      NewPool(store, gen, policy, logger, opts.GeneratorTimeout),
		Finalizer: finalizer,
		Scheduler: NewScheduler(store, gen, broker, finalizer, policy, logger, opts.TickInterval),
		Logger:    logger,
		BaseURL:   opts.BaseURL,
	}, nil
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func New(addr string, logger *slog.Logger, app *App, db *sql.DB) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(logger))
	r.Use(middleware.Recoverer)

	addRoutes(r, logger, app, db)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
