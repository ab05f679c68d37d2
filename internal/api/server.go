package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"audiodrop/internal/config"
	"audiodrop/internal/logging"
	"audiodrop/internal/queue"
	"audiodrop/internal/storage"
)

const defaultReadLinkTTL = time.Hour

// Enqueuer accepts encoded jobs. queue.Queue satisfies it.
type Enqueuer interface {
	Send(ctx context.Context, body []byte) (string, error)
}

// Options configures a Server.
type Options struct {
	Bind        string
	ReadLinkTTL time.Duration
	Logger      *slog.Logger
}

// OptionsFromConfig derives server options from the api section of cfg.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Bind:        cfg.API.Bind,
		ReadLinkTTL: cfg.ReadLinkTTL(),
		Logger:      logger,
	}
}

// Server is the intake HTTP server.
type Server struct {
	queue  Enqueuer
	store  storage.Store
	files  *storage.FileStore
	logger *slog.Logger
	opts   Options

	server   *http.Server
	listener net.Listener
}

var _ Enqueuer = queue.Queue(nil)

// New constructs a Server. When store is a *storage.FileStore the server also
// serves signed /files links.
func New(q Enqueuer, store storage.Store, opts Options) (*Server, error) {
	if q == nil {
		return nil, errors.New("api: queue is required")
	}
	if store == nil {
		return nil, errors.New("api: store is required")
	}
	if opts.ReadLinkTTL <= 0 {
		opts.ReadLinkTTL = defaultReadLinkTTL
	}
	s := &Server{
		queue:  q,
		store:  store,
		logger: logging.NewComponentLogger(opts.Logger, "api"),
		opts:   opts,
	}
	if fs, ok := store.(*storage.FileStore); ok {
		s.files = fs
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, s.requestID, s.accessLog, middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/", s.handleEnqueue)
	r.Get("/read/{key}", s.handleRead)
	if s.files != nil {
		r.Get("/files/{key}", s.handleFile)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.opts.Bind)
	if bind == "" {
		return errors.New("api: bind address is empty")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listen"),
		logging.String("address", listener.Addr().String()),
		logging.Bool("serves_files", s.files != nil),
	)
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for active requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
