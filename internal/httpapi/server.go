package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"vidgrabber/internal/adapters/localstorage"
	"vidgrabber/internal/core/domain"
	"vidgrabber/internal/logging"
	"vidgrabber/internal/service"
)

// Pipeline is the part of the orchestrator the request layer drives.
type Pipeline interface {
	Run(ctx context.Context, reference string) (domain.Outcome, *service.Cleanup)
	Describe(ctx context.Context, reference string) (*domain.Resolution, error)
}

// Sweeper removes stale scratch files left behind by crashed runs.
type Sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (localstorage.SweepResult, error)
}

// Options configures the HTTP server.
type Options struct {
	Bind          string
	StaleAfter    time.Duration
	SweepInterval time.Duration // zero sweeps only at startup
}

// Server exposes the pipeline over HTTP.
type Server struct {
	opts     Options
	pipeline Pipeline
	sweeper  Sweeper
	logger   *slog.Logger

	handler  http.Handler
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer builds the server and its routes. sweeper may be nil.
func NewServer(opts Options, pipeline Pipeline, sweeper Sweeper, logger *slog.Logger) *Server {
	srv := &Server{
		opts:     opts,
		pipeline: pipeline,
		sweeper:  sweeper,
		logger:   logging.NewComponentLogger(logger, "httpapi"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleRoot)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/info", srv.handleInfo)
	mux.HandleFunc("/api/download", srv.handleDownload)
	srv.handler = mux

	// No WriteTimeout: a download response lasts as long as the pipeline
	// and the client's read of the artifact.
	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves in the background.
// The server shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.opts.Bind)
	if bind == "" {
		return errors.New("http listen: bind address is empty")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", logging.Error(err))
		}
	}()

	if s.sweeper != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runSweeper(ctx)
		}()
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("http server listening",
		logging.String("address", listener.Addr().String()),
		logging.Event("server_started"),
	)
	return nil
}

// Addr reports the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down, waiting up to five seconds for
// in-flight requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown incomplete", logging.Error(err))
	}
}

// Wait blocks until the serve loop and the sweeper have exited.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) runSweeper(ctx context.Context) {
	s.sweepOnce(ctx)
	if s.opts.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Server) sweepOnce(ctx context.Context) {
	result, err := s.sweeper.Sweep(ctx, s.opts.StaleAfter)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("scratch sweep failed", logging.Error(err), logging.Event("scratch_sweep_failed"))
		}
		return
	}
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		s.logger.Info("scratch sweep complete",
			logging.Int("removed", len(result.Removed)),
			logging.Int("kept", result.Kept),
			logging.Int("errors", len(result.Errors)),
			logging.Duration("duration", result.Duration.Round(time.Millisecond)),
			logging.Event("scratch_sweep_complete"),
		)
	}
}
