package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmorgan81/promptgrid/internal/config"
	"github.com/dmorgan81/promptgrid/internal/handler"
	"github.com/dmorgan81/promptgrid/internal/log"
	"github.com/samber/do"
)

const shutdownTimeout = 30 * time.Second

// Server runs the handler on a plain HTTP listener for local and container
// deployments.
type Server struct {
	srv *http.Server

	mu       sync.Mutex
	listener net.Listener
}

func NewServer(i *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return New(cfg.Addr, do.MustInvoke[*handler.Handler](i)), nil
}

func New(addr string, h http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
}

// Listen binds the configured address. Run calls it when needed.
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		l, err := net.Listen("tcp", s.srv.Addr)
		if err != nil {
			return nil, fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
		}
		s.listener = l
	}
	return s.listener.Addr(), nil
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr, err := s.Listen()
	if err != nil {
		return err
	}
	logger := log.FromContextOrDiscard(ctx).WithGroup("server").With("addr", addr.String())
	logger.Info("serving http")

	errs := make(chan error, 1)
	go func() {
		errs <- s.srv.Serve(s.listener)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := s.Shutdown(); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown satisfies do.Shutdownable.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
