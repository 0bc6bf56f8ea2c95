package gateway

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eventhub/edge-gateway/internal/config"
	"github.com/eventhub/edge-gateway/internal/logging"
	"github.com/eventhub/edge-gateway/internal/middleware"
)

// shutdownTimeout bounds how long in-flight requests get to drain.
const shutdownTimeout = 15 * time.Second

// Server runs the public and admin listeners around a Gateway.
type Server struct {
	gateway     *Gateway
	cfg         *config.Config
	httpServer  *http.Server
	adminServer *http.Server
	startTime   time.Time
}

// NewServer creates a Server for cfg.
func NewServer(cfg *config.Config, version string) (*Server, error) {
	gw, err := New(cfg, version)
	if err != nil {
		return nil, err
	}

	s := &Server{
		gateway:   gw,
		cfg:       cfg,
		startTime: time.Now(),
	}

	chain := middleware.NewChain(middleware.AccessLog())
	s.httpServer = &http.Server{
		Addr:         cfg.Listen.Address,
		Handler:      chain.Then(gw),
		ReadTimeout:  cfg.Listen.ReadTimeout,
		WriteTimeout: cfg.Listen.WriteTimeout,
		IdleTimeout:  cfg.Listen.IdleTimeout,
	}

	if cfg.Admin.Enabled {
		s.adminServer = &http.Server{
			Addr:         cfg.Admin.Address,
			Handler:      s.adminHandler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	return s, nil
}

// Run starts the listeners and blocks until a signal or a listener error.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("public listener started", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if s.adminServer != nil {
		g.Go(func() error {
			logging.Info("admin listener started", zap.String("address", s.adminServer.Addr))
			if err := s.adminServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return s.Shutdown(shutdownTimeout)
	})

	return g.Wait()
}

// Shutdown drains in-flight requests, then releases gateway resources.
func (s *Server) Shutdown(timeout time.Duration) error {
	logging.Info("shutting down", zap.Duration("drain", timeout))
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if s.adminServer != nil {
		if err := s.adminServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.gateway.Close()
	return firstErr
}
