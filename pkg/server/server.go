// Package server runs the HTTP API and stops it on shutdown signals.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const stopWaitTime = 5 * time.Second

type Config struct {
	Host string `toml:"host" env:"HOST"`
	Port string `toml:"port" env:"PORT"`
}

type Server interface {
	Start() error
	Stop() error
}

type httpServer struct {
	ctx     context.Context
	cancel  context.CancelFunc
	name    string
	address string
	server  *http.Server
	logger  *slog.Logger
}

var _ Server = (*httpServer)(nil)

func NewHTTPServer(ctx context.Context, cancel context.CancelFunc, name string, cfg Config, handler http.Handler, logger *slog.Logger) Server {
	address := net.JoinHostPort(cfg.Host, cfg.Port)

	return &httpServer{
		ctx:     ctx,
		cancel:  cancel,
		name:    name,
		address: address,
		server: &http.Server{
			Addr:              address,
			Handler:           handler,
			ReadHeaderTimeout: stopWaitTime,
		},
		logger: logger,
	}
}

func (s *httpServer) Start() error {
	errCh := make(chan error, 1)

	s.logger.Info(fmt.Sprintf("%s service HTTP server listening at %s", s.name, s.address))
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-s.ctx.Done():
		return s.Stop()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}
}

func (s *httpServer) Stop() error {
	defer s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), stopWaitTime)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("%s service error occurred during shutdown at %s: %s", s.name, s.address, err))

		return fmt.Errorf("%s service error occurred during shutdown at %s: %w", s.name, s.address, err)
	}
	s.logger.Info(fmt.Sprintf("%s HTTP service shutdown of http at %s", s.name, s.address))

	return nil
}

// StopSignalHandler stops the servers on SIGINT or SIGTERM, or when ctx is
// done.
func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, svcName string, servers ...Server) error {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case s := <-sig:
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		logger.Info(fmt.Sprintf("%s service shutdown by signal: %s", svcName, s))

		return errors.Join(errs...)
	case <-ctx.Done():
		return nil
	}
}
