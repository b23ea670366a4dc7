package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/architeacher/nocoflo/internal/config"
)

// stopOrder closes intake first, then what in-flight requests still use.
var stopOrder = []string{"http", "sweeper", "datasources", "keydb", "metadata", "tracer"}

type (
	Service struct {
		preset *config.ServiceConfig
		ready  chan struct{}

		deps   *dependencies
		ctx    context.Context
		cancel context.CancelFunc
		addr   string
	}

	Option func(*Service)
)

// WithPresetConfig skips reading the environment.
func WithPresetConfig(cfg *config.ServiceConfig) Option {
	return func(s *Service) {
		s.preset = cfg
	}
}

func New(opts ...Option) *Service {
	s := &Service{ready: make(chan struct{})}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run serves until SIGINT, SIGTERM, Stop or a listener failure, then shuts
// down within the configured timeout.
func (s *Service) Run() error {
	signalCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	s.ctx, s.cancel = context.WithCancel(signalCtx)
	defer s.cancel()

	deps, err := initializeDependencies(s.ctx, s.preset)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}

	s.deps = deps

	serveErr, err := s.serve()
	if err != nil {
		s.stop()

		return err
	}

	s.watchConfig()

	select {
	case <-s.ctx.Done():
	case err = <-serveErr:
	}

	s.stop()

	return err
}

// Stop triggers the same graceful shutdown as SIGTERM.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Ready is closed once the http server accepts connections.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the listening address, valid after Ready.
func (s *Service) Addr() string {
	return s.addr
}

func (s *Service) serve() (<-chan error, error) {
	if s.deps.infra.sweeper != nil {
		s.deps.infra.sweeper.Start()
	}

	httpCfg := s.deps.config.HTTPServer
	addr := net.JoinHostPort(httpCfg.Host, strconv.FormatUint(uint64(httpCfg.Port), 10))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.addr = listener.Addr().String()

	s.deps.infra.logger.Info().
		Str("address", s.addr).
		Str("version", config.ServiceVersion).
		Str("commit", config.CommitSHA).
		Msg("nocoflo is listening")

	errs := make(chan error, 1)

	go func() {
		if err := s.deps.infra.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	close(s.ready)

	return errs, nil
}

func (s *Service) watchConfig() {
	if s.deps.configLoader == nil {
		return
	}

	log := s.deps.infra.logger

	go func() {
		for err := range s.deps.configLoader.Watch(s.ctx) {
			if err != nil {
				log.Error().Err(err).Msg("reloading secrets failed")

				continue
			}

			log.Info().Msg("secrets reloaded")
		}
	}()
}

func (s *Service) stop() {
	log := s.deps.infra.logger
	log.Info().Msg("shutting down")

	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.deps.config.HTTPServer.ShutdownTimeout)
	defer cancel()

	finished := make(chan struct{})

	go func() {
		select {
		case <-finished:
		case <-ctx.Done():
			log.Error().Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	s.deps.release(ctx)
	close(finished)

	log.Info().Msg("shutdown complete")
}
