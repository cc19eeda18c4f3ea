package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/kode4food/cadence"
	"github.com/kode4food/cadence/internal/approval"
	"github.com/kode4food/cadence/internal/archive"
	"github.com/kode4food/cadence/internal/capability"
	"github.com/kode4food/cadence/internal/client"
	"github.com/kode4food/cadence/internal/config"
	"github.com/kode4food/cadence/internal/engine"
	"github.com/kode4food/cadence/internal/events"
	"github.com/kode4food/cadence/internal/server"
	"github.com/kode4food/cadence/internal/store"
	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/log"
)

type cadence struct {
	cfg        *config.Config
	store      *store.Store
	archive    *archive.Archive
	hub        *events.Hub
	registry   *capability.Registry
	broker     *approval.Broker
	engine     *engine.Engine
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

const persistTimeout = 10 * time.Second

var (
	ErrConnectStore     = errors.New("failed to connect to store")
	ErrOpenArchive      = errors.New("failed to open archive")
	ErrLoadCapabilities = errors.New("failed to load capabilities")
)

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &cadence{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *cadence) run() error {
	if err := s.initializeStores(); err != nil {
		return err
	}
	if err := s.initializeEngine(); err != nil {
		s.closeStores()
		return err
	}
	if err := s.startServer(); err != nil {
		s.closeStores()
		return err
	}

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *cadence) setupLogging() {
	level, ok := log.ParseLevel(s.cfg.LogLevel)
	if !ok {
		level = slog.LevelInfo
	}

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Cadence starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("redis_addr", s.cfg.Store.Addr),
		slog.Int("redis_db", s.cfg.Store.DB),
		slog.String("archive_url", s.cfg.Archive.URL),
		slog.String("capability_file", s.cfg.CapabilityFile),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *cadence) initializeStores() error {
	ctx, cancel := context.WithTimeout(
		context.Background(), persistTimeout,
	)
	defer cancel()

	s.store = store.New(s.cfg.Store)
	if err := s.store.Ping(ctx); err != nil {
		_ = s.store.Close()
		return fmt.Errorf("%w: %w", ErrConnectStore, err)
	}

	if s.cfg.Archive.URL == "" {
		return nil
	}
	a, err := archive.Open(ctx, s.cfg.Archive.URL, s.cfg.Archive.Prefix)
	if err != nil {
		_ = s.store.Close()
		return fmt.Errorf("%w: %w", ErrOpenArchive, err)
	}
	s.archive = a
	return nil
}

func (s *cadence) initializeEngine() error {
	s.registry = capability.NewRegistry()
	capability.RegisterBuiltins(s.registry)
	if err := s.loadCapabilities(); err != nil {
		return err
	}

	s.hub = events.NewHub()
	s.hub.Handle(events.FilterTypes(api.EventRunFinished), s.persistRun)
	s.hub.Start()

	s.broker = approval.NewBroker(s.cfg.ApprovalTimeout)

	eng, err := engine.New(s.cfg, engine.Dependencies{
		Registry:  s.registry,
		Approvals: s.broker.Handler(),
		Events:    s.hub,
	})
	if err != nil {
		return err
	}
	s.engine = eng
	return nil
}

func (s *cadence) loadCapabilities() error {
	if s.cfg.CapabilityFile == "" {
		return nil
	}
	specs, err := capability.LoadSpecs(s.cfg.CapabilityFile)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadCapabilities, err)
	}
	f := capability.NewFactory(client.NewHTTPClient(s.cfg.CapabilityTimeout))
	if err := f.RegisterSpecs(s.registry, specs); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadCapabilities, err)
	}
	slog.Info("Capabilities loaded",
		slog.String("file", s.cfg.CapabilityFile),
		slog.Int("count", len(specs)))
	return nil
}

func (s *cadence) persistRun(ev *api.RunEvent) error {
	if ev.Result == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(
		context.Background(), persistTimeout,
	)
	defer cancel()

	err := s.store.SaveRun(ctx, ev.Result)
	if s.archive != nil {
		err = errors.Join(err, s.archive.Put(ctx, ev.Result))
	}
	return err
}

func (s *cadence) startServer() error {
	apiServer, err := server.NewServer(server.Dependencies{
		Engine:   s.engine,
		Store:    s.store,
		Registry: s.registry,
		Broker:   s.broker,
		Hub:      s.hub,
	})
	if err != nil {
		return err
	}
	s.apiServer = apiServer

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: s.apiServer.SetupRoutes(),
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
	return nil
}

func (s *cadence) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()
	s.hub.Flush()
	s.closeStores()

	slog.Info("Server exited")
}

func (s *cadence) closeStores() {
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			slog.Error("Archive close failed", log.Error(err))
		}
	}
	if err := s.store.Close(); err != nil {
		slog.Error("Store close failed", log.Error(err))
	}
}
