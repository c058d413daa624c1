// Package daemon composes the Nexus Ops services and enforces
// single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"nexusops/internal/api"
	"nexusops/internal/config"
	"nexusops/internal/logging"
	"nexusops/internal/pipeline"
	"nexusops/internal/scout"
	"nexusops/internal/services/gemini"
	"nexusops/internal/store"
)

// Daemon owns the store, both workflows, and the observer API server.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	runner *pipeline.Runner
	scout  *scout.Scout
	server *http.Server

	lockPath string
	lock     *flock.Flock

	addr     string
	running  atomic.Bool
	cancel   context.CancelFunc
	serveErr chan error
}

// New builds the full service graph from configuration. The store is opened
// and seeded here; the HTTP listener is not bound until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Seed(context.Background(), st); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("seed store: %w", err)
	}

	client := gemini.NewClient(cfg.Gemini)

	workflowFeed := logging.NewFeed(cfg.Workflow.FeedLines)
	scoutFeed := logging.NewFeed(cfg.Scout.FeedLines)

	runner := pipeline.NewRunner(st, client, workflowFeed, logger.With(logging.String("component", "pipeline")))
	sc := scout.New(st, client, scoutFeed, workflowFeed,
		logger.With(logging.String("component", "scout")),
		scout.WithNarration(scout.Narration{
			Steps:     cfg.Scout.NarrationSteps,
			StepDelay: time.Duration(cfg.Scout.StepDelayMS) * time.Millisecond,
		}),
	)

	apiServer := api.NewServer(st, runner, sc, client, logger.With(logging.String("component", "api")))

	lockPath := filepath.Join(cfg.Paths.LogDir, "nexusops.lock")
	return &Daemon{
		cfg:    cfg,
		logger: logger,
		store:  st,
		runner: runner,
		scout:  sc,
		server: &http.Server{
			Addr:              cfg.Paths.APIBind,
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and begins serving the observer API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another nexusops instance is already running")
	}

	listener, err := net.Listen("tcp", d.server.Addr)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("bind api address: %w", err)
	}

	d.addr = listener.Addr().String()
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.serveErr = make(chan error, 1)
	go func() {
		err := d.server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		d.serveErr <- err
		close(d.serveErr)
	}()

	go func() {
		<-runCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = d.server.Shutdown(shutdownCtx)
	}()

	d.running.Store(true)
	d.logger.Info("nexusops daemon started",
		logging.String("bind", listener.Addr().String()),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Wait blocks until the API server exits and returns its terminal error.
func (d *Daemon) Wait() error {
	if d.serveErr == nil {
		return nil
	}
	return <-d.serveErr
}

// Stop shuts the API server down and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.serveErr != nil {
		<-d.serveErr
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("nexusops daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the bound API address once Start has succeeded, falling back
// to the configured bind address.
func (d *Daemon) Addr() string {
	if d.addr != "" {
		return d.addr
	}
	return d.server.Addr
}

// Store exposes the work item store for CLI inspection commands.
func (d *Daemon) Store() *store.Store {
	return d.store
}
