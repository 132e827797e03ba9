// Package daemon ties the store, pipeline, HTTP API, and retention sweeper
// into a single lifecycle with flock-based locking to prevent multiple
// concurrent instances.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"mediabrief/internal/config"
	"mediabrief/internal/logging"
	"mediabrief/internal/maintenance"
	"mediabrief/internal/pipeline"
	"mediabrief/internal/progress"
	"mediabrief/internal/server"
	"mediabrief/internal/services/dify"
	"mediabrief/internal/store"
)

// Daemon owns the long-running services behind the HTTP API.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	server *server.Server
	sweep  *maintenance.Sweeper

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	client := dify.NewClient(cfg.Workflow.APIKey,
		dify.WithBaseURL(cfg.Workflow.BaseURL),
		dify.WithUser(cfg.Workflow.User),
		dify.WithTimeouts(cfg.Workflow.UploadTimeoutDuration(), cfg.Workflow.RunTimeoutDuration()),
		dify.WithConnectTimeout(cfg.Workflow.ConnectTimeoutDuration()),
		dify.WithStructuredField(cfg.Workflow.StructuredField),
		dify.WithFallbackFields(cfg.Workflow.FallbackFields),
		dify.WithLogger(logger),
	)
	pipe := pipeline.New(cfg, st, client, logger)
	watcher := progress.NewWatcher(st, cfg, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "mediabriefd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		server:   server.New(cfg, st, pipe, watcher, logger),
		sweep:    maintenance.New(cfg, st, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and brings up the API server and sweeper.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediabrief daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	go d.sweep.Run(runCtx)

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.Addr()),
		logging.String("store", d.store.Path()),
		logging.Bool("cleanup", d.cfg.Cleanup.Enabled),
	)
	return nil
}

// Addr returns the bound API address, empty before Start.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// Stop shuts down background services and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}
