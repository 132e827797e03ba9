// Package maintenance removes aged uploads and their artifacts on a
// schedule so the data directory does not grow without bound.
package maintenance

import (
	"context"
	"log/slog"
	"os"
	"time"

	"mediabrief/internal/config"
	"mediabrief/internal/logging"
	"mediabrief/internal/store"
)

// Sweeper deletes uploads, reports, and their database records once they
// fall outside the retention window.
type Sweeper struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a sweeper. A nil logger disables logging.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "maintenance"),
		now:    time.Now,
	}
}

// Run sweeps once immediately and then on the configured interval until the
// context is cancelled. Does nothing when cleanup is disabled.
func (s *Sweeper) Run(ctx context.Context) {
	if !s.cfg.Cleanup.Enabled {
		return
	}
	interval := time.Duration(s.cfg.Cleanup.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	s.logger.InfoContext(ctx, "retention sweeper running", logging.Duration("interval", interval))
	s.sweep(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Sweep removes everything past the retention cutoff and reports how many
// uploads were deleted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	retention := time.Duration(s.cfg.Cleanup.RetentionHours) * time.Hour
	cutoff := s.now().Add(-retention)

	uploads, err := s.store.UploadsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, upload := range uploads {
		s.removeFile(upload.FilePath)
		s.removeFile(upload.ReportPath)
		deleted, err := s.store.DeleteUpload(ctx, upload.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "delete upload record",
				logging.Int64(logging.FieldUploadID, upload.ID),
				logging.Error(err),
			)
			continue
		}
		if deleted {
			removed++
		}
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "retention sweep complete",
			logging.Int("removed", removed),
			logging.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
		)
	}
	return removed, nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.ErrorContext(ctx, "retention sweep failed", logging.Error(err))
	}
}

func (s *Sweeper) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove aged file", logging.String("path", path), logging.Error(err))
	}
}
