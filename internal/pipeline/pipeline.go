// Package pipeline drives one upload through the fixed processing stages:
// upload, clean, dedupe, workflow, report. Results are observed through the
// store; the caller only gets an error back for logging.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mediabrief/internal/config"
	"mediabrief/internal/ingest"
	"mediabrief/internal/logging"
	"mediabrief/internal/report"
	"mediabrief/internal/services"
	"mediabrief/internal/services/dify"
	"mediabrief/internal/store"
)

// Pipeline orchestrates the stage sequence for uploads.
type Pipeline struct {
	cfg    *config.Config
	store  *store.Store
	client *dify.Client
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a pipeline. A nil logger disables logging.
func New(cfg *config.Config, st *store.Store, client *dify.Client, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:    cfg,
		store:  st,
		client: client,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		now:    time.Now,
	}
}

// Run processes a single upload end to end. The job must exist and be in
// processing state; stage failures are persisted as the terminal failed
// status and returned for logging. There is no automatic retry — a retry is
// a new upload.
func (p *Pipeline) Run(ctx context.Context, jobID, uploadID int64, inputPath string) error {
	ctx = services.WithJobID(services.WithUploadID(ctx, uploadID), jobID)
	logger := logging.WithContext(ctx, p.logger)

	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "pipeline", "run", fmt.Sprintf("job %d not found", jobID), nil)
	}

	artifactPath := filepath.Join(p.cfg.Paths.UploadDir, fmt.Sprintf("deduped_%d.csv", uploadID))
	defer p.removeArtifact(ctx, artifactPath)

	if err := p.process(ctx, logger, job, uploadID, inputPath, artifactPath); err != nil {
		p.fail(ctx, logger, job, uploadID, err)
		return err
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, logger *slog.Logger, job *store.Job, uploadID int64, inputPath, artifactPath string) error {
	upload, err := p.store.GetUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if upload == nil {
		return services.Wrap(services.ErrNotFound, "pipeline", "run", fmt.Sprintf("upload %d not found", uploadID), nil)
	}
	upload.Status = store.UploadStatusProcessing
	if err := p.store.UpdateUpload(ctx, upload); err != nil {
		return err
	}

	// Stage: upload. The file is already on disk; this stage just confirms it.
	if err := p.checkpoint(ctx, job, store.StageUpload, 5, "file received"); err != nil {
		return err
	}
	if _, err := os.Stat(inputPath); err != nil {
		return services.Wrap(services.ErrValidation, "upload", "stat", "uploaded file missing", err)
	}
	if err := p.checkpoint(ctx, job, store.StageUpload, 10, "file verified"); err != nil {
		return err
	}

	// Stage: clean.
	if err := p.checkpoint(ctx, job, store.StageClean, 20, "extracting required columns"); err != nil {
		return err
	}
	header, records, err := ingest.ReadFile(inputPath)
	if err != nil {
		return err
	}
	rows, err := ingest.Clean(header, records)
	if err != nil {
		return err
	}
	upload.TotalRows = len(rows)
	if err := p.store.UpdateUpload(ctx, upload); err != nil {
		return err
	}
	logger.InfoContext(ctx, "clean complete", logging.Int("rows", len(rows)))
	if err := p.checkpoint(ctx, job, store.StageClean, 30, fmt.Sprintf("cleaned %d rows", len(rows))); err != nil {
		return err
	}

	// Stage: dedupe.
	if err := p.checkpoint(ctx, job, store.StageDedupe, 40, "deduplicating by hit sentence"); err != nil {
		return err
	}
	deduped := ingest.Dedupe(rows, p.cfg.Ingest.TopDuplicates)
	upload.KeptRows = deduped.Kept
	upload.RemovedRows = deduped.Removed
	if err := p.store.UpdateUpload(ctx, upload); err != nil {
		return err
	}
	if err := ingest.WriteArtifact(artifactPath, deduped.Rows); err != nil {
		return err
	}
	logger.InfoContext(ctx, "dedupe complete",
		logging.Int("input", deduped.Input),
		logging.Int("kept", deduped.Kept),
		logging.Int("removed", deduped.Removed),
		logging.Int("empty_keys", deduped.EmptyKey),
	)
	if len(deduped.TopDuplicates) > 0 {
		logger.DebugContext(ctx, "most repeated hit sentences",
			logging.Any("top", deduped.TopDuplicates),
		)
	}
	if err := p.checkpoint(ctx, job, store.StageDedupe, 50,
		fmt.Sprintf("kept %d of %d rows", deduped.Kept, deduped.Input)); err != nil {
		return err
	}

	// Stage: workflow.
	if err := p.checkpoint(ctx, job, store.StageWorkflow, 60, "submitting batch for classification"); err != nil {
		return err
	}
	fileID, err := p.client.UploadArtifact(ctx, artifactPath, filepath.Base(artifactPath))
	if err != nil {
		return err
	}
	result, err := p.client.RunWorkflow(ctx, fileID)
	if err != nil {
		return err
	}
	if err := p.checkpoint(ctx, job, store.StageWorkflow, 80, "classification complete"); err != nil {
		return err
	}

	// Stage: report.
	if err := p.checkpoint(ctx, job, store.StageReport, 90, "rendering briefing"); err != nil {
		return err
	}
	languages := make([]string, 0, len(deduped.Rows))
	for _, row := range deduped.Rows {
		languages = append(languages, row.Language)
	}
	inside, outside := report.CountByLanguage(languages)
	day := p.now()
	reportPath := filepath.Join(p.cfg.Paths.ReportDir, report.Filename(day))
	if err := report.Render(reportPath, report.Build(result, inside, outside, day)); err != nil {
		return err
	}

	upload.Status = store.UploadStatusCompleted
	upload.ReportPath = reportPath
	upload.DomesticRows = inside
	upload.ForeignRows = outside
	if err := p.store.UpdateUpload(ctx, upload); err != nil {
		return err
	}

	job.Stage = store.StageReport
	job.Status = store.StatusCompleted
	job.Progress = 100
	job.Message = "briefing generated"
	job.ErrorMessage = ""
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	logger.InfoContext(ctx, "pipeline complete", logging.String("report", reportPath))
	return nil
}

// checkpoint persists the current stage, progress, and message while the job
// is still processing.
func (p *Pipeline) checkpoint(ctx context.Context, job *store.Job, stage store.Stage, progress float64, message string) error {
	if stage.Index() < job.Stage.Index() {
		return services.Wrap(services.ErrValidation, "pipeline", "checkpoint",
			fmt.Sprintf("stage %s cannot follow %s", stage, job.Stage), nil)
	}
	p.logger.DebugContext(ctx, "stage checkpoint",
		logging.String(logging.FieldStage, string(stage)),
		logging.Float64("progress", progress),
	)
	job.Stage = stage
	job.Status = store.StatusProcessing
	job.Progress = progress
	job.Message = message
	return p.store.UpdateJob(ctx, job)
}

// fail records the terminal failed status at the stage that was running when
// the error surfaced. Failures while persisting the failure are only logged.
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, job *store.Job, uploadID int64, cause error) {
	logger.ErrorContext(ctx, "pipeline failed",
		logging.String(logging.FieldStage, string(job.Stage)),
		logging.String("category", services.Category(cause)),
		logging.Error(cause),
	)

	job.Status = store.StatusFailed
	job.ErrorMessage = cause.Error()
	if err := p.store.UpdateJob(ctx, job); err != nil {
		logger.ErrorContext(ctx, "persist job failure", logging.Error(err))
	}

	upload, err := p.store.GetUpload(ctx, uploadID)
	if err != nil || upload == nil {
		if err != nil {
			logger.ErrorContext(ctx, "load upload for failure", logging.Error(err))
		}
		return
	}
	upload.Status = store.UploadStatusFailed
	upload.ErrorMessage = cause.Error()
	if err := p.store.UpdateUpload(ctx, upload); err != nil {
		logger.ErrorContext(ctx, "persist upload failure", logging.Error(err))
	}
}

// removeArtifact cleans up the deduplicated temp file. Best effort: a
// leftover artifact must never mask the pipeline outcome.
func (p *Pipeline) removeArtifact(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.WarnContext(ctx, "remove temp artifact", logging.String("path", path), logging.Error(err))
	}
}
