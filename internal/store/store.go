package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mediabrief/internal/config"
)

// Store manages upload and job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the database and verifies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "mediabrief.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// CreateUpload inserts a new upload record.
func (s *Store) CreateUpload(ctx context.Context, filename, filePath string, fileSize int64) (*Upload, error) {
	if filename == "" {
		return nil, errors.New("filename is required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO uploads (filename, file_path, file_size, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		filename,
		filePath,
		fileSize,
		UploadStatusUploaded,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetUpload(ctx, id)
}

// GetUpload fetches an upload record by identifier. Missing records return nil.
func (s *Store) GetUpload(ctx context.Context, id int64) (*Upload, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id)
	upload, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return upload, nil
}

// UpdateUpload persists changes to an existing upload record.
func (s *Store) UpdateUpload(ctx context.Context, upload *Upload) error {
	if upload == nil {
		return errors.New("upload is nil")
	}
	upload.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE uploads
         SET filename = ?, file_path = ?, file_size = ?, status = ?, error_message = ?,
             report_path = ?, total_rows = ?, kept_rows = ?, removed_rows = ?,
             domestic_rows = ?, foreign_rows = ?, updated_at = ?
         WHERE id = ?`,
		upload.Filename,
		upload.FilePath,
		upload.FileSize,
		upload.Status,
		nullableString(upload.ErrorMessage),
		nullableString(upload.ReportPath),
		upload.TotalRows,
		upload.KeptRows,
		upload.RemovedRows,
		upload.DomesticRows,
		upload.ForeignRows,
		upload.UpdatedAt.Format(time.RFC3339Nano),
		upload.ID,
	)
	if err != nil {
		return fmt.Errorf("update upload: %w", err)
	}
	return nil
}

// ListUploads returns the newest uploads first, plus the total record count.
func (s *Store) ListUploads(ctx context.Context, limit, offset int) ([]*Upload, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM uploads`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count uploads: %w", err)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+uploadColumns+` FROM uploads ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, 0, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, total, rows.Err()
}

// CreateJob inserts a new processing job for an upload, starting at the
// upload stage with zero progress.
func (s *Store) CreateJob(ctx context.Context, uploadID int64) (*Job, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (upload_id, stage, status, progress, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?)`,
		uploadID,
		StageUpload,
		StatusProcessing,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier. Missing records return nil.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// JobForUpload returns the most recent job for an upload, or nil.
func (s *Store) JobForUpload(ctx context.Context, uploadID int64) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE upload_id = ? ORDER BY id DESC LIMIT 1`,
		uploadID,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("job for upload: %w", err)
	}
	return job, nil
}

// UpdateJob persists changes to a job. Progress never moves backwards: the
// stored value wins when it exceeds the incoming one. Updates against a job
// that already reached a terminal status fail with ErrJobFinalized, so a
// terminal transition happens at most once. On success the job is refreshed
// with the stored (possibly clamped) values.
func (s *Store) UpdateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET stage = ?, status = ?,
             progress = CASE WHEN ? > progress THEN ? ELSE progress END,
             message = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		job.Stage,
		job.Status,
		job.Progress,
		job.Progress,
		nullableString(job.Message),
		nullableString(job.ErrorMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		existing, getErr := s.GetJob(ctx, job.ID)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return fmt.Errorf("job %d not found", job.ID)
		}
		return fmt.Errorf("%w: job %d is %s", ErrJobFinalized, job.ID, existing.Status)
	}

	refreshed, err := s.GetJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if refreshed != nil {
		*job = *refreshed
	}
	return nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// DeleteUpload removes an upload and (via cascade) its jobs.
func (s *Store) DeleteUpload(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete upload: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UploadsOlderThan returns uploads created before the cutoff, oldest first.
func (s *Store) UploadsOlderThan(ctx context.Context, cutoff time.Time) ([]*Upload, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+uploadColumns+` FROM uploads WHERE created_at < ? ORDER BY created_at`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("uploads older than: %w", err)
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, rows.Err()
}

const uploadColumns = "id, filename, file_path, file_size, status, error_message, report_path, total_rows, kept_rows, removed_rows, domestic_rows, foreign_rows, created_at, updated_at"

const jobColumns = "id, upload_id, stage, status, progress, message, error_message, created_at, updated_at"

func scanUpload(scanner interface{ Scan(dest ...any) error }) (*Upload, error) {
	var (
		id           int64
		filename     string
		filePath     string
		fileSize     int64
		statusStr    string
		errorMessage sql.NullString
		reportPath   sql.NullString
		totalRows    int
		keptRows     int
		removedRows  int
		domesticRows int
		foreignRows  int
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&id,
		&filename,
		&filePath,
		&fileSize,
		&statusStr,
		&errorMessage,
		&reportPath,
		&totalRows,
		&keptRows,
		&removedRows,
		&domesticRows,
		&foreignRows,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	upload := &Upload{
		ID:           id,
		Filename:     filename,
		FilePath:     filePath,
		FileSize:     fileSize,
		Status:       UploadStatus(statusStr),
		ErrorMessage: errorMessage.String,
		ReportPath:   reportPath.String,
		TotalRows:    totalRows,
		KeptRows:     keptRows,
		RemovedRows:  removedRows,
		DomesticRows: domesticRows,
		ForeignRows:  foreignRows,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		upload.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		upload.UpdatedAt = updated
	}
	return upload, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		uploadID     int64
		stageStr     string
		statusStr    string
		progress     float64
		message      sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&id,
		&uploadID,
		&stageStr,
		&statusStr,
		&progress,
		&message,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	stage, ok := ParseStage(stageStr)
	if !ok {
		return nil, fmt.Errorf("job %d has unknown stage %q", id, stageStr)
	}
	job := &Job{
		ID:           id,
		UploadID:     uploadID,
		Stage:        stage,
		Status:       Status(statusStr),
		Progress:     progress,
		Message:      message.String,
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
