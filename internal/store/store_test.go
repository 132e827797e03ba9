package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mediabrief/internal/store"
	"mediabrief/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	upload, err := st.CreateUpload(ctx, "mentions.csv", "/tmp/mentions.csv", 2048)
	if err != nil {
		t.Fatalf("CreateUpload failed: %v", err)
	}
	if upload.ID == 0 {
		t.Fatal("expected upload ID to be assigned")
	}
	if upload.Status != store.UploadStatusUploaded {
		t.Fatalf("unexpected upload status %q", upload.Status)
	}

	fetched, err := st.GetUpload(ctx, upload.ID)
	if err != nil {
		t.Fatalf("GetUpload failed: %v", err)
	}
	if fetched == nil || fetched.Filename != "mentions.csv" {
		t.Fatalf("unexpected fetched upload: %#v", fetched)
	}
}

func TestCreateUploadRequiresFilename(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	if _, err := st.CreateUpload(context.Background(), "", "/tmp/none", 0); err == nil {
		t.Fatal("expected error when filename missing")
	}
}

func TestGetUploadMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	upload, err := st.GetUpload(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetUpload failed: %v", err)
	}
	if upload != nil {
		t.Fatalf("expected nil for missing upload, got %#v", upload)
	}
}

func TestUpdateUploadPersistsCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	upload := testsupport.NewUpload(t, st, "batch.xlsx")
	upload.Status = store.UploadStatusCompleted
	upload.ReportPath = "/reports/batch.md"
	upload.TotalRows = 120
	upload.KeptRows = 100
	upload.RemovedRows = 20
	upload.DomesticRows = 60
	upload.ForeignRows = 40
	if err := st.UpdateUpload(ctx, upload); err != nil {
		t.Fatalf("UpdateUpload failed: %v", err)
	}

	fetched, err := st.GetUpload(ctx, upload.ID)
	if err != nil {
		t.Fatalf("GetUpload failed: %v", err)
	}
	if fetched.Status != store.UploadStatusCompleted {
		t.Fatalf("expected completed status, got %q", fetched.Status)
	}
	if fetched.ReportPath != "/reports/batch.md" {
		t.Fatalf("unexpected report path %q", fetched.ReportPath)
	}
	if fetched.TotalRows != 120 || fetched.KeptRows != 100 || fetched.RemovedRows != 20 {
		t.Fatalf("unexpected row counts: %#v", fetched)
	}
	if fetched.DomesticRows != 60 || fetched.ForeignRows != 40 {
		t.Fatalf("unexpected classification counts: %#v", fetched)
	}
}

func TestListUploadsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := st.CreateUpload(ctx, fmt.Sprintf("file-%d.csv", i), "/tmp/f", 1); err != nil {
			t.Fatalf("CreateUpload failed: %v", err)
		}
	}

	uploads, total, err := st.ListUploads(ctx, 3, 0)
	if err != nil {
		t.Fatalf("ListUploads failed: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(uploads) != 3 {
		t.Fatalf("expected 3 uploads, got %d", len(uploads))
	}
	if uploads[0].Filename != "file-4.csv" {
		t.Fatalf("expected newest first, got %q", uploads[0].Filename)
	}

	rest, _, err := st.ListUploads(ctx, 3, 3)
	if err != nil {
		t.Fatalf("ListUploads offset failed: %v", err)
	}
	if len(rest) != 2 || rest[1].Filename != "file-0.csv" {
		t.Fatalf("unexpected offset page: %#v", rest)
	}
}

func TestParseStage(t *testing.T) {
	stage, ok := store.ParseStage("  Workflow ")
	if !ok || stage != store.StageWorkflow {
		t.Fatalf("unexpected parse result: %q, %v", stage, ok)
	}
	if _, ok := store.ParseStage("rewind"); ok {
		t.Fatal("expected unknown stage to be rejected")
	}
	if got := store.StageClean.Index(); got != 1 {
		t.Fatalf("unexpected index for clean stage: %d", got)
	}
	if got := store.Stage("bogus").Index(); got != -1 {
		t.Fatalf("expected -1 for unknown stage, got %d", got)
	}
}

func TestJobLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	upload := testsupport.NewUpload(t, st, "mentions.csv")
	job := testsupport.NewJob(t, st, upload.ID)

	if job.Stage != store.StageUpload || job.Status != store.StatusProcessing {
		t.Fatalf("unexpected initial job state: %#v", job)
	}
	if job.Progress != 0 {
		t.Fatalf("expected zero progress, got %v", job.Progress)
	}

	job.Stage = store.StageClean
	job.Progress = 20
	job.Message = "cleaning rows"
	if err := st.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	found, err := st.JobForUpload(ctx, upload.ID)
	if err != nil {
		t.Fatalf("JobForUpload failed: %v", err)
	}
	if found == nil || found.ID != job.ID || found.Progress != 20 {
		t.Fatalf("unexpected job for upload: %#v", found)
	}
}

func TestUpdateJobClampsProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	upload := testsupport.NewUpload(t, st, "mentions.csv")
	job := testsupport.NewJob(t, st, upload.ID)

	job.Progress = 50
	if err := st.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	job.Progress = 30
	if err := st.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob with lower progress failed: %v", err)
	}
	if job.Progress != 50 {
		t.Fatalf("expected progress clamped to 50, got %v", job.Progress)
	}

	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fetched.Progress != 50 {
		t.Fatalf("expected stored progress 50, got %v", fetched.Progress)
	}
}

func TestUpdateJobRejectsFinalizedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	upload := testsupport.NewUpload(t, st, "mentions.csv")
	job := testsupport.NewJob(t, st, upload.ID)

	job.Stage = store.StageReport
	job.Status = store.StatusCompleted
	job.Progress = 100
	if err := st.UpdateJob(ctx, job); err != nil {
		t.Fatalf("terminal UpdateJob failed: %v", err)
	}

	job.Status = store.StatusFailed
	job.ErrorMessage = "late failure"
	err := st.UpdateJob(ctx, job)
	if !errors.Is(err, store.ErrJobFinalized) {
		t.Fatalf("expected ErrJobFinalized, got %v", err)
	}

	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fetched.Status != store.StatusCompleted {
		t.Fatalf("expected status to remain completed, got %q", fetched.Status)
	}
	if fetched.ErrorMessage != "" {
		t.Fatalf("expected no error message, got %q", fetched.ErrorMessage)
	}
}

func TestUpdateJobMissingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	err := st.UpdateJob(context.Background(), &store.Job{ID: 404, Status: store.StatusProcessing})
	if err == nil {
		t.Fatal("expected error for missing job")
	}
	if errors.Is(err, store.ErrJobFinalized) {
		t.Fatalf("missing job should not report finalized: %v", err)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	states := []store.Status{
		store.StatusProcessing,
		store.StatusCompleted,
		store.StatusCompleted,
		store.StatusFailed,
	}
	for i, status := range states {
		upload := testsupport.NewUpload(t, st, fmt.Sprintf("file-%d.csv", i))
		job := testsupport.NewJob(t, st, upload.ID)
		if status == store.StatusProcessing {
			continue
		}
		job.Status = status
		if err := st.UpdateJob(ctx, job); err != nil {
			t.Fatalf("UpdateJob failed: %v", err)
		}
	}

	health, err := st.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 4 || health.Processing != 1 || health.Completed != 2 || health.Failed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestDeleteUploadCascadesJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	upload := testsupport.NewUpload(t, st, "mentions.csv")
	job := testsupport.NewJob(t, st, upload.ID)

	deleted, err := st.DeleteUpload(ctx, upload.ID)
	if err != nil {
		t.Fatalf("DeleteUpload failed: %v", err)
	}
	if !deleted {
		t.Fatal("expected upload to be deleted")
	}

	gone, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if gone != nil {
		t.Fatalf("expected cascaded job deletion, got %#v", gone)
	}
}

func TestUploadsOlderThan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewUpload(t, st, "first.csv")
	second := testsupport.NewUpload(t, st, "second.csv")

	aged, err := st.UploadsOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("UploadsOlderThan failed: %v", err)
	}
	if len(aged) != 0 {
		t.Fatalf("expected no aged uploads, got %d", len(aged))
	}

	aged, err = st.UploadsOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("UploadsOlderThan failed: %v", err)
	}
	if len(aged) != 2 {
		t.Fatalf("expected both uploads past a future cutoff, got %d", len(aged))
	}
	if aged[0].ID != first.ID || aged[1].ID != second.ID {
		t.Fatalf("expected oldest first ordering: %#v", aged)
	}
}
