package testsupport

import (
	"context"
	"testing"

	"mediabrief/internal/config"
	"mediabrief/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewUpload creates an upload record for tests using the provided store.
func NewUpload(t testing.TB, st *store.Store, filename string) *store.Upload {
	t.Helper()

	upload, err := st.CreateUpload(context.Background(), filename, "/tmp/"+filename, 128)
	if err != nil {
		t.Fatalf("store.CreateUpload: %v", err)
	}
	return upload
}

// NewJob creates a processing job for the given upload.
func NewJob(t testing.TB, st *store.Store, uploadID int64) *store.Job {
	t.Helper()

	job, err := st.CreateJob(context.Background(), uploadID)
	if err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return job
}
