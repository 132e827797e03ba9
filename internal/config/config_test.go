package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidatesWithAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Workflow.APIKey = "app-test"
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error without api key")
	}
	if !strings.Contains(err.Error(), "workflow.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
upload_dir = "` + dir + `/uploads"
report_dir = "` + dir + `/reports"
log_dir = "` + dir + `/logs"
api_bind = "127.0.0.1:0"

[workflow]
api_key = "app-abc"
base_url = "https://workflow.example.com/v1/"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatal("expected config file to be found")
	}
	if cfg.Workflow.APIKey != "app-abc" {
		t.Fatalf("unexpected api key: %q", cfg.Workflow.APIKey)
	}
	if strings.HasSuffix(cfg.Workflow.BaseURL, "/") {
		t.Fatalf("base url should be normalized, got %q", cfg.Workflow.BaseURL)
	}
	if cfg.Progress.MaxPolls != defaultMaxPolls {
		t.Fatalf("expected default max polls, got %d", cfg.Progress.MaxPolls)
	}
}

func TestLoadMissingFileReturnsDefaultsError(t *testing.T) {
	// Defaults have no API key, so loading a nonexistent path fails validation.
	_, _, exists, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if exists {
		t.Fatal("expected exists=false")
	}
	if err == nil {
		t.Fatal("expected validation error for defaults without api key")
	}
}

func TestWriteSampleOverwriteBehavior(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path, false); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := WriteSample(path, false); err == nil {
		t.Fatal("expected error when target exists and overwrite is off")
	}
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed stale config: %v", err)
	}
	if err := WriteSample(path, true); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(data) == "stale" {
		t.Fatal("expected sample config to replace stale contents")
	}
}

func TestWorkflowTimeoutDurations(t *testing.T) {
	w := Workflow{UploadTimeout: 300, RunTimeout: 600, ConnectTimeout: 10}
	if got := w.UploadTimeoutDuration(); got != 300*time.Second {
		t.Fatalf("unexpected upload timeout %v", got)
	}
	if got := w.RunTimeoutDuration(); got != 600*time.Second {
		t.Fatalf("unexpected run timeout %v", got)
	}
	if got := w.ConnectTimeoutDuration(); got != 10*time.Second {
		t.Fatalf("unexpected connect timeout %v", got)
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := expandPath("~/x")
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	if got != filepath.Join(home, "x") {
		t.Fatalf("unexpected expansion: %q", got)
	}
}
