package testsupport

import (
	"path/filepath"
	"testing"

	"mediabrief/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Workflow.APIKey = "test"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.UploadDir = filepath.Join(base, "uploads")
	cfgVal.Paths.ReportDir = filepath.Join(base, "reports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWorkflowBaseURL points the workflow client at the provided endpoint,
// typically an httptest server.
func WithWorkflowBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.BaseURL = url
	}
}

// WithWorkflowKey sets the workflow API key on the test config.
func WithWorkflowKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.APIKey = key
	}
}

// WithMaxFileSize overrides the upload size ceiling, in MiB.
func WithMaxFileSize(mib int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.MaxFileSizeMiB = mib
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
