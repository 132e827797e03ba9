package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	UploadDir string `toml:"upload_dir"`
	ReportDir string `toml:"report_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
}

// Workflow contains configuration for the external classification service.
type Workflow struct {
	APIKey          string   `toml:"api_key"`
	BaseURL         string   `toml:"base_url"`
	User            string   `toml:"user"`
	UploadTimeout   int      `toml:"upload_timeout"`
	RunTimeout      int      `toml:"run_timeout"`
	ConnectTimeout  int      `toml:"connect_timeout"`
	StructuredField string   `toml:"structured_field"`
	FallbackFields  []string `toml:"fallback_fields"`
}

// UploadTimeoutDuration returns the artifact upload timeout.
func (w Workflow) UploadTimeoutDuration() time.Duration {
	return time.Duration(w.UploadTimeout) * time.Second
}

// RunTimeoutDuration returns the end-to-end workflow run timeout.
func (w Workflow) RunTimeoutDuration() time.Duration {
	return time.Duration(w.RunTimeout) * time.Second
}

// ConnectTimeoutDuration returns the TCP connect timeout for workflow calls.
func (w Workflow) ConnectTimeoutDuration() time.Duration {
	return time.Duration(w.ConnectTimeout) * time.Second
}

// ExpandPath expands a leading ~ in path and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// Ingest contains configuration for tabular file parsing and dedup.
type Ingest struct {
	MaxFileSizeMiB int `toml:"max_file_size_mib"`
	TopDuplicates  int `toml:"top_duplicates"`
}

// Progress contains configuration for the progress channel poll loop.
type Progress struct {
	PollIntervalMillis int `toml:"poll_interval_millis"`
	MaxPolls           int `toml:"max_polls"`
}

// Cleanup contains configuration for the retention sweeper.
type Cleanup struct {
	Enabled        bool `toml:"enabled"`
	RetentionHours int  `toml:"retention_hours"`
	IntervalHours  int  `toml:"interval_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mediabrief.
//
// Configuration sections by subsystem:
//   - Paths: data/upload/report/log directories and API bind address
//   - Workflow: external classification service connection and timeouts
//   - Ingest: tabular parsing limits and dedupe diagnostics
//   - Progress: progress channel polling cadence and budget
//   - Cleanup: retention sweep for aged uploads and reports
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Workflow Workflow `toml:"workflow"`
	Ingest   Ingest   `toml:"ingest"`
	Progress Progress `toml:"progress"`
	Cleanup  Cleanup  `toml:"cleanup"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediabrief/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. When no file exists at
// the resolved location, defaults are returned and exists is false.
func Load(path string) (cfg *Config, resolvedPath string, exists bool, err error) {
	value := Default()

	resolvedPath, exists, err = resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, openErr := os.Open(resolvedPath)
		if openErr != nil {
			return nil, "", false, fmt.Errorf("open config: %w", openErr)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if decodeErr := decoder.Decode(&value); decodeErr != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", decodeErr)
		}
	}

	if err = value.normalize(); err != nil {
		return nil, "", false, err
	}
	if err = value.Validate(); err != nil {
		return nil, "", false, err
	}
	return &value, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path. Unless
// overwrite is set it refuses to replace an existing file.
func WriteSample(path string, overwrite bool) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(expanded); err == nil {
			return fmt.Errorf("config file already exists at %s", expanded)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat config: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates all configured directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.UploadDir, c.Paths.ReportDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}
