package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeProgress()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if c.Paths.ReportDir, err = expandPath(c.Paths.ReportDir); err != nil {
		return fmt.Errorf("paths.report_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.BaseURL = strings.TrimRight(strings.TrimSpace(c.Workflow.BaseURL), "/")
	c.Workflow.APIKey = strings.TrimSpace(c.Workflow.APIKey)
	c.Workflow.User = strings.TrimSpace(c.Workflow.User)
	if c.Workflow.User == "" {
		c.Workflow.User = defaultWorkflowUser
	}
	if c.Workflow.UploadTimeout <= 0 {
		c.Workflow.UploadTimeout = defaultUploadTimeout
	}
	if c.Workflow.RunTimeout <= 0 {
		c.Workflow.RunTimeout = defaultRunTimeout
	}
	if c.Workflow.ConnectTimeout <= 0 {
		c.Workflow.ConnectTimeout = defaultConnectTimeout
	}
	if strings.TrimSpace(c.Workflow.StructuredField) == "" {
		c.Workflow.StructuredField = defaultStructuredField
	}
	if len(c.Workflow.FallbackFields) == 0 {
		c.Workflow.FallbackFields = defaultFallbackFields()
	}
}

func (c *Config) normalizeProgress() {
	if c.Progress.PollIntervalMillis <= 0 {
		c.Progress.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Progress.MaxPolls <= 0 {
		c.Progress.MaxPolls = defaultMaxPolls
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
