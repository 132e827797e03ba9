package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateCleanup(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.UploadDir == "" {
		return errors.New("paths.upload_dir must be set")
	}
	if c.Paths.ReportDir == "" {
		return errors.New("paths.report_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/mediabrief/config.toml"
		}
		return fmt.Errorf("workflow.api_key is required. Edit %s (create with 'mediabrief config init')", defaultPath)
	}
	if c.Workflow.BaseURL == "" {
		return errors.New("workflow.base_url must be set")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.MaxFileSizeMiB <= 0 {
		return errors.New("ingest.max_file_size_mib must be positive")
	}
	return nil
}

func (c *Config) validateCleanup() error {
	if !c.Cleanup.Enabled {
		return nil
	}
	if c.Cleanup.RetentionHours <= 0 {
		return errors.New("cleanup.retention_hours must be positive when cleanup is enabled")
	}
	if c.Cleanup.IntervalHours <= 0 {
		return errors.New("cleanup.interval_hours must be positive when cleanup is enabled")
	}
	return nil
}
