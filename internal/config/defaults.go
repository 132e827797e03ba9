package config

const (
	defaultDataDir            = "~/.local/share/mediabrief"
	defaultUploadDir          = "~/.local/share/mediabrief/uploads"
	defaultReportDir          = "~/.local/share/mediabrief/reports"
	defaultLogDir             = "~/.local/share/mediabrief/logs"
	defaultAPIBind            = "127.0.0.1:8321"
	defaultWorkflowBaseURL    = "https://api.dify.ai/v1"
	defaultWorkflowUser       = "mediabrief"
	defaultUploadTimeout      = 300
	defaultRunTimeout         = 600
	defaultConnectTimeout     = 60
	defaultStructuredField    = "structured_output"
	defaultMaxFileSizeMiB     = 64
	defaultTopDuplicates      = 5
	defaultPollIntervalMillis = 1000
	defaultMaxPolls           = 300
	defaultRetentionHours     = 72
	defaultCleanupInterval    = 6
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

func defaultFallbackFields() []string {
	return []string{"structured_data", "parsed_output", "analysis_result", "classification"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			UploadDir: defaultUploadDir,
			ReportDir: defaultReportDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Workflow: Workflow{
			BaseURL:         defaultWorkflowBaseURL,
			User:            defaultWorkflowUser,
			UploadTimeout:   defaultUploadTimeout,
			RunTimeout:      defaultRunTimeout,
			ConnectTimeout:  defaultConnectTimeout,
			StructuredField: defaultStructuredField,
			FallbackFields:  defaultFallbackFields(),
		},
		Ingest: Ingest{
			MaxFileSizeMiB: defaultMaxFileSizeMiB,
			TopDuplicates:  defaultTopDuplicates,
		},
		Progress: Progress{
			PollIntervalMillis: defaultPollIntervalMillis,
			MaxPolls:           defaultMaxPolls,
		},
		Cleanup: Cleanup{
			Enabled:        true,
			RetentionHours: defaultRetentionHours,
			IntervalHours:  defaultCleanupInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
