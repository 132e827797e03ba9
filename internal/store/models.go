package store

import (
	"strings"
	"time"
)

// Stage identifies one step of the fixed processing pipeline.
type Stage string

const (
	StageUpload   Stage = "upload"
	StageClean    Stage = "clean"
	StageDedupe   Stage = "dedupe"
	StageWorkflow Stage = "workflow"
	StageReport   Stage = "report"
)

var stageOrder = []Stage{
	StageUpload,
	StageClean,
	StageDedupe,
	StageWorkflow,
	StageReport,
}

// Index returns the position of the stage in the pipeline, or -1 for unknown values.
func (s Stage) Index() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized.Index() < 0 {
		return "", false
	}
	return normalized, true
}

// Status represents the lifecycle of a processing job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// UploadStatus represents the lifecycle of an upload record.
type UploadStatus string

const (
	UploadStatusUploaded   UploadStatus = "uploaded"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusCompleted  UploadStatus = "completed"
	UploadStatusFailed     UploadStatus = "failed"
)

// Job represents one upload's traversal through the pipeline, persisted in SQLite.
type Job struct {
	ID           int64
	UploadID     int64
	Stage        Stage
	Status       Status
	Progress     float64
	Message      string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTerminal reports whether the job reached a final status.
func (j *Job) IsTerminal() bool {
	return j != nil && j.Status.IsTerminal()
}

// Upload is the stored record of an ingested file.
type Upload struct {
	ID           int64
	Filename     string
	FilePath     string
	FileSize     int64
	Status       UploadStatus
	ErrorMessage string
	ReportPath   string
	TotalRows    int
	KeptRows     int
	RemovedRows  int
	DomesticRows int
	ForeignRows  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Processing int
	Completed  int
	Failed     int
}
