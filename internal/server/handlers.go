package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediabrief/internal/logging"
	"mediabrief/internal/services"
	"mediabrief/internal/store"
	"mediabrief/internal/textutil"
)

var allowedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

type uploadResponse struct {
	UploadID     int64  `json:"upload_id"`
	ProcessingID int64  `json:"processing_id"`
	Message      string `json:"message"`
}

type jobResponse struct {
	ProcessingID int64   `json:"processing_id"`
	UploadID     int64   `json:"upload_id"`
	Stage        string  `json:"stage"`
	Status       string  `json:"status"`
	Progress     float64 `json:"progress"`
	Message      string  `json:"message,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type uploadRecord struct {
	UploadID     int64  `json:"upload_id"`
	Filename     string `json:"filename"`
	FileSize     int64  `json:"file_size"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	TotalRows    int    `json:"total_rows"`
	KeptRows     int    `json:"kept_rows"`
	RemovedRows  int    `json:"removed_rows"`
	DomesticRows int    `json:"domestic_rows"`
	ForeignRows  int    `json:"foreign_rows"`
	HasReport    bool   `json:"has_report"`
	CreatedAt    string `json:"created_at"`
}

func jobToResponse(job *store.Job) jobResponse {
	return jobResponse{
		ProcessingID: job.ID,
		UploadID:     job.UploadID,
		Stage:        string(job.Stage),
		Status:       string(job.Status),
		Progress:     job.Progress,
		Message:      job.Message,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}
}

func uploadToRecord(upload *store.Upload) uploadRecord {
	return uploadRecord{
		UploadID:     upload.ID,
		Filename:     upload.Filename,
		FileSize:     upload.FileSize,
		Status:       string(upload.Status),
		ErrorMessage: upload.ErrorMessage,
		TotalRows:    upload.TotalRows,
		KeptRows:     upload.KeptRows,
		RemovedRows:  upload.RemovedRows,
		DomesticRows: upload.DomesticRows,
		ForeignRows:  upload.ForeignRows,
		HasReport:    upload.ReportPath != "",
		CreatedAt:    upload.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	maxBytes := int64(s.cfg.Ingest.MaxFileSizeMiB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	filename := textutil.SanitizeFileName(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		s.writeError(w, http.StatusBadRequest, "only .csv and .xlsx files are accepted")
		return
	}
	if header.Size > maxBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d MiB limit", s.cfg.Ingest.MaxFileSizeMiB))
		return
	}

	requestID := uuid.NewString()
	savedName := fmt.Sprintf("%s_%s", requestID[:8], filename)
	savedPath := filepath.Join(s.cfg.Paths.UploadDir, savedName)
	if err := saveMultipartFile(file, savedPath); err != nil {
		s.logger.Error("save upload", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store uploaded file")
		return
	}

	ctx := r.Context()
	upload, err := s.store.CreateUpload(ctx, filename, savedPath, header.Size)
	if err != nil {
		s.logger.Error("create upload record", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to record upload")
		return
	}
	job, err := s.store.CreateJob(ctx, upload.ID)
	if err != nil {
		s.logger.Error("create job record", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create processing job")
		return
	}

	// Fire and forget: the caller tracks the run through the progress API.
	runCtx := services.WithRequestID(context.Background(), requestID)
	go func() {
		if err := s.pipeline.Run(runCtx, job.ID, upload.ID, savedPath); err != nil {
			s.logger.Error("pipeline run",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.String(logging.FieldCorrelationID, requestID),
				logging.Error(err),
			)
		}
	}()

	s.writeJSON(w, http.StatusOK, uploadResponse{
		UploadID:     upload.ID,
		ProcessingID: job.ID,
		Message:      "file accepted; processing started",
	})
}

func saveMultipartFile(src io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Close()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID, ok := s.pathID(w, r, "/api/status/")
	if !ok {
		return
	}
	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "processing job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, jobToResponse(job))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	uploads, total, err := s.store.ListUploads(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	records := make([]uploadRecord, 0, len(uploads))
	for _, upload := range uploads {
		records = append(records, uploadToRecord(upload))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total":   total,
		"uploads": records,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	uploadID, ok := s.pathID(w, r, "/api/stats/")
	if !ok {
		return
	}
	upload, err := s.store.GetUpload(r.Context(), uploadID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if upload == nil {
		s.writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	s.writeJSON(w, http.StatusOK, uploadToRecord(upload))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	uploadID, ok := s.pathID(w, r, "/api/download/")
	if !ok {
		return
	}
	upload, err := s.store.GetUpload(r.Context(), uploadID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if upload == nil {
		s.writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	if upload.ReportPath == "" {
		s.writeError(w, http.StatusNotFound, "no report available for this upload")
		return
	}
	if _, err := os.Stat(upload.ReportPath); err != nil {
		s.writeError(w, http.StatusNotFound, "report file missing on disk")
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(upload.ReportPath)))
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	http.ServeFile(w, r, upload.ReportPath)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health, err := s.store.Health(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs": map[string]int{
			"total":      health.Total,
			"processing": health.Processing,
			"completed":  health.Completed,
			"failed":     health.Failed,
		},
	})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, prefix string) (int64, bool) {
	raw := strings.TrimPrefix(r.URL.Path, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
