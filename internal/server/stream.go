package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mediabrief/internal/logging"
	"mediabrief/internal/progress"
)

// progressFrame is the wire shape shared by the SSE and websocket streams.
type progressFrame struct {
	Type         string   `json:"type"`
	ProcessingID int64    `json:"processing_id"`
	UploadID     *int64   `json:"upload_id,omitempty"`
	Stage        string   `json:"stage,omitempty"`
	Status       string   `json:"status,omitempty"`
	Progress     *float64 `json:"progress,omitempty"`
	Message      string   `json:"message,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

func frameFromEvent(jobID int64, event progress.Event) progressFrame {
	frame := progressFrame{
		Type:         string(event.Type),
		ProcessingID: jobID,
		Message:      event.Message,
	}
	if event.Job != nil {
		uploadID := event.Job.UploadID
		progressValue := event.Job.Progress
		frame.UploadID = &uploadID
		frame.Stage = string(event.Job.Stage)
		frame.Status = string(event.Job.Status)
		frame.Progress = &progressValue
		frame.Message = event.Job.Message
		frame.ErrorMessage = event.Job.ErrorMessage
		frame.UpdatedAt = event.Job.UpdatedAt.Format(time.RFC3339)
	}
	return frame
}

func (s *Server) handleProgressSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID, ok := s.pathID(w, r, "/api/progress/")
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for event := range s.watcher.Subscribe(ctx, jobID) {
		payload, err := json.Marshal(frameFromEvent(jobID, event))
		if err != nil {
			s.logger.Error("encode progress frame", logging.Error(err))
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathID(w, r, "/api/progress/ws/")
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", logging.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reads only serve to detect the peer closing early.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for event := range s.watcher.Subscribe(ctx, jobID) {
		if err := conn.WriteJSON(frameFromEvent(jobID, event)); err != nil {
			return
		}
	}
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}
