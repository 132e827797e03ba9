package dify_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediabrief/internal/services"
	"mediabrief/internal/services/dify"
	"mediabrief/internal/testsupport"
)

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deduped.csv")
	testsupport.WriteFile(t, path, []byte("URL,命中句子\nhttps://a.example,句子\n"))
	return path
}

func TestUploadArtifactReturnsFileID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			file.Close()
			if header.Filename != "deduped.csv" {
				t.Errorf("unexpected filename %q", header.Filename)
			}
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"file-123"}`))
	}))
	defer server.Close()

	client := dify.NewClient("key", dify.WithBaseURL(server.URL))
	fileID, err := client.UploadArtifact(context.Background(), writeArtifact(t), "deduped.csv")
	if err != nil {
		t.Fatalf("UploadArtifact failed: %v", err)
	}
	if fileID != "file-123" {
		t.Fatalf("unexpected file id %q", fileID)
	}
}

func TestUploadArtifactWithConnectTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"file-456"}`))
	}))
	defer server.Close()

	client := dify.NewClient("key",
		dify.WithBaseURL(server.URL),
		dify.WithTimeouts(5*time.Second, 10*time.Second),
		dify.WithConnectTimeout(2*time.Second),
	)
	fileID, err := client.UploadArtifact(context.Background(), writeArtifact(t), "deduped.csv")
	if err != nil {
		t.Fatalf("UploadArtifact failed: %v", err)
	}
	if fileID != "file-456" {
		t.Fatalf("unexpected file id %q", fileID)
	}
}

func TestUploadArtifactClassifiesQuotaResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"429 RESOURCE_EXHAUSTED"}`))
	}))
	defer server.Close()

	client := dify.NewClient("key", dify.WithBaseURL(server.URL))
	_, err := client.UploadArtifact(context.Background(), writeArtifact(t), "deduped.csv")
	if err == nil {
		t.Fatal("expected upload error")
	}
	if !errors.Is(err, services.ErrUpload) {
		t.Fatalf("expected upload marker, got %v", err)
	}
	if !errors.Is(err, services.ErrQuota) {
		t.Fatalf("expected quota marker in chain, got %v", err)
	}
}

func TestUploadArtifactMissingFile(t *testing.T) {
	client := dify.NewClient("key", dify.WithBaseURL("http://127.0.0.1:0"))
	_, err := client.UploadArtifact(context.Background(), "/nonexistent/file.csv", "file.csv")
	if !errors.Is(err, services.ErrUpload) {
		t.Fatalf("expected upload marker, got %v", err)
	}
}

const successStream = `data: {"event":"node_started","data":{"title":"文档提取"}}

data: {"event":"node_finished","data":{"title":"文档提取"}}

data: {"event":"node_started","data":{"title":"LLM 分析"}}

data: {"event":"node_finished","data":{"title":"LLM 分析"}}

data: {"event":"workflow_finished","data":{"status":"succeeded","outputs":{"structured_output":{"domestic_sources":[{"title":"境内标题","content":"境内内容","links":["https://a.example"]}],"foreign_sources":[{"title":"foreign title","content":"foreign content"}]}}}}
`

func streamServer(t *testing.T, body string, chunkSize int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workflows/run" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer is not a flusher")
		}
		raw := []byte(body)
		for offset := 0; offset < len(raw); offset += chunkSize {
			end := offset + chunkSize
			if end > len(raw) {
				end = len(raw)
			}
			w.Write(raw[offset:end])
			flusher.Flush()
		}
	}))
}

func TestRunWorkflowExtractsStructuredOutput(t *testing.T) {
	// A 7-byte chunk size guarantees multi-byte characters split across reads.
	server := streamServer(t, successStream, 7)
	defer server.Close()

	client := dify.NewClient("key", dify.WithBaseURL(server.URL))
	result, err := client.RunWorkflow(context.Background(), "file-123")
	if err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}
	if len(result.DomesticSources) != 1 || len(result.ForeignSources) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if result.DomesticSources[0].Title != "境内标题" {
		t.Fatalf("multi-byte title corrupted: %q", result.DomesticSources[0].Title)
	}
	if len(result.DomesticSources[0].Links) != 1 {
		t.Fatalf("links not carried: %#v", result.DomesticSources[0])
	}
}

func TestRunWorkflowFallbackStructuredField(t *testing.T) {
	body := `data: {"event":"workflow_finished","data":{"status":"succeeded","outputs":{"structured_data":{"domestic_sources":[{"title":"t","content":"c"}],"foreign_sources":[]}}}}` + "\n"
	server := streamServer(t, body, 64)
	defer server.Close()

	client := dify.NewClient("key", dify.WithBaseURL(server.URL))
	result, err := client.RunWorkflow(context.Background(), "file-123")
	if err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}
	if len(result.DomesticSources) != 1 {
		t.Fatalf("fallback field not consulted: %#v", result)
	}
}

func TestRunWorkflowDirectOutputs(t *testing.T) {
	body := `data: {"event":"workflow_finished","data":{"status":"succeeded","outputs":{"domestic_sources":[{"title":"t","content":"c"}],"foreign_sources":[{"title":"f","content":"c"}]}}}` + "\n"
	server := streamServer(t, body, 64)
	defer server.Close()

	client := dify.NewClient("key", dify.WithBaseURL(server.URL))
	result, err := client.RunWorkflow(context.Background(), "file-123")
	if err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}
	if len(result.DomesticSources) != 1 || len(result.ForeignSources) != 1 {
		t.Fatalf("direct outputs not extracted: %#v", result)
	}
}

func TestRunWorkflowFailedStatus(t *testing.T) {
	body := `data: {"event":"workflow_finished","data":{"status":"failed","error":"PluginInvokeError: {\"error_type\":\"ClientError\",\"message\":\"429 RESOURCE_EXHAUSTED: rate limited\"}"}}` + "\n"
	server := streamServer(t, body, 64)
	defer server.Close()

	client := dify.NewClient("key", dify.WithBaseURL(server.URL))
	_, err := client.RunWorkflow(context.Background(), "file-123")
	if !errors.Is(err, services.ErrQuota) {
		t.Fatalf("expected quota classification, got %v", err)
	}

	var classified *dify.ClassifiedError
	if !errors.As(err, &classified) {
		t.Fatalf("expected ClassifiedError in chain, got %v", err)
	}
	if classified.Category != dify.CategoryQuota {
		t.Fatalf("unexpected category %q", classified.Category)
	}
}

func TestRunWorkflowSkipsMalformedFrames(t *testing.T) {
	body := "data: {broken json\n\n" + successStream
	server := streamServer(t, body, 64)
	defer server.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := dify.NewClient("key", dify.WithBaseURL(server.URL), dify.WithLogger(logger))

	result, err := client.RunWorkflow(context.Background(), "file-123")
	if err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}
	if len(result.DomesticSources) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
	logged := buf.String()
	if !strings.Contains(logged, "dropped malformed stream frame") {
		t.Fatalf("expected a warning for the malformed frame, got logs: %q", logged)
	}
	if !strings.Contains(logged, "broken json") {
		t.Fatalf("expected the frame excerpt in the log, got: %q", logged)
	}
}

func TestRunWorkflowErrorEvent(t *testing.T) {
	body := `data: {"event":"error","data":{"message":"502 bad gateway"}}` + "\n"
	server := streamServer(t, body, 64)
	defer server.Close()

	client := dify.NewClient("key", dify.WithBaseURL(server.URL))
	_, err := client.RunWorkflow(context.Background(), "file-123")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient classification, got %v", err)
	}
}

func TestRunWorkflowStreamWithoutTerminalEvent(t *testing.T) {
	body := `data: {"event":"node_started","data":{"title":"LLM"}}` + "\n"
	server := streamServer(t, body, 64)
	defer server.Close()

	client := dify.NewClient("key", dify.WithBaseURL(server.URL))
	_, err := client.RunWorkflow(context.Background(), "file-123")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error for truncated stream, got %v", err)
	}
	if !strings.Contains(err.Error(), "terminal") {
		t.Fatalf("error should mention the missing terminal event: %v", err)
	}
}

func TestRunWorkflowFinalFrameWithoutNewline(t *testing.T) {
	body := `data: {"event":"workflow_finished","data":{"status":"succeeded","outputs":{"structured_output":{"domestic_sources":[],"foreign_sources":[]}}}}`
	server := streamServer(t, body, 64)
	defer server.Close()

	client := dify.NewClient("key", dify.WithBaseURL(server.URL))
	result, err := client.RunWorkflow(context.Background(), "file-123")
	if err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}
	if result == nil {
		t.Fatal("expected result from unterminated final frame")
	}
}

func TestRunWorkflowHTTPAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	defer server.Close()

	client := dify.NewClient("key", dify.WithBaseURL(server.URL))
	_, err := client.RunWorkflow(context.Background(), "file-123")
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth classification, got %v", err)
	}
}

func TestRunWorkflowRequiresAPIKey(t *testing.T) {
	client := dify.NewClient("")
	_, err := client.RunWorkflow(context.Background(), "file-123")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
