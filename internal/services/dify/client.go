package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"mediabrief/internal/logging"
	"mediabrief/internal/services"
)

const (
	defaultBaseURL       = "https://api.dify.ai/v1"
	defaultUser          = "mediabrief"
	defaultUploadTimeout = 5 * time.Minute
	defaultRunTimeout    = 10 * time.Minute
)

// Client wraps the workflow service HTTP API.
type Client struct {
	apiKey          string
	baseURL         string
	user            string
	structuredField string
	fallbackFields  []string
	uploadClient    *http.Client
	runClient       *http.Client
	connectTimeout  time.Duration
	logger          *slog.Logger
}

// Option customizes the workflow client.
type Option func(*Client)

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithUser sets the user identifier sent with workflow runs.
func WithUser(user string) Option {
	return func(c *Client) {
		if strings.TrimSpace(user) != "" {
			c.user = strings.TrimSpace(user)
		}
	}
}

// WithHTTPClient overrides both upload and run HTTP clients.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.uploadClient = client
			c.runClient = client
		}
	}
}

// WithTimeouts sets distinct upload and run timeouts.
func WithTimeouts(upload, run time.Duration) Option {
	return func(c *Client) {
		if upload > 0 {
			c.uploadClient = &http.Client{Timeout: upload}
		}
		if run > 0 {
			c.runClient = &http.Client{Timeout: run}
		}
	}
}

// WithConnectTimeout bounds TCP connection establishment separately from the
// overall request timeouts.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.connectTimeout = timeout
		}
	}
}

// WithStructuredField overrides the primary outputs field holding the
// structured classification payload.
func WithStructuredField(field string) Option {
	return func(c *Client) {
		if strings.TrimSpace(field) != "" {
			c.structuredField = strings.TrimSpace(field)
		}
	}
}

// WithFallbackFields overrides the alternate outputs fields consulted when
// the primary structured field is absent.
func WithFallbackFields(fields []string) Option {
	return func(c *Client) {
		if len(fields) > 0 {
			c.fallbackFields = append([]string(nil), fields...)
		}
	}
}

// WithLogger attaches a logger for stream telemetry.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a workflow service client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:          strings.TrimSpace(apiKey),
		baseURL:         defaultBaseURL,
		user:            defaultUser,
		structuredField: "structured_output",
		fallbackFields:  []string{"structured_data", "parsed_output", "analysis_result", "classification"},
		uploadClient:    &http.Client{Timeout: defaultUploadTimeout},
		runClient:       &http.Client{Timeout: defaultRunTimeout},
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.connectTimeout > 0 {
		transport := &http.Transport{
			Proxy:       http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{Timeout: client.connectTimeout}).DialContext,
		}
		if client.uploadClient.Transport == nil {
			client.uploadClient.Transport = transport
		}
		if client.runClient.Transport == nil {
			client.runClient.Transport = transport
		}
	}
	return client
}

// UploadArtifact sends the deduplicated CSV to the service and returns the
// file identifier used to start a workflow run. No retry; the caller decides
// whether to re-submit.
func (c *Client) UploadArtifact(ctx context.Context, path, filename string) (string, error) {
	if c.apiKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "workflow", "upload", "api key required", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "workflow", "upload", "read artifact", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", "text/csv")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "workflow", "upload", "build multipart body", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", services.Wrap(services.ErrUpload, "workflow", "upload", "write multipart body", err)
	}
	if err := writer.Close(); err != nil {
		return "", services.Wrap(services.ErrUpload, "workflow", "upload", "finalize multipart body", err)
	}

	endpoint, err := url.JoinPath(c.baseURL, "/files/upload")
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "workflow", "upload", "build url", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "workflow", "upload", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "workflow", "upload", "send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "workflow", "upload", "read response", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		classified := ClassifyHTTP(resp.StatusCode, string(respBody))
		return "", services.Wrap(services.ErrUpload, "workflow", "upload", classified.Message, classified)
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &uploaded); err != nil {
		return "", services.Wrap(services.ErrUpload, "workflow", "upload", "decode response", err)
	}
	if uploaded.ID == "" {
		return "", services.Wrap(services.ErrUpload, "workflow", "upload", "response missing file id", nil)
	}
	c.logger.InfoContext(ctx, "artifact uploaded", logging.String("file_id", uploaded.ID), logging.String("filename", filename))
	return uploaded.ID, nil
}

// RunWorkflow starts a streaming workflow run for an uploaded file and
// consumes the event stream until a terminal frame arrives.
func (c *Client) RunWorkflow(ctx context.Context, fileID string) (*StructuredResult, error) {
	if c.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "run", "api key required", nil)
	}
	payload := map[string]any{
		"inputs": map[string]any{
			"raw_data": map[string]any{
				"type":            "document",
				"transfer_method": "local_file",
				"upload_file_id":  fileID,
			},
		},
		"response_mode": "streaming",
		"user":          c.user,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "workflow", "run", "encode request", err)
	}
	endpoint, err := url.JoinPath(c.baseURL, "/workflows/run")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "workflow", "run", "build url", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "workflow", "run", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.runClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "workflow", "run", "send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, wrapClassified(ClassifyHTTP(resp.StatusCode, string(respBody)), "run")
	}

	return c.consumeStream(ctx, resp.Body)
}
