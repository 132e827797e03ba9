package dify

import (
	"encoding/json"
	"fmt"
	"strings"

	"mediabrief/internal/services"
	"mediabrief/internal/textutil"
)

// Error categories, ordered from most to least specific.
const (
	CategoryQuota     = "quota"
	CategoryAuth      = "auth"
	CategoryTransient = "transient"
	CategoryUnknown   = "unknown"
)

const excerptLimit = 200

// ClassifiedError is a workflow failure folded into a small taxonomy with a
// human-actionable message. Excerpt carries bounded raw detail for logs.
type ClassifiedError struct {
	Category string
	Message  string
	Excerpt  string
}

func (e *ClassifiedError) Error() string {
	if e.Excerpt != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Category, e.Message, e.Excerpt)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap ties the category to the matching sentinel so errors.Is works
// across package boundaries.
func (e *ClassifiedError) Unwrap() error {
	return e.marker()
}

func (e *ClassifiedError) marker() error {
	switch e.Category {
	case CategoryQuota:
		return services.ErrQuota
	case CategoryAuth:
		return services.ErrAuth
	case CategoryTransient:
		return services.ErrTransient
	default:
		return nil
	}
}

// wrapClassified attaches stage context while keeping the classified error
// in the chain. Unknown-category errors carry no sentinel so they stay
// unknown under services.Category.
func wrapClassified(classified *ClassifiedError, operation string) error {
	if marker := classified.marker(); marker != nil {
		return services.Wrap(marker, "workflow", operation, classified.Message, classified)
	}
	return fmt.Errorf("workflow: %s: %s: %w", operation, classified.Message, classified)
}

type pluginError struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// Classify folds a raw workflow error message into the category taxonomy.
// Nested plugin errors are unwrapped first so the inner cause drives the
// category rather than the wrapper text.
func Classify(message string) *ClassifiedError {
	message = strings.TrimSpace(message)
	if message == "" {
		return &ClassifiedError{Category: CategoryUnknown, Message: "workflow reported an unspecified error"}
	}

	if strings.Contains(message, "PluginInvokeError") {
		if nested := classifyPluginError(message); nested != nil {
			return nested
		}
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(message, "429") || strings.Contains(message, "RESOURCE_EXHAUSTED"):
		return classifyQuota(message)
	case strings.Contains(message, "401") || strings.Contains(lower, "unauthorized"):
		return &ClassifiedError{
			Category: CategoryAuth,
			Message:  "authentication failed; check the workflow API key configuration",
			Excerpt:  textutil.Truncate(message, excerptLimit),
		}
	case strings.Contains(message, "403") || strings.Contains(lower, "forbidden"):
		return &ClassifiedError{
			Category: CategoryAuth,
			Message:  "access denied; the API key lacks permission or is invalid",
			Excerpt:  textutil.Truncate(message, excerptLimit),
		}
	case strings.Contains(message, "500") || strings.Contains(lower, "internal server error"):
		return &ClassifiedError{
			Category: CategoryTransient,
			Message:  "the workflow service reported an internal error; retry later",
			Excerpt:  textutil.Truncate(message, excerptLimit),
		}
	case strings.Contains(message, "502") || strings.Contains(message, "503") ||
		strings.Contains(message, "504") || strings.Contains(lower, "gateway"):
		return &ClassifiedError{
			Category: CategoryTransient,
			Message:  "the workflow service is temporarily unavailable; retry later",
			Excerpt:  textutil.Truncate(message, excerptLimit),
		}
	case strings.Contains(lower, "timeout"):
		return &ClassifiedError{
			Category: CategoryTransient,
			Message:  "the request timed out; the batch may be too large or the connection unstable",
			Excerpt:  textutil.Truncate(message, excerptLimit),
		}
	case strings.Contains(lower, "connection"):
		return &ClassifiedError{
			Category: CategoryTransient,
			Message:  "could not reach the workflow service; check network connectivity",
			Excerpt:  textutil.Truncate(message, excerptLimit),
		}
	}

	return &ClassifiedError{
		Category: CategoryUnknown,
		Message:  "workflow error",
		Excerpt:  textutil.Truncate(message, excerptLimit),
	}
}

// ClassifyHTTP folds a non-2xx response into the taxonomy. JSON bodies are
// mined for a nested error message first so the message-level classifier can
// run; otherwise the status code keys a generic message.
func ClassifyHTTP(status int, body string) *ClassifiedError {
	if extracted := extractErrorMessage(body); extracted != "" {
		classified := Classify(extracted)
		if classified.Category != CategoryUnknown {
			return classified
		}
	}

	switch status {
	case 400:
		return &ClassifiedError{
			Category: CategoryUnknown,
			Message:  "the workflow service rejected the request (400)",
			Excerpt:  textutil.Truncate(body, excerptLimit),
		}
	case 401:
		return &ClassifiedError{Category: CategoryAuth, Message: "authentication failed (401); check the workflow API key configuration"}
	case 403:
		return &ClassifiedError{Category: CategoryAuth, Message: "access denied (403); the API key lacks permission or is invalid"}
	case 429:
		return &ClassifiedError{Category: CategoryQuota, Message: "request rate limited (429); wait before retrying"}
	case 500:
		return &ClassifiedError{Category: CategoryTransient, Message: "workflow service internal error (500); retry later"}
	case 502:
		return &ClassifiedError{Category: CategoryTransient, Message: "workflow service gateway error (502); service temporarily unavailable"}
	case 503:
		return &ClassifiedError{Category: CategoryTransient, Message: "workflow service unavailable (503); likely under maintenance"}
	case 504:
		return &ClassifiedError{Category: CategoryTransient, Message: "workflow service timed out (504); processing took too long"}
	default:
		return &ClassifiedError{
			Category: CategoryUnknown,
			Message:  fmt.Sprintf("workflow service returned HTTP %d", status),
			Excerpt:  textutil.Truncate(body, excerptLimit),
		}
	}
}

// classifyPluginError digs the JSON object out of a PluginInvokeError wrapper
// and reclassifies its inner message. Returns nil when no parseable object is
// found, letting the outer text fall through to the pattern checks.
func classifyPluginError(message string) *ClassifiedError {
	const prefix = "PluginInvokeError: {"
	start := strings.Index(message, prefix)
	if start < 0 {
		return nil
	}
	jsonPart := message[start+len(prefix)-1:]
	object := balancedObject(jsonPart)
	if object == "" {
		return nil
	}

	var parsed pluginError
	if err := json.Unmarshal([]byte(object), &parsed); err != nil {
		return nil
	}
	inner := Classify(parsed.Message)
	if inner.Category != CategoryUnknown {
		return inner
	}
	return &ClassifiedError{
		Category: CategoryUnknown,
		Message:  fmt.Sprintf("plugin error (%s)", parsed.ErrorType),
		Excerpt:  textutil.Truncate(parsed.Message, excerptLimit),
	}
}

// balancedObject returns the prefix of s spanning one balanced {...} object,
// or "" when braces never balance (the message was truncated in transit).
func balancedObject(s string) string {
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

func classifyQuota(message string) *ClassifiedError {
	excerpt := textutil.Truncate(message, excerptLimit)
	if strings.Contains(message, "GenerateContentInputTokensPerModelPerMinute-FreeTier") {
		return &ClassifiedError{
			Category: CategoryQuota,
			Message: "upstream model free-tier quota exhausted (per-minute token limit); " +
				"wait a minute and retry, reduce the batch size, or upgrade the plan",
			Excerpt: excerpt,
		}
	}
	if strings.Contains(message, "RESOURCE_EXHAUSTED") || strings.Contains(strings.ToLower(message), "quota") {
		return &ClassifiedError{
			Category: CategoryQuota,
			Message:  "upstream API quota exhausted; wait for the quota to reset or upgrade the plan",
			Excerpt:  excerpt,
		}
	}
	return &ClassifiedError{
		Category: CategoryQuota,
		Message:  "request rate too high (429); wait a few minutes and retry, or reduce the batch size",
		Excerpt:  excerpt,
	}
}

// extractErrorMessage pulls a human message out of common JSON error body
// shapes: {data:{error}}, {message}, {error: "..."} and {error:{message}}.
func extractErrorMessage(body string) string {
	body = strings.TrimSpace(body)
	if body == "" || !strings.HasPrefix(body, "{") {
		return ""
	}
	var envelope struct {
		Data *struct {
			Error string `json:"error"`
		} `json:"data"`
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return ""
	}
	if envelope.Data != nil && envelope.Data.Error != "" {
		return envelope.Data.Error
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	if len(envelope.Error) > 0 {
		var asString string
		if err := json.Unmarshal(envelope.Error, &asString); err == nil {
			return asString
		}
		var asObject struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &asObject); err == nil {
			return asObject.Message
		}
	}
	return ""
}
