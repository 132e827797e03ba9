package dify_test

import (
	"strings"
	"testing"

	"mediabrief/internal/services/dify"
)

func TestClassifyCategories(t *testing.T) {
	cases := []struct {
		name     string
		message  string
		category string
	}{
		{"rate limited", "HTTP 429 too many requests", dify.CategoryQuota},
		{"resource exhausted", "RESOURCE_EXHAUSTED: per-minute budget", dify.CategoryQuota},
		{"unauthorized", "request unauthorized", dify.CategoryAuth},
		{"forbidden code", "got 403 from upstream", dify.CategoryAuth},
		{"internal error", "Internal Server Error", dify.CategoryTransient},
		{"gateway", "upstream gateway unavailable", dify.CategoryTransient},
		{"timeout", "request timeout after 300s", dify.CategoryTransient},
		{"connection", "connection refused", dify.CategoryTransient},
		{"unrecognized", "the model produced garbage", dify.CategoryUnknown},
		{"empty", "", dify.CategoryUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := dify.Classify(tc.message)
			if got.Category != tc.category {
				t.Fatalf("Classify(%q) category = %q, want %q", tc.message, got.Category, tc.category)
			}
		})
	}
}

func TestClassifyPluginErrorUnwrapsNestedCause(t *testing.T) {
	message := `run failed: PluginInvokeError: {"error_type":"ClientError","message":"401 unauthorized: key rejected"}`
	got := dify.Classify(message)
	if got.Category != dify.CategoryAuth {
		t.Fatalf("expected nested auth classification, got %#v", got)
	}
}

func TestClassifyPluginErrorFreeTierQuota(t *testing.T) {
	message := `PluginInvokeError: {"error_type":"ClientError","message":"429 RESOURCE_EXHAUSTED: GenerateContentInputTokensPerModelPerMinute-FreeTier"}`
	got := dify.Classify(message)
	if got.Category != dify.CategoryQuota {
		t.Fatalf("expected quota classification, got %#v", got)
	}
	if !strings.Contains(got.Message, "reduce the batch size") {
		t.Fatalf("quota message should carry guidance, got %q", got.Message)
	}
}

func TestClassifyPluginErrorUnparseableFallsThrough(t *testing.T) {
	// Braces never balance: the wrapper was truncated in transit.
	message := `PluginInvokeError: {"error_type":"ClientError","message":"429 truncated`
	got := dify.Classify(message)
	if got.Category != dify.CategoryQuota {
		t.Fatalf("expected pattern fallback to quota, got %#v", got)
	}
}

func TestClassifyUnknownTruncatesExcerpt(t *testing.T) {
	long := strings.Repeat("x", 400)
	got := dify.Classify(long)
	if got.Category != dify.CategoryUnknown {
		t.Fatalf("expected unknown, got %q", got.Category)
	}
	if len(got.Excerpt) >= 400 {
		t.Fatalf("excerpt not truncated: %d bytes", len(got.Excerpt))
	}
	if !strings.HasSuffix(got.Excerpt, "...") {
		t.Fatalf("truncated excerpt should carry a marker: %q", got.Excerpt)
	}
}

func TestClassifyHTTPMinesJSONBody(t *testing.T) {
	got := dify.ClassifyHTTP(500, `{"data":{"error":"429 RESOURCE_EXHAUSTED"}}`)
	if got.Category != dify.CategoryQuota {
		t.Fatalf("nested body error should win over the status code, got %#v", got)
	}

	got = dify.ClassifyHTTP(503, "plain text failure")
	if got.Category != dify.CategoryTransient {
		t.Fatalf("expected status-keyed transient, got %#v", got)
	}

	got = dify.ClassifyHTTP(418, "teapot")
	if got.Category != dify.CategoryUnknown {
		t.Fatalf("expected unknown for unmapped status, got %#v", got)
	}
	if !strings.Contains(got.Message, "418") {
		t.Fatalf("message should name the status, got %q", got.Message)
	}
}

func TestClassifyHTTPErrorObjectShapes(t *testing.T) {
	got := dify.ClassifyHTTP(500, `{"error":{"message":"connection reset by peer"}}`)
	if got.Category != dify.CategoryTransient {
		t.Fatalf("expected transient from error object, got %#v", got)
	}

	got = dify.ClassifyHTTP(500, `{"error":"upstream timeout"}`)
	if got.Category != dify.CategoryTransient {
		t.Fatalf("expected transient from error string, got %#v", got)
	}
}
