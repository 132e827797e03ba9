package report_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediabrief/internal/report"
	"mediabrief/internal/services"
	"mediabrief/internal/services/dify"
)

func sampleResult() *dify.StructuredResult {
	return &dify.StructuredResult{
		DomesticSources: []dify.Source{
			{Title: "1. 境内标题", Content: "境内内容", Links: []string{"https://a.example"}},
		},
		ForeignSources: []dify.Source{
			{Title: "1. Foreign title", Content: "Foreign content"},
		},
	}
}

func TestRenderWritesBriefing(t *testing.T) {
	day := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	data := report.Build(sampleResult(), 12, 7, day)
	path := filepath.Join(t.TempDir(), "reports", report.Filename(day))

	if err := report.Render(path, data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	content := string(raw)
	for _, want := range []string{
		"南海舆情日报",
		"2026年8月29日",
		"2026年8月28日",
		"境内信息：** 12 条",
		"境外信息：** 7 条",
		"境内标题",
		"Foreign title",
		"- https://a.example",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("report missing %q:\n%s", want, content)
		}
	}
}

func TestRenderRejectsEmptyResult(t *testing.T) {
	day := time.Now()
	data := report.Build(&dify.StructuredResult{}, 0, 0, day)
	err := report.Render(filepath.Join(t.TempDir(), "report.md"), data)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFilenameIsDated(t *testing.T) {
	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	if got := report.Filename(day); got != "南海舆情日报_2026-08-29.md" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestCountByLanguage(t *testing.T) {
	languages := []string{
		"Chinese (Simplified)",
		"Chinese (Traditional)",
		"English",
		"  ",
		"Tagalog",
	}
	inside, outside := report.CountByLanguage(languages)
	if inside != 2 || outside != 2 {
		t.Fatalf("unexpected counts inside=%d outside=%d", inside, outside)
	}
}
