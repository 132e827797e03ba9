package ingest_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"mediabrief/internal/ingest"
	"mediabrief/internal/testsupport"
)

const sampleCSV = "URL,来源名称,作者用户名称,标题,命中句子,语言\n" +
	"https://a.example,新浪,author-a,标题一,这是命中句子,Chinese (Simplified)\n" +
	"https://b.example,Twitter,author-b,Title B,second sentence,English\n"

func TestReadFileCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mentions.csv")
	testsupport.WriteFile(t, path, []byte(sampleCSV))

	header, records, err := ingest.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(header) != 6 {
		t.Fatalf("expected 6 header columns, got %d", len(header))
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0][4] != "这是命中句子" {
		t.Fatalf("unexpected hit sentence cell %q", records[0][4])
	}
}

func TestReadFileCSVWithBOM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.csv")
	testsupport.WriteFile(t, path, append([]byte{0xEF, 0xBB, 0xBF}, []byte(sampleCSV)...))

	header, records, err := ingest.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if header[0] != "URL" {
		t.Fatalf("BOM should be stripped from the first header, got %q", header[0])
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestReadFileCSVUTF16(t *testing.T) {
	encoded, _, err := transform.Bytes(
		unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder(),
		[]byte(sampleCSV),
	)
	if err != nil {
		t.Fatalf("encode utf-16: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "utf16.csv")
	testsupport.WriteFile(t, path, encoded)

	_, records, err := ingest.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(records) != 2 || records[0][1] != "新浪" {
		t.Fatalf("unexpected utf-16 decode result: %#v", records)
	}
}

func TestReadFileCSVGB18030(t *testing.T) {
	encoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewEncoder(), []byte(sampleCSV))
	if err != nil {
		t.Fatalf("encode gb18030: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "gb18030.csv")
	testsupport.WriteFile(t, path, encoded)

	_, records, err := ingest.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if records[0][3] != "标题一" {
		t.Fatalf("unexpected gb18030 decode result %q", records[0][3])
	}
}

func TestReadFileXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mentions.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"URL", "来源名称", "作者用户名称", "标题", "命中句子", "语言"},
		{"https://a.example", "新浪", "author-a", "标题一", "这是命中句子", "Chinese (Simplified)"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	header, records, err := ingest.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if header[4] != "命中句子" {
		t.Fatalf("unexpected header: %#v", header)
	}
	if len(records) != 1 || records[0][0] != "https://a.example" {
		t.Fatalf("unexpected records: %#v", records)
	}
}

func TestReadFileRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mentions.txt")
	testsupport.WriteFile(t, path, []byte("data"))

	if _, _, err := ingest.ReadFile(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestCleanMapsColumns(t *testing.T) {
	header := []string{" 语言 ", "URL", "来源名称", "extra", "作者用户名称", "标题", "命中句子"}
	records := [][]string{
		{"English", " https://a.example ", "nan", "ignored", "author", "NULL", "  sentence  "},
	}

	rows, err := ingest.Clean(header, records)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.URL != "https://a.example" {
		t.Fatalf("expected trimmed URL, got %q", row.URL)
	}
	if row.SourceName != "" || row.Title != "" {
		t.Fatalf("expected nan/null normalized to empty: %#v", row)
	}
	if row.HitSentence != "sentence" || row.Language != "English" {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestCleanReportsMissingColumns(t *testing.T) {
	header := []string{"URL", "标题"}
	_, err := ingest.Clean(header, nil)
	if err == nil {
		t.Fatal("expected missing column error")
	}
	if !strings.Contains(err.Error(), "命中句子") {
		t.Fatalf("error should name missing columns, got %v", err)
	}
}

func TestCleanToleratesShortRecords(t *testing.T) {
	header := ingest.RequiredColumns()
	records := [][]string{{"https://a.example", "新浪"}}

	rows, err := ingest.Clean(header, records)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if rows[0].HitSentence != "" || rows[0].SourceName != "新浪" {
		t.Fatalf("unexpected short-record handling: %#v", rows[0])
	}
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	rows := []ingest.Row{
		{URL: "1", HitSentence: "alpha"},
		{URL: "2", HitSentence: " alpha "},
		{URL: "3", HitSentence: "beta\r\ngamma"},
		{URL: "4", HitSentence: "beta\ngamma"},
		{URL: "5", HitSentence: "unique"},
	}

	result := ingest.Dedupe(rows, 10)
	if result.Input != 5 || result.Kept != 3 || result.Removed != 2 {
		t.Fatalf("unexpected counts: %#v", result)
	}
	if result.Rows[0].URL != "1" || result.Rows[1].URL != "3" || result.Rows[2].URL != "5" {
		t.Fatalf("expected first occurrences retained in order: %#v", result.Rows)
	}
	if len(result.TopDuplicates) != 2 {
		t.Fatalf("expected 2 duplicate keys, got %#v", result.TopDuplicates)
	}
}

func TestDedupeRetainsEmptyKeys(t *testing.T) {
	rows := []ingest.Row{
		{URL: "1", HitSentence: ""},
		{URL: "2", HitSentence: "   "},
		{URL: "3", HitSentence: ""},
	}

	result := ingest.Dedupe(rows, 5)
	if result.Kept != 3 || result.Removed != 0 {
		t.Fatalf("rows with empty keys must all survive: %#v", result)
	}
	if result.EmptyKey != 3 {
		t.Fatalf("expected 3 empty-key rows, got %d", result.EmptyKey)
	}
}

func TestDedupeIsIdempotent(t *testing.T) {
	rows := []ingest.Row{
		{URL: "1", HitSentence: "alpha"},
		{URL: "2", HitSentence: "alpha"},
		{URL: "3", HitSentence: ""},
		{URL: "4", HitSentence: "beta"},
	}

	first := ingest.Dedupe(rows, 5)
	second := ingest.Dedupe(first.Rows, 5)
	if second.Removed != 0 {
		t.Fatalf("second pass must remove nothing, removed %d", second.Removed)
	}
	if second.Kept != first.Kept {
		t.Fatalf("second pass changed row count: %d vs %d", second.Kept, first.Kept)
	}
}

func TestWriteArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact", "deduped.csv")
	rows := []ingest.Row{
		{URL: "https://a.example", SourceName: "新浪", Author: "author-a", Title: "标题一", HitSentence: "句子, 带逗号", Language: "Chinese"},
	}

	if err := ingest.WriteArtifact(path, rows); err != nil {
		t.Fatalf("WriteArtifact failed: %v", err)
	}

	header, records, err := ingest.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if header[0] != "URL" || len(records) != 1 {
		t.Fatalf("unexpected artifact contents: %#v %#v", header, records)
	}
	if records[0][4] != "句子, 带逗号" {
		t.Fatalf("quoted cell did not round trip: %q", records[0][4])
	}
}
