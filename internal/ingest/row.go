package ingest

import "strings"

// Column headers expected in the source export. Matching is exact after
// trimming surrounding whitespace.
const (
	ColumnURL         = "URL"
	ColumnSourceName  = "来源名称"
	ColumnAuthor      = "作者用户名称"
	ColumnTitle       = "标题"
	ColumnHitSentence = "命中句子"
	ColumnLanguage    = "语言"
)

// RequiredColumns returns the headers a source file must provide, in
// artifact output order.
func RequiredColumns() []string {
	return []string{
		ColumnURL,
		ColumnSourceName,
		ColumnAuthor,
		ColumnTitle,
		ColumnHitSentence,
		ColumnLanguage,
	}
}

// Row is one cleaned media mention.
type Row struct {
	URL         string
	SourceName  string
	Author      string
	Title       string
	HitSentence string
	Language    string
}

// cleanValue trims the cell and normalizes pandas-style placeholder values
// ("nan", "null") to empty.
func cleanValue(value string) string {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "nan", "null":
		return ""
	}
	return trimmed
}
