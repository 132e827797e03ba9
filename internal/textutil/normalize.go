package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

var lineEndingReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeKey prepares a dedupe key for comparison: surrounding whitespace
// is trimmed and CRLF/CR line endings collapse to LF. Rows whose normalized
// key is empty cannot collide and are treated as unique by callers.
func NormalizeKey(value string) string {
	return strings.TrimSpace(lineEndingReplacer.Replace(value))
}

// TruncationMarker is appended whenever Truncate shortens a value so the
// reader can tell the excerpt is partial.
const TruncationMarker = "..."

// Truncate bounds value to max runes, appending TruncationMarker when the
// value was shortened. Values at or under the bound pass through unchanged.
func Truncate(value string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max]) + TruncationMarker
}
