package ingest

import (
	"fmt"
	"strings"

	"mediabrief/internal/services"
)

// Clean maps the parsed table onto the required columns and trims cell
// values. Header matching is exact after trimming; any missing required
// column aborts the stage.
func Clean(header []string, records [][]string) ([]Row, error) {
	indexes := make(map[string]int, len(RequiredColumns()))
	for _, required := range RequiredColumns() {
		found := -1
		for i, col := range header {
			if strings.TrimSpace(col) == required {
				found = i
				break
			}
		}
		if found < 0 {
			continue
		}
		indexes[required] = found
	}

	var missing []string
	for _, required := range RequiredColumns() {
		if _, ok := indexes[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrValidation, "clean", "map columns",
			fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil)
	}

	rows := make([]Row, 0, len(records))
	for _, record := range records {
		rows = append(rows, Row{
			URL:         cleanValue(cell(record, indexes[ColumnURL])),
			SourceName:  cleanValue(cell(record, indexes[ColumnSourceName])),
			Author:      cleanValue(cell(record, indexes[ColumnAuthor])),
			Title:       cleanValue(cell(record, indexes[ColumnTitle])),
			HitSentence: cleanValue(cell(record, indexes[ColumnHitSentence])),
			Language:    cleanValue(cell(record, indexes[ColumnLanguage])),
		})
	}
	return rows, nil
}

// cell tolerates short records, which show up in hand-edited CSV exports.
func cell(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return record[index]
}
