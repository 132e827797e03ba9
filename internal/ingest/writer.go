package ingest

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"mediabrief/internal/services"
)

// WriteArtifact serializes the deduplicated rows to a UTF-8 CSV at path,
// using the same headers as the source format. This is the file handed to
// the classification workflow.
func WriteArtifact(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrUpload, "dedupe", "write artifact", "create artifact directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrUpload, "dedupe", "write artifact", "create artifact file", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(RequiredColumns()); err != nil {
		return services.Wrap(services.ErrUpload, "dedupe", "write artifact", "write header", err)
	}
	for _, row := range rows {
		record := []string{
			row.URL,
			row.SourceName,
			row.Author,
			row.Title,
			row.HitSentence,
			row.Language,
		}
		if err := w.Write(record); err != nil {
			return services.Wrap(services.ErrUpload, "dedupe", "write artifact", "write row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return services.Wrap(services.ErrUpload, "dedupe", "write artifact", "flush artifact", err)
	}
	return f.Close()
}
