package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"mediabrief/internal/services"
)

// ReadFile parses a source export into a header row and data rows. The
// format is chosen by file extension: .csv and .xlsx are supported.
func ReadFile(path string) ([]string, [][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, nil, services.Wrap(services.ErrValidation, "clean", "read",
			fmt.Sprintf("unsupported file type %q", filepath.Ext(path)), nil)
	}
}

func readCSV(path string) ([]string, [][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "clean", "read", "read csv file", err)
	}

	decoded, err := decodeToUTF8(raw)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "clean", "read", "decode csv file", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var header []string
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, services.Wrap(services.ErrValidation, "clean", "read", "parse csv", err)
		}
		if header == nil {
			header = record
			continue
		}
		rows = append(rows, record)
	}
	if header == nil {
		return nil, nil, services.Wrap(services.ErrValidation, "clean", "read", "csv file has no header row", nil)
	}
	return header, rows, nil
}

func readXLSX(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "clean", "read", "open xlsx file", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "clean", "read", "xlsx file has no sheets", nil)
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "clean", "read", "read xlsx rows", err)
	}
	if len(all) == 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "clean", "read", "xlsx sheet has no header row", nil)
	}
	return all[0], all[1:], nil
}

// decodeToUTF8 converts raw file bytes to UTF-8. BOMs select UTF-8 or
// UTF-16; otherwise the bytes are used as-is when they are valid UTF-8 and
// decoded as GB18030 when they are not.
func decodeToUTF8(raw []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return raw[3:], nil
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		return transformBytes(raw, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		return transformBytes(raw, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder())
	}
	if utf8.Valid(raw) {
		return raw, nil
	}
	return transformBytes(raw, simplifiedchinese.GB18030.NewDecoder())
}

func transformBytes(raw []byte, t transform.Transformer) ([]byte, error) {
	decoded, _, err := transform.Bytes(t, raw)
	if err != nil {
		return nil, fmt.Errorf("transform encoding: %w", err)
	}
	return decoded, nil
}
