// Package seed bulk-loads credit records from JSON, YAML, CSV and XLSX files.
//
// Every item goes through engine.CreateOrReconcile, so loading the same file
// twice is safe: existing identical records are counted as skipped.
package seed

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/offset/internal/credit"
)

// Format identifies a seed file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for file extensions with no decoder.
var ErrUnsupportedFormat = errors.New("unsupported seed format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Item is one record read from a seed file.
type Item struct {
	// Position is the 1-based item index for JSON/YAML, or the 1-based row
	// number in the sheet for CSV/XLSX.
	Position int
	Raw      credit.RawRecord
}

// FormatFromPath picks a decoder from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// ReadFile decodes the seed file at path.
func ReadFile(path string) ([]Item, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	items, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// Decode parses data in the given format.
func Decode(data []byte, format Format) ([]Item, error) {
	data = bytes.TrimPrefix(data, byteOrderMark)
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatYAML:
		return decodeYAML(data)
	case FormatCSV:
		return decodeCSV(bytes.NewReader(data))
	case FormatXLSX:
		return decodeXLSX(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// decodeJSON expects a top-level array of objects. Numbers stay json.Number
// so quantities are never rounded through float64.
func decodeJSON(data []byte) ([]Item, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return toItems(raw), nil
}

// decodeYAML expects a top-level sequence of mappings. See YAMLRecord for
// how numbers are kept exact.
func decodeYAML(data []byte) ([]Item, error) {
	var records []YAMLRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	raw := make([]map[string]any, len(records))
	for i, r := range records {
		raw[i] = r
	}
	return toItems(raw), nil
}

func toItems(raw []map[string]any) []Item {
	items := make([]Item, 0, len(raw))
	for i, m := range raw {
		if m == nil {
			m = map[string]any{}
		}
		items = append(items, Item{Position: i + 1, Raw: credit.RawRecord(m)})
	}
	return items
}

func decodeCSV(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	return tableItems(rows)
}

// decodeXLSX reads the first sheet.
func decodeXLSX(data []byte) ([]Item, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return tableItems(rows)
}

// tableItems maps rows to items using the first non-empty row as header.
// Blank rows are skipped; cells beyond the header are ignored.
func tableItems(rows [][]string) ([]Item, error) {
	var headers []string
	var items []Item

	for idx, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(row))
			for i, h := range row {
				headers[i] = headerKey(h)
			}
			continue
		}

		raw := credit.RawRecord{}
		for i, h := range headers {
			if h == "" || i >= len(row) {
				continue
			}
			raw[h] = strings.TrimSpace(row[i])
		}
		items = append(items, Item{Position: idx + 1, Raw: raw})
	}

	if headers == nil {
		return nil, errors.New("no header row found")
	}
	return items, nil
}

// headerKey maps "Serial Number" and "serial-number" to serial_number.
func headerKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
