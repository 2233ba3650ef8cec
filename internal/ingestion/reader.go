package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned when an input file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

type tableData struct {
	headers        []string
	rawHeaders     []string
	rows           [][]string
	headerRowIndex int
}

func parseTable(fileName string, payload []byte) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return tableData{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}

	return normalizeTable(records)
}

func parseExcel(payload []byte) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return normalizeTable(rows)
}

// normalizeTable picks the first non-empty row as the header and pads
// every data row to the header width.
func normalizeTable(records [][]string) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	var headerRow []string
	var dataRows [][]string
	headerIndex := -1

	for idx, row := range records {
		if len(cleanRow(row)) == 0 {
			continue
		}
		if headerRow == nil {
			headerRow = row
			headerIndex = idx
			continue
		}
		dataRows = append(dataRows, row)
	}

	if headerRow == nil {
		return tableData{}, errors.New("header row could not be detected")
	}

	headers := sanitizeHeaders(headerRow)
	rawHeaders := make([]string, len(headerRow))
	for i, value := range headerRow {
		rawHeaders[i] = strings.TrimSpace(value)
	}

	for i := range dataRows {
		dataRows[i] = padRow(dataRows[i], len(headers))
	}

	dataRows = filterEmptyRows(dataRows)

	return tableData{
		headers:        headers,
		rawHeaders:     rawHeaders,
		rows:           dataRows,
		headerRowIndex: headerIndex,
	}, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func filterEmptyRows(rows [][]string) [][]string {
	var filtered [][]string
	for _, row := range rows {
		if len(cleanRow(row)) > 0 {
			filtered = append(filtered, row)
		}
	}
	return filtered
}
