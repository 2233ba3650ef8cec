package ingestion

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCSVWithBOM(t *testing.T) {
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte("SKU,Price\nGIN-001,12.50\n")...)

	table, err := parseTable("prices.csv", payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if table.headers[0] != "sku" {
		t.Fatalf("BOM leaked into the first header: %q", table.headers[0])
	}
	if len(table.rows) != 1 || table.rows[0][0] != "GIN-001" {
		t.Fatalf("unexpected rows: %v", table.rows)
	}
}

func TestParseTableRejectsUnknownExtension(t *testing.T) {
	_, err := parseTable("prices.pdf", []byte("whatever"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestNormalizeTableSkipsLeadingBlankRows(t *testing.T) {
	payload := []byte("\n,,\nProduct Code,Trade Price\nVOD-19,84.00\n")

	table, err := parseTable("feed.csv", payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if table.headers[0] != "product_code" || table.headers[1] != "trade_price" {
		t.Fatalf("header row not detected: %v", table.headers)
	}
	// The fully blank first line never becomes a record, so the header is
	// the second parsed row.
	if table.headerRowIndex != 1 {
		t.Fatalf("expected header at index 1, got %d", table.headerRowIndex)
	}
	if len(table.rows) != 1 {
		t.Fatalf("expected one data row, got %d", len(table.rows))
	}
}

func TestNormalizeTableDropsEmptyDataRows(t *testing.T) {
	payload := []byte("sku,price\nA-1,1\n,,\n  , \nB-2,2\n")

	table, err := parseTable("feed.csv", payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(table.rows) != 2 {
		t.Fatalf("expected 2 rows after filtering, got %d: %v", len(table.rows), table.rows)
	}
}

func TestNormalizeTablePadsShortRows(t *testing.T) {
	payload := []byte("sku,description,price\nA-1,Dry Gin\n")

	table, err := parseTable("feed.csv", payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(table.rows[0]) != 3 {
		t.Fatalf("row was not padded to header width: %v", table.rows[0])
	}
	if table.rows[0][2] != "" {
		t.Fatalf("pad cell should be empty, got %q", table.rows[0][2])
	}
}

func TestParseTableEmptyFile(t *testing.T) {
	if _, err := parseTable("feed.csv", nil); err == nil {
		t.Fatalf("expected error for empty file")
	}
}

func TestSanitizeHeaders(t *testing.T) {
	got := sanitizeHeaders([]string{" Product Code ", "ABV %", "Price-Per-Case", "", "Price-Per-Case"})

	want := []string{"product_code", "abv_%", "price_per_case", "column_4", "price_per_case_2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("header %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSanitizeHeadersKeepsRawForQuarantine(t *testing.T) {
	payload := []byte("Product Code,Trade Price\nA-1,10\n")

	table, err := parseTable("feed.csv", payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if table.rawHeaders[0] != "Product Code" {
		t.Fatalf("raw header lost: %q", table.rawHeaders[0])
	}
	if strings.Contains(table.headers[0], " ") {
		t.Fatalf("sanitized header still has spaces: %q", table.headers[0])
	}
}
