package ingestion

import (
	"testing"

	"github.com/casklane/stockfeed/internal/domain"
)

func normalizeFixture(t *testing.T, csv string) []domain.NormalizedRow {
	t.Helper()
	table, err := parseTable("feed.csv", []byte(csv))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	rows, err := normalizeRows(table)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	return rows
}

func TestNormalizeRowsMapsSynonyms(t *testing.T) {
	rows := normalizeFixture(t, "Product Code,Product Name,Strength,Bottle Size,Case Size,Price Per Case,Stock On Hand\n"+
		"gin-001,London Dry,40,70cl,6,84.00,120\n")

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.SKU != "GIN-001" {
		t.Fatalf("sku must be uppercased, got %q", row.SKU)
	}
	if row.Description != "London Dry" {
		t.Fatalf("description not mapped: %q", row.Description)
	}
	if row.ABV == nil || *row.ABV != 40 {
		t.Fatalf("abv not mapped: %v", row.ABV)
	}
	if row.VolumeML == nil || *row.VolumeML != 700 {
		t.Fatalf("70cl must become 700ml, got %v", row.VolumeML)
	}
	if row.PackSize == nil || *row.PackSize != 6 {
		t.Fatalf("pack size not mapped: %v", row.PackSize)
	}
	if row.CasePrice == nil || *row.CasePrice != 84 {
		t.Fatalf("case price not mapped: %v", row.CasePrice)
	}
	if row.StockQty == nil || *row.StockQty != 120 {
		t.Fatalf("stock not mapped: %v", row.StockQty)
	}
}

func TestNormalizeRowsRequiresIdentifierColumn(t *testing.T) {
	table, err := parseTable("feed.csv", []byte("Description,Price\nGin,10\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, err := normalizeRows(table); err == nil {
		t.Fatalf("expected error when no identifier column exists")
	}
}

func TestNormalizeRowsKeepsRawCellsVerbatim(t *testing.T) {
	rows := normalizeFixture(t, "SKU,Trade Price,Comments\nA-1,not-a-price,see rep\n")

	raw := rows[0].Raw
	if raw["trade_price"] != "not-a-price" {
		t.Fatalf("unparseable cell must survive in raw form: %v", raw)
	}
	if raw["comments"] != "see rep" {
		t.Fatalf("unmapped column must survive in raw form: %v", raw)
	}
	if rows[0].CasePrice != nil {
		t.Fatalf("unparseable price must normalize to nil, got %v", *rows[0].CasePrice)
	}
}

func TestNormalizeRowsNumbersFromSpreadsheetPerspective(t *testing.T) {
	rows := normalizeFixture(t, "SKU\nA-1\nB-2\n")

	if rows[0].RowNumber != 2 || rows[1].RowNumber != 3 {
		t.Fatalf("expected spreadsheet row numbers 2 and 3, got %d and %d",
			rows[0].RowNumber, rows[1].RowNumber)
	}
}

func TestMapColumnsFirstMatchWins(t *testing.T) {
	mapping := mapColumns([]string{"price", "case_price"})
	if mapping[colCasePrice] != 0 {
		t.Fatalf("expected first matching column to win, got index %d", mapping[colCasePrice])
	}
}

func TestParseMoneyCell(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{"£84.00", f(84)},
		{"$1,234.50", f(1234.5)},
		{"-12.00", f(-12)},
		{"(12.00)", f(-12)},
		{"12", f(12)},
		{"", nil},
		{"POA", nil},
	}
	for _, tc := range cases {
		got := parseMoneyCell(tc.in)
		if (got == nil) != (tc.want == nil) {
			t.Fatalf("parseMoneyCell(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if got != nil && *got != *tc.want {
			t.Fatalf("parseMoneyCell(%q) = %v, want %v", tc.in, *got, *tc.want)
		}
	}
}

func TestParseVolumeCell(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{"750", f(750)},
		{"750ml", f(750)},
		{"75cl", f(750)},
		{"0.75l", f(750)},
		{"0.75 Ltr", f(750)},
		{"", nil},
		{"large", nil},
	}
	for _, tc := range cases {
		got := parseVolumeCell(tc.in)
		if (got == nil) != (tc.want == nil) {
			t.Fatalf("parseVolumeCell(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if got != nil && *got != *tc.want {
			t.Fatalf("parseVolumeCell(%q) = %v, want %v", tc.in, *got, *tc.want)
		}
	}
}

func TestParseIntCell(t *testing.T) {
	if got := parseIntCell("12.0"); got == nil || *got != 12 {
		t.Fatalf("expected 12 for \"12.0\", got %v", got)
	}
	if got := parseIntCell("12.5"); got != nil {
		t.Fatalf("fractional quantity must not round, got %v", *got)
	}
	if got := parseIntCell("1,200"); got == nil || *got != 1200 {
		t.Fatalf("expected 1200 for \"1,200\", got %v", got)
	}
	if parseIntCell("") != nil {
		t.Fatalf("empty cell must be nil")
	}
}

func TestParseFloatCellStripsPercent(t *testing.T) {
	if got := parseFloatCell("40%"); got == nil || *got != 40 {
		t.Fatalf("expected 40 for \"40%%\", got %v", got)
	}
	if parseFloatCell("n/a") != nil {
		t.Fatalf("non-numeric cell must be nil")
	}
}

func f(v float64) *float64 { return &v }
