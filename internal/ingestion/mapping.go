package ingestion

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/casklane/stockfeed/internal/domain"
)

// Canonical columns a supplier sheet can map onto.
const (
	colSKU         = "sku"
	colDescription = "description"
	colABV         = "abv"
	colVolume      = "volume_ml"
	colPackSize    = "pack_size"
	colCasePrice   = "case_price"
	colUnitPrice   = "unit_price"
	colStockQty    = "stock_qty"
)

// columnSynonyms maps sanitized supplier header names onto canonical
// columns. Supplier sheets disagree wildly on labels; this list grew from
// the feeds we actually receive.
var columnSynonyms = map[string]string{
	"sku":             colSKU,
	"product_code":    colSKU,
	"item_code":       colSKU,
	"code":            colSKU,
	"description":     colDescription,
	"product":         colDescription,
	"product_name":    colDescription,
	"item":            colDescription,
	"name":            colDescription,
	"abv":             colABV,
	"abv_%":           colABV,
	"strength":        colABV,
	"alcohol":         colABV,
	"volume":          colVolume,
	"volume_ml":       colVolume,
	"size":            colVolume,
	"bottle_size":     colVolume,
	"pack":            colPackSize,
	"pack_size":       colPackSize,
	"case_size":       colPackSize,
	"units_per_case":  colPackSize,
	"case_price":      colCasePrice,
	"price_per_case":  colCasePrice,
	"trade_price":     colCasePrice,
	"price":           colCasePrice,
	"unit_price":      colUnitPrice,
	"bottle_price":    colUnitPrice,
	"price_per_unit":  colUnitPrice,
	"stock":           colStockQty,
	"stock_qty":       colStockQty,
	"qty":             colStockQty,
	"quantity":        colStockQty,
	"cases_in_stock":  colStockQty,
	"stock_on_hand":   colStockQty,
	"available_stock": colStockQty,
}

// columnMapping resolves header positions to canonical columns.
type columnMapping map[string]int

func mapColumns(headers []string) columnMapping {
	mapping := columnMapping{}
	for idx, header := range headers {
		canonical, ok := columnSynonyms[header]
		if !ok {
			continue
		}
		if _, taken := mapping[canonical]; taken {
			// First match wins; later duplicates stay raw-only.
			continue
		}
		mapping[canonical] = idx
	}
	return mapping
}

// normalizeRows maps raw table rows onto NormalizedRow, keeping every
// original cell verbatim under its sanitized header for quarantining.
func normalizeRows(table tableData) ([]domain.NormalizedRow, error) {
	mapping := mapColumns(table.headers)
	if _, ok := mapping[colSKU]; !ok {
		return nil, fmt.Errorf("no identifier column found among headers %v", table.headers)
	}

	rows := make([]domain.NormalizedRow, 0, len(table.rows))
	for rowIdx, record := range table.rows {
		// 1-based spreadsheet numbering, counting the header row.
		rowNumber := table.headerRowIndex + rowIdx + 2

		raw := make(map[string]string, len(table.headers))
		for colIdx, header := range table.headers {
			if colIdx < len(record) {
				raw[header] = strings.TrimSpace(record[colIdx])
			} else {
				raw[header] = ""
			}
		}

		row := domain.NormalizedRow{
			RowNumber:   rowNumber,
			SKU:         strings.ToUpper(cell(record, mapping, colSKU)),
			Description: cell(record, mapping, colDescription),
			Raw:         raw,
		}
		row.ABV = parseFloatCell(cell(record, mapping, colABV))
		row.VolumeML = parseVolumeCell(cell(record, mapping, colVolume))
		row.PackSize = parseIntCell(cell(record, mapping, colPackSize))
		row.CasePrice = parseMoneyCell(cell(record, mapping, colCasePrice))
		row.UnitPrice = parseMoneyCell(cell(record, mapping, colUnitPrice))
		row.StockQty = parseIntCell(cell(record, mapping, colStockQty))

		rows = append(rows, row)
	}
	return rows, nil
}

func cell(record []string, mapping columnMapping, canonical string) string {
	idx, ok := mapping[canonical]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseFloatCell(raw string) *float64 {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &value
}

func parseIntCell(raw string) *int {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		// Some sheets write integers as "12.0".
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int(f)) {
			return nil
		}
		value = int(f)
	}
	return &value
}

// parseMoneyCell strips currency symbols and separators.
func parseMoneyCell(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	negative := strings.HasPrefix(raw, "-") || (strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")"))
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" {
		return nil
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	if negative {
		value = -value
	}
	return &value
}

// parseVolumeCell understands "750", "750ml", "75cl" and "0.75l",
// normalizing everything to millilitres.
func parseVolumeCell(raw string) *float64 {
	raw = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	if raw == "" {
		return nil
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(raw, "ml"):
		raw = strings.TrimSuffix(raw, "ml")
	case strings.HasSuffix(raw, "cl"):
		raw = strings.TrimSuffix(raw, "cl")
		multiplier = 10
	case strings.HasSuffix(raw, "ltr"):
		raw = strings.TrimSuffix(raw, "ltr")
		multiplier = 1000
	case strings.HasSuffix(raw, "l"):
		raw = strings.TrimSuffix(raw, "l")
		multiplier = 1000
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	value *= multiplier
	return &value
}
