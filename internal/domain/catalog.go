package domain

import (
	"time"

	"github.com/google/uuid"
)

// NormalizedRow is one spreadsheet row after column mapping, before the
// quality gate. Raw keeps the original cells verbatim so a rejection can
// be quarantined without information loss.
type NormalizedRow struct {
	RowNumber   int               `json:"row_number"`
	SKU         string            `json:"sku"`
	Description string            `json:"description"`
	ABV         *float64          `json:"abv,omitempty"`
	VolumeML    *float64          `json:"volume_ml,omitempty"`
	PackSize    *int              `json:"pack_size,omitempty"`
	CasePrice   *float64          `json:"case_price,omitempty"`
	UnitPrice   *float64          `json:"unit_price,omitempty"`
	StockQty    *int              `json:"stock_qty,omitempty"`
	Raw         map[string]string `json:"raw"`
}

// CatalogItem is one product in the catalog, keyed by (target, sku).
type CatalogItem struct {
	ID          uuid.UUID `json:"id"`
	Target      string    `json:"target"`
	SKU         string    `json:"sku"`
	Description string    `json:"description"`
	ABV         *float64  `json:"abv,omitempty"`
	VolumeML    *float64  `json:"volume_ml,omitempty"`
	PackSize    *int      `json:"pack_size,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PriceRecord is an as-of-date price observation for an item.
type PriceRecord struct {
	ItemID    uuid.UUID `json:"item_id"`
	AsOfDate  time.Time `json:"as_of_date"`
	CasePrice *float64  `json:"case_price,omitempty"`
	UnitPrice *float64  `json:"unit_price,omitempty"`
	RunID     uuid.UUID `json:"run_id"`
}

// StockRecord is an as-of-date inventory observation for an item.
type StockRecord struct {
	ItemID   uuid.UUID `json:"item_id"`
	AsOfDate time.Time `json:"as_of_date"`
	Quantity int       `json:"quantity"`
	RunID    uuid.UUID `json:"run_id"`
}

// ImportOutcome is what a caller-supplied import function returns on
// success: whitelisted counters plus named artifact locations.
type ImportOutcome struct {
	Metrics   map[string]int64  `json:"metrics"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}
