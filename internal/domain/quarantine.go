package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rule codes emitted by the quality gate.
const (
	RuleSKUFormat        = "sku_format"
	RuleNegativePrice    = "negative_price"
	RuleNegativeQuantity = "negative_quantity"
	RuleABVOutOfRange    = "abv_out_of_range"
	RuleNonpositiveVol   = "nonpositive_volume"
	RuleMissingPrice     = "missing_price"
)

// QuarantinedRow is one rejected input row: the raw row verbatim plus the
// codes of every rule it violated. Append-only; never mutated.
type QuarantinedRow struct {
	ID            uuid.UUID         `json:"id"`
	RunID         uuid.UUID         `json:"run_id"`
	EnvelopeID    *uuid.UUID        `json:"envelope_id,omitempty"`
	RowNumber     int               `json:"row_number"`
	RawRow        map[string]string `json:"raw_row"`
	ViolatedRules []string          `json:"violated_rules"`
	CreatedAt     time.Time         `json:"created_at"`
}

// RowRejection is the in-memory result of classifying one bad row,
// before it is persisted as a QuarantinedRow.
type RowRejection struct {
	RowNumber     int               `json:"row_number"`
	RawRow        map[string]string `json:"raw_row"`
	ViolatedRules []string          `json:"violated_rules"`
}
