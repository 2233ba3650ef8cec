// Package quality classifies normalized rows before they reach the
// catalog. Classification is pure: persisting rejections is a separate
// step owned by the quarantine repository, so the gate stays testable
// without a database.
package quality

import (
	"regexp"

	"github.com/casklane/stockfeed/internal/domain"
)

var skuPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{1,31}$`)

// Classify splits rows into accepted and rejected. A rejected row carries
// every violated rule code, not just the first one found.
func Classify(rows []domain.NormalizedRow) (accepted []domain.NormalizedRow, rejected []domain.RowRejection) {
	for _, row := range rows {
		violations := checkRow(row)
		if len(violations) == 0 {
			accepted = append(accepted, row)
			continue
		}
		rejected = append(rejected, domain.RowRejection{
			RowNumber:     row.RowNumber,
			RawRow:        row.Raw,
			ViolatedRules: violations,
		})
	}
	return accepted, rejected
}

func checkRow(row domain.NormalizedRow) []string {
	var violations []string

	if !skuPattern.MatchString(row.SKU) {
		violations = append(violations, domain.RuleSKUFormat)
	}
	if (row.CasePrice != nil && *row.CasePrice < 0) || (row.UnitPrice != nil && *row.UnitPrice < 0) {
		violations = append(violations, domain.RuleNegativePrice)
	}
	if row.StockQty != nil && *row.StockQty < 0 {
		violations = append(violations, domain.RuleNegativeQuantity)
	}
	if row.ABV != nil && (*row.ABV < 0 || *row.ABV > 100) {
		violations = append(violations, domain.RuleABVOutOfRange)
	}
	if row.VolumeML != nil && *row.VolumeML <= 0 {
		violations = append(violations, domain.RuleNonpositiveVol)
	}
	if row.CasePrice == nil && row.UnitPrice == nil {
		violations = append(violations, domain.RuleMissingPrice)
	}

	return violations
}
