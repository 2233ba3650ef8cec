// Package ingestion turns supplier spreadsheets into normalized catalog
// rows and provides the default import function consumed by the
// orchestrator: parse, map columns, gate, quarantine, upsert.
package ingestion

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/casklane/stockfeed/internal/domain"
	"github.com/casklane/stockfeed/internal/orchestrator"
	"github.com/casklane/stockfeed/internal/quality"
	"github.com/casklane/stockfeed/internal/repository"

	"github.com/jackc/pgx/v5"
)

// Importer is the default spreadsheet importer.
type Importer struct {
	catalog    repository.CatalogRepository
	quarantine repository.QuarantineRepository
}

// NewImporter wires the default importer.
func NewImporter(catalog repository.CatalogRepository, quarantine repository.QuarantineRepository) *Importer {
	return &Importer{catalog: catalog, quarantine: quarantine}
}

// Import implements orchestrator.ImportFunc. Everything it writes goes
// through the supplied business transaction; the ledger is never touched.
func (i *Importer) Import(ctx context.Context, tx pgx.Tx, ic orchestrator.ImportContext) (domain.ImportOutcome, error) {
	payload, err := os.ReadFile(ic.FilePath)
	if err != nil {
		return domain.ImportOutcome{}, fmt.Errorf("failed to read %s: %w", ic.FilePath, err)
	}
	if len(payload) == 0 {
		return domain.ImportOutcome{}, fmt.Errorf("file %s is empty", ic.FilePath)
	}

	table, err := parseTable(ic.FilePath, payload)
	if err != nil {
		return domain.ImportOutcome{}, err
	}

	rows, err := normalizeRows(table)
	if err != nil {
		return domain.ImportOutcome{}, err
	}

	accepted, rejected := quality.Classify(rows)
	if len(rejected) > 0 {
		log.Printf("[INGEST] quarantining %d of %d rows from %s", len(rejected), len(rows), ic.FilePath)
		if err := i.quarantine.InsertBatch(ctx, tx, ic.RunID, ic.EnvelopeID, rejected); err != nil {
			return domain.ImportOutcome{}, fmt.Errorf("failed to quarantine rejected rows: %w", err)
		}
	}

	var itemsCreated, itemsUpdated, pricesWritten, stockWritten int64
	for _, row := range accepted {
		itemID, created, err := i.catalog.UpsertItem(ctx, tx, domain.CatalogItem{
			Target:      ic.Target,
			SKU:         row.SKU,
			Description: row.Description,
			ABV:         row.ABV,
			VolumeML:    row.VolumeML,
			PackSize:    row.PackSize,
		})
		if err != nil {
			return domain.ImportOutcome{}, fmt.Errorf("row %d: %w", row.RowNumber, err)
		}
		if created {
			itemsCreated++
		} else {
			itemsUpdated++
		}

		if row.CasePrice != nil || row.UnitPrice != nil {
			if err := i.catalog.RecordPrice(ctx, tx, domain.PriceRecord{
				ItemID:    itemID,
				AsOfDate:  ic.AsOfDate,
				CasePrice: row.CasePrice,
				UnitPrice: row.UnitPrice,
				RunID:     ic.RunID,
			}); err != nil {
				return domain.ImportOutcome{}, fmt.Errorf("row %d: %w", row.RowNumber, err)
			}
			pricesWritten++
		}

		if row.StockQty != nil {
			if err := i.catalog.RecordStock(ctx, tx, domain.StockRecord{
				ItemID:   itemID,
				AsOfDate: ic.AsOfDate,
				Quantity: *row.StockQty,
				RunID:    ic.RunID,
			}); err != nil {
				return domain.ImportOutcome{}, fmt.Errorf("row %d: %w", row.RowNumber, err)
			}
			stockWritten++
		}
	}

	return domain.ImportOutcome{
		Metrics: map[string]int64{
			domain.MetricRowsProcessed:   int64(len(rows)),
			domain.MetricRowsAccepted:    int64(len(accepted)),
			domain.MetricRowsQuarantined: int64(len(rejected)),
			domain.MetricItemsCreated:    itemsCreated,
			domain.MetricItemsUpdated:    itemsUpdated,
			domain.MetricPricesWritten:   pricesWritten,
			domain.MetricStockWritten:    stockWritten,
		},
	}, nil
}
