package repository

import (
	"context"
	"fmt"

	"github.com/casklane/stockfeed/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// catalogRepository writes price/inventory data. All methods take the
// business transaction: catalog writes commit or roll back as one unit,
// never alongside ledger bookkeeping.
type catalogRepository struct{}

// NewCatalogRepository creates the catalog upsert repository.
func NewCatalogRepository() CatalogRepository {
	return &catalogRepository{}
}

func (r *catalogRepository) UpsertItem(ctx context.Context, tx pgx.Tx, item domain.CatalogItem) (uuid.UUID, bool, error) {
	row := tx.QueryRow(ctx,
		`INSERT INTO catalog_items (target, sku, description, abv, volume_ml, pack_size)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (target, sku) DO UPDATE
		 SET description = EXCLUDED.description,
		     abv = EXCLUDED.abv,
		     volume_ml = EXCLUDED.volume_ml,
		     pack_size = EXCLUDED.pack_size,
		     updated_at = now()
		 RETURNING id, (xmax = 0) AS inserted`,
		item.Target, item.SKU, item.Description, item.ABV, item.VolumeML, item.PackSize,
	)

	var (
		id       uuid.UUID
		inserted bool
	)
	if err := row.Scan(&id, &inserted); err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to upsert item %s/%s: %w", item.Target, item.SKU, err)
	}
	return id, inserted, nil
}

func (r *catalogRepository) RecordPrice(ctx context.Context, tx pgx.Tx, price domain.PriceRecord) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO item_prices (item_id, as_of_date, case_price, unit_price, run_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (item_id, as_of_date) DO UPDATE
		 SET case_price = EXCLUDED.case_price,
		     unit_price = EXCLUDED.unit_price,
		     run_id = EXCLUDED.run_id`,
		price.ItemID, price.AsOfDate, price.CasePrice, price.UnitPrice, price.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to record price for item %s: %w", price.ItemID, err)
	}
	return nil
}

func (r *catalogRepository) RecordStock(ctx context.Context, tx pgx.Tx, stock domain.StockRecord) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO item_stock (item_id, as_of_date, quantity, run_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (item_id, as_of_date) DO UPDATE
		 SET quantity = EXCLUDED.quantity,
		     run_id = EXCLUDED.run_id`,
		stock.ItemID, stock.AsOfDate, stock.Quantity, stock.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to record stock for item %s: %w", stock.ItemID, err)
	}
	return nil
}
