package repository

import (
	"context"
	"strings"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/catalog/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/database/postgres"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB      *sqlx.DB
	timeout time.Duration
}

func NewPGRepository(db *sqlx.DB, timeout time.Duration) *PGRepository {
	return &PGRepository{DB: db, timeout: timeout}
}

func (r *PGRepository) ListItems(ctx context.Context, f *dto.ItemFilters) ([]model.InventoryItem, error) {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	conditions := []string{"account_id = :account_id", "deleted = false"}
	args := map[string]interface{}{"account_id": f.TenantID}

	if f.ItemType != "" {
		conditions = append(conditions, "item_type = :item_type")
		args["item_type"] = f.ItemType
	}
	if f.ActiveOnly {
		conditions = append(conditions, "COALESCE(item_status, 'active') = 'active'")
	}
	if f.SearchQuery != "" {
		conditions = append(conditions, "(name ILIKE :search OR sku ILIKE :search)")
		args["search"] = "%" + f.SearchQuery + "%"
	}

	query := `
        SELECT id, account_id, name, COALESCE(sku, '') AS sku, item_type,
               COALESCE(item_status, '') AS item_status, selling_price,
               COALESCE(cost_price, 0) AS cost_price, COALESCE(description, '') AS description, updated_at
        FROM inventory_items WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY name`

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, apperror.Classify("list items", err)
	}
	defer nstmt.Close()

	var items []model.InventoryItem
	if err := nstmt.SelectContext(ctx, &items, args); err != nil {
		return nil, apperror.Classify("list items", err)
	}
	return items, nil
}

func (r *PGRepository) ListStockLevels(ctx context.Context, tenantID, locationID string) ([]model.StockLevel, error) {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	var levels []model.StockLevel
	err := r.DB.SelectContext(ctx, &levels, `
        SELECT item_id, business_id, account_id, quantity, updated_at
        FROM stock_levels
        WHERE account_id = $1 AND business_id = $2
    `, tenantID, locationID)
	if err != nil {
		return nil, apperror.Classify("list stock levels", err)
	}
	for i := range levels {
		levels[i].ID = model.StockLevelID(levels[i].ItemID, levels[i].LocationID)
	}
	return levels, nil
}

func (r *PGRepository) ListCustomers(ctx context.Context, tenantID string) ([]model.Customer, error) {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	var customers []model.Customer
	err := r.DB.SelectContext(ctx, &customers, `
        SELECT id, account_id, name, COALESCE(doc_type, '') AS doc_type, COALESCE(doc_number, '') AS doc_number,
               COALESCE(email, '') AS email, COALESCE(phone, '') AS phone
        FROM customers
        WHERE account_id = $1 AND deleted_at IS NULL
        ORDER BY name
    `, tenantID)
	if err != nil {
		return nil, apperror.Classify("list customers", err)
	}
	return customers, nil
}
