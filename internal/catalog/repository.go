package catalog

import (
	"context"

	"github.com/fekuna/omnipos-offline-sync/internal/catalog/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
)

type Repository interface {
	ListItems(ctx context.Context, filters *dto.ItemFilters) ([]model.InventoryItem, error)
	ListStockLevels(ctx context.Context, tenantID, locationID string) ([]model.StockLevel, error)
	ListCustomers(ctx context.Context, tenantID string) ([]model.Customer, error)
}
