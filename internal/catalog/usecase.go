package catalog

import (
	"context"

	"github.com/fekuna/omnipos-offline-sync/internal/catalog/dto"
)

type UseCase interface {
	// Refresh pulls items, stock levels and customers for one location into the local cache.
	Refresh(ctx context.Context, tenantID, locationID string) (*dto.RefreshResult, error)
	// Search matches items by name or SKU against the local cache, so it works offline.
	Search(ctx context.Context, input *dto.SearchInput) ([]dto.Item, error)
}
