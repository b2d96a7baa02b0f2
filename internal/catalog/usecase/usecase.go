package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/auth"
	"github.com/fekuna/omnipos-offline-sync/internal/catalog"
	"github.com/fekuna/omnipos-offline-sync/internal/catalog/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/connectivity"
	"github.com/fekuna/omnipos-offline-sync/internal/localstore"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	syncdto "github.com/fekuna/omnipos-offline-sync/internal/syncqueue/dto"
	"go.uber.org/zap"
)

const defaultSearchLimit = 50

type catalogUseCase struct {
	repo   catalog.Repository
	store  *localstore.Store
	conn   connectivity.Checker
	logger logger.ZapLogger
}

func NewCatalogUseCase(repo catalog.Repository, store *localstore.Store, conn connectivity.Checker, log logger.ZapLogger) catalog.UseCase {
	return &catalogUseCase{
		repo:   repo,
		store:  store,
		conn:   conn,
		logger: log,
	}
}

func (uc *catalogUseCase) Refresh(ctx context.Context, tenantID, locationID string) (*dto.RefreshResult, error) {
	if tenantID == "" || locationID == "" {
		return nil, apperror.ErrMissingContext
	}
	if !uc.conn.IsOnline() {
		return nil, apperror.ErrOffline
	}

	// 1. Fetch
	items, err := uc.repo.ListItems(ctx, &dto.ItemFilters{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	levels, err := uc.repo.ListStockLevels(ctx, tenantID, locationID)
	if err != nil {
		return nil, err
	}
	customers, err := uc.repo.ListCustomers(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	res := &dto.RefreshResult{}

	// 2. Items, and tombstones for items gone from the remote
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ItemType != model.ItemTypeService {
			it.ItemType = model.ItemTypeProduct
		}
		doc, err := localstore.Encode(it)
		if err != nil {
			return nil, err
		}
		doc["deleted"] = false
		if err := uc.store.Upsert(ctx, localstore.InventoryItems, doc); err != nil {
			uc.logger.Warn("skipping inventory item", zap.String("item_id", it.ID), zap.Error(err))
			continue
		}
		seen[it.ID] = true
		res.Items++
	}

	local, err := uc.store.Find(ctx, localstore.InventoryItems, localstore.Query{
		Selector: localstore.Document{"account_id": tenantID, "deleted": false},
	})
	if err != nil {
		return nil, err
	}
	for _, doc := range local {
		id, _ := doc["id"].(string)
		if seen[id] {
			continue
		}
		if _, err := uc.store.Patch(ctx, localstore.InventoryItems, id, localstore.Document{"deleted": true}); err != nil {
			return nil, err
		}
		res.Removed++
	}

	// 3. Stock levels
	for _, l := range levels {
		if err := uc.mergeLevel(ctx, l); err != nil {
			return nil, err
		}
		res.StockLevels++
	}

	// 4. Customers
	for _, c := range customers {
		doc, err := localstore.Encode(c)
		if err != nil {
			return nil, err
		}
		if err := uc.store.Upsert(ctx, localstore.Customers, doc); err != nil {
			uc.logger.Warn("skipping customer", zap.String("customer_id", c.ID), zap.Error(err))
			continue
		}
		res.Customers++
	}

	uc.logger.Info("catalog refreshed",
		zap.String("business_id", locationID),
		zap.Int("items", res.Items),
		zap.Int("removed", res.Removed),
		zap.Int("stock_levels", res.StockLevels),
		zap.Int("customers", res.Customers),
	)
	return res, nil
}

// mergeLevel takes the remote quantity as the base and re-applies local deltas
// the remote has not seen yet.
func (uc *catalogUseCase) mergeLevel(ctx context.Context, l model.StockLevel) error {
	id := model.StockLevelID(l.ItemID, l.LocationID)
	_, err := uc.store.PatchFunc(ctx, localstore.StockLevels, id, func(doc localstore.Document) (localstore.Document, error) {
		pending, _ := doc["pending_delta"].(float64)
		doc["quantity"] = l.Quantity + int(pending)
		doc["updated_at"] = l.UpdatedAt
		return doc, nil
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	return uc.store.Upsert(ctx, localstore.StockLevels, localstore.Document{
		"id":          id,
		"item_id":     l.ItemID,
		"location_id": l.LocationID,
		"account_id":  l.TenantID,
		"quantity":    l.Quantity,
		"updated_at":  l.UpdatedAt,
	})
}

func (uc *catalogUseCase) Search(ctx context.Context, input *dto.SearchInput) ([]dto.Item, error) {
	actor := auth.GetActor(ctx)
	tenantID := input.TenantID
	if tenantID == "" {
		tenantID = actor.TenantID
	}
	locationID := input.LocationID
	if locationID == "" {
		locationID = actor.LocationID
	}
	if tenantID == "" {
		return nil, apperror.ErrMissingContext
	}

	selector := localstore.Document{"account_id": tenantID, "deleted": false}
	if input.ItemType != "" {
		selector["item_type"] = string(input.ItemType)
	}
	docs, err := uc.store.Find(ctx, localstore.InventoryItems, localstore.Query{Selector: selector, SortBy: "name"})
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := strings.ToLower(strings.TrimSpace(input.Query))

	out := make([]dto.Item, 0, min(limit, len(docs)))
	for _, doc := range docs {
		var it model.InventoryItem
		if err := localstore.Decode(doc, &it); err != nil {
			return nil, err
		}
		if q != "" && !strings.Contains(strings.ToLower(it.Name), q) && !strings.Contains(strings.ToLower(it.SKU), q) {
			continue
		}

		item := dto.Item{
			ID:           it.ID,
			Name:         it.Name,
			SKU:          it.SKU,
			ItemType:     it.ItemType,
			SellingPrice: it.SellingPrice,
		}
		if it.ItemType.TracksStock() && locationID != "" {
			if level, err := uc.store.FindOne(ctx, localstore.StockLevels, model.StockLevelID(it.ID, locationID)); err == nil {
				qty, _ := level["quantity"].(float64)
				n := int(qty)
				item.Quantity = &n
				item.Tentative, _ = level["tentative"].(bool)
			}
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// DrainHook refreshes the catalog after every drain that reached the remote.
func DrainHook(uc catalog.UseCase, tenantID, locationID string, log logger.ZapLogger) func(context.Context, *syncdto.DrainResult) {
	return func(ctx context.Context, res *syncdto.DrainResult) {
		if res.Skipped || tenantID == "" || locationID == "" {
			return
		}
		if _, err := uc.Refresh(ctx, tenantID, locationID); err != nil {
			log.Warn("catalog refresh after drain failed", zap.Error(err))
		}
	}
}
