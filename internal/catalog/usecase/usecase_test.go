package usecase_test

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/auth"
	"github.com/fekuna/omnipos-offline-sync/internal/catalog"
	"github.com/fekuna/omnipos-offline-sync/internal/catalog/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/catalog/usecase"
	"github.com/fekuna/omnipos-offline-sync/internal/fake"
	"github.com/fekuna/omnipos-offline-sync/internal/localstore"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	syncdto "github.com/fekuna/omnipos-offline-sync/internal/syncqueue/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tenant   = "tenant-1"
	location = "loc-1"
)

type fixture struct {
	uc     catalog.UseCase
	store  *localstore.Store
	remote *fake.Remote
	conn   *fake.Switch
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  localstore.New(localstore.NewMemoryPersister(), localstore.DefaultSchemas()...),
		remote: fake.NewRemote(),
		conn:   fake.NewSwitch(true),
	}
	f.uc = usecase.NewCatalogUseCase(f.remote, f.store, f.conn, logger.NewNop())

	f.remote.PutItem(model.InventoryItem{ID: "item-1", TenantID: tenant, Name: "Café molido", SKU: "CAF-250", ItemType: model.ItemTypeProduct, SellingPrice: 12.5})
	f.remote.PutItem(model.InventoryItem{ID: "item-2", TenantID: tenant, Name: "Azúcar", SKU: "AZU-1", ItemType: model.ItemTypeProduct, SellingPrice: 3})
	f.remote.PutItem(model.InventoryItem{ID: "svc-1", TenantID: tenant, Name: "Corte de cabello", ItemType: model.ItemTypeService, SellingPrice: 15})
	f.remote.PutItem(model.InventoryItem{ID: "other", TenantID: "tenant-2", Name: "Café ajeno", ItemType: model.ItemTypeProduct, SellingPrice: 1})
	f.remote.PutCustomer(model.Customer{ID: "c-1", TenantID: tenant, Name: "Ana", DocType: "13", DocNumber: "1020"})
	f.remote.SetStock("item-1", location, 7)
	f.remote.SetStock("item-2", location, 0)
	return f
}

func (f *fixture) level(t *testing.T, itemID string) localstore.Document {
	t.Helper()
	doc, err := f.store.FindOne(context.Background(), localstore.StockLevels, model.StockLevelID(itemID, location))
	require.NoError(t, err)
	return doc
}

func TestRefreshMirrorsRemote(t *testing.T) {
	f := newFixture(t)

	res, err := f.uc.Refresh(context.Background(), tenant, location)
	require.NoError(t, err)
	assert.Equal(t, &dto.RefreshResult{Items: 3, StockLevels: 2, Customers: 1}, res)

	assert.Equal(t, 3, f.store.Count(localstore.InventoryItems, nil))
	assert.Equal(t, float64(7), f.level(t, "item-1")["quantity"])

	customer, err := f.store.FindOne(context.Background(), localstore.Customers, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", customer["name"])
}

func TestRefreshKeepsUnsyncedDeltas(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Upsert(context.Background(), localstore.StockLevels, localstore.Document{
		"id":            model.StockLevelID("item-1", location),
		"item_id":       "item-1",
		"location_id":   location,
		"account_id":    tenant,
		"quantity":      4,
		"pending_delta": -2,
		"tentative":     true,
	}))

	_, err := f.uc.Refresh(context.Background(), tenant, location)
	require.NoError(t, err)

	doc := f.level(t, "item-1")
	assert.Equal(t, float64(5), doc["quantity"])
	assert.Equal(t, float64(-2), doc["pending_delta"])
	assert.Equal(t, true, doc["tentative"])
}

func TestRefreshTombstonesRemovedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.Refresh(ctx, tenant, location)
	require.NoError(t, err)

	f.remote.DeleteItem("item-2")
	res, err := f.uc.Refresh(ctx, tenant, location)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)

	doc, err := f.store.FindOne(ctx, localstore.InventoryItems, "item-2")
	require.NoError(t, err)
	assert.Equal(t, true, doc["deleted"])

	items, err := f.uc.Search(ctx, &dto.SearchInput{TenantID: tenant, Query: "azú"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRefreshRequiresConnectivity(t *testing.T) {
	f := newFixture(t)
	f.conn.Set(false)

	_, err := f.uc.Refresh(context.Background(), tenant, location)
	assert.ErrorIs(t, err, apperror.ErrOffline)
	assert.Zero(t, f.remote.Calls("ListItems"))

	f.conn.Set(true)
	_, err = f.uc.Refresh(context.Background(), "", location)
	assert.ErrorIs(t, err, apperror.ErrMissingContext)
}

func TestSearchWorksOffline(t *testing.T) {
	f := newFixture(t)
	ctx := auth.WithActor(context.Background(), auth.Actor{TenantID: tenant, UserID: "user-1", LocationID: location})

	_, err := f.uc.Refresh(ctx, tenant, location)
	require.NoError(t, err)
	f.conn.Set(false)

	items, err := f.uc.Search(ctx, &dto.SearchInput{Query: "caf"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "item-1", items[0].ID)
	require.NotNil(t, items[0].Quantity)
	assert.Equal(t, 7, *items[0].Quantity)

	items, err = f.uc.Search(ctx, &dto.SearchInput{Query: "azu-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "item-2", items[0].ID)

	items, err = f.uc.Search(ctx, &dto.SearchInput{ItemType: model.ItemTypeService})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Quantity)

	items, err = f.uc.Search(ctx, &dto.SearchInput{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "Azúcar", items[0].Name)
}

func TestDrainHook(t *testing.T) {
	f := newFixture(t)
	hook := usecase.DrainHook(f.uc, tenant, location, logger.NewNop())

	hook(context.Background(), &syncdto.DrainResult{Skipped: true})
	assert.Zero(t, f.remote.Calls("ListItems"))

	hook(context.Background(), &syncdto.DrainResult{Attempted: 1, Synced: 1})
	assert.Equal(t, 1, f.remote.Calls("ListItems"))
}
