package dto

import "github.com/fekuna/omnipos-offline-sync/internal/model"

type ItemFilters struct {
	TenantID    string
	ItemType    model.ItemType
	SearchQuery string // name or sku
	ActiveOnly  bool
}

type SearchInput struct {
	TenantID   string
	LocationID string
	Query      string
	ItemType   model.ItemType
	Limit      int
}

// Item is an inventory item with its stock at the searched location.
type Item struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	SKU          string         `json:"sku"`
	ItemType     model.ItemType `json:"item_type"`
	SellingPrice float64        `json:"selling_price"`
	Quantity     *int           `json:"quantity"` // nil for services and unknown levels
	Tentative    bool           `json:"tentative"`
}

type RefreshResult struct {
	Items       int `json:"items"`
	Removed     int `json:"removed"`
	StockLevels int `json:"stock_levels"`
	Customers   int `json:"customers"`
}
