package dto

import (
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/shopspring/decimal"
)

type CartLine struct {
	ItemID    string          `json:"item_id" binding:"required"`
	Name      string          `json:"name"`
	ItemType  model.ItemType  `json:"item_type"`
	Quantity  int             `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Customer struct {
	ClientID  *string `json:"client_id"`
	Name      string  `json:"name"`
	DocType   string  `json:"doc_type"`
	DocNumber string  `json:"doc_number"`
}

type CreateOrderInput struct {
	// LocationID overrides the actor's location.
	LocationID string     `json:"business_id"`
	Customer   Customer   `json:"customer"`
	Cart       []CartLine `json:"cart"`
}

type CancelOrderInput struct {
	OrderID    string     `json:"-"`
	LocationID string     `json:"business_id"`
	Items      []CartLine `json:"items"`
}

type PaymentInput struct {
	OrderID    string          `json:"-"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Type       string          `json:"type"`
	ExternalID *string         `json:"external_id"`
}

type OrderResult struct {
	OrderID string            `json:"order_id"`
	Status  model.OrderStatus `json:"status"`
	Total   decimal.Decimal   `json:"total"`
	Offline bool              `json:"offline"`
}
