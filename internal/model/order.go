package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusAbandoned OrderStatus = "ABANDONED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusAbandoned
}

// CanTransition enforces PENDING -> PAID | ABANDONED and nothing else.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	return s == OrderStatusPending && to.IsTerminal()
}

const (
	WalkInCustomerName = "Consumidor Final"
	WalkInDocType      = "99"
	WalkInDocNumber    = "0"
)

type Order struct {
	ID                string          `db:"id" json:"id"`
	TenantID          string          `db:"account_id" json:"account_id"`
	LocationID        string          `db:"business_id" json:"business_id"`
	ClientID          *string         `db:"client_id" json:"client_id"` // nil = walk-in
	CustomerName      string          `db:"customer_name" json:"customer_name"`
	CustomerDocType   string          `db:"customer_doc_type" json:"customer_doc_type"`
	CustomerDocNumber string          `db:"customer_doc_number" json:"customer_doc_number"`
	TotalAmount       decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status            OrderStatus     `db:"status" json:"status"`
	CreatedBy         string          `db:"created_by" json:"created_by"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	Items             []OrderItem     `db:"-" json:"-"`
}

type OrderItem struct {
	ID        string          `db:"id" json:"id"`
	TenantID  string          `db:"account_id" json:"account_id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	ItemID    string          `db:"item_id" json:"item_id"`
	ItemType  ItemType        `db:"item_type" json:"item_type"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	ItemName  string          `db:"item_name" json:"-"`
}

const (
	PaymentStatusApproved = "approved"
	PaymentMethodCash     = "CASH"
)

type Payment struct {
	ID              string          `db:"id" json:"id"`
	TenantID        string          `db:"account_id" json:"account_id"`
	OrderID         string          `db:"order_id" json:"order_id"`
	CreatedBy       *string         `db:"created_by" json:"created_by"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Status          string          `db:"status" json:"status"`
	PaymentMethodID string          `db:"payment_method_id" json:"payment_method_id"`
	PaymentType     string          `db:"payment_type" json:"payment_type"`
	ExternalID      *string         `db:"mp_payment_id" json:"mp_payment_id"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
