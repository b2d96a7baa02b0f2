package dto

import (
	orderdto "github.com/fekuna/omnipos-offline-sync/internal/order/dto"
	"github.com/shopspring/decimal"
)

type Notification struct {
	PaymentID string          `json:"payment_id" binding:"required"`
	OrderID   string          `json:"order_id" binding:"required"`
	Status    string          `json:"status" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Type      string          `json:"payment_type"`
	TenantID  string          `json:"account_id"`
}

type Action string

const (
	ActionConfirmed Action = "confirmed"
	ActionAbandoned Action = "abandoned"
	ActionIgnored   Action = "ignored"
)

type NotificationResult struct {
	Action Action                `json:"action"`
	Order  *orderdto.OrderResult `json:"order,omitempty"`
}
