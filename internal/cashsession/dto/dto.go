package dto

import "github.com/shopspring/decimal"

type OpenInput struct {
	LocationID     string          `json:"business_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Notes          string          `json:"notes"`
}

type CloseInput struct {
	SessionID      string          `json:"-"`
	CountedBalance decimal.Decimal `json:"closing_balance"`
	// ComputedCashIn is the cash-sales total shown to the cashier; nil recomputes it.
	ComputedCashIn *decimal.Decimal `json:"calculated_cash_in"`
	Notes          string           `json:"notes"`
}
