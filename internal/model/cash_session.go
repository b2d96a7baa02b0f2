package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CashSessionStatus string

const (
	CashSessionOpen   CashSessionStatus = "OPEN"
	CashSessionClosed CashSessionStatus = "CLOSED"
)

type CashSession struct {
	ID               string              `db:"id" json:"id"`
	TenantID         string              `db:"account_id" json:"account_id"`
	LocationID       string              `db:"business_id" json:"business_id"`
	OpenedBy         string              `db:"opened_by_user_id" json:"opened_by_user_id"`
	ClosedBy         *string             `db:"closed_by_user_id" json:"closed_by_user_id"`
	OpeningBalance   decimal.Decimal     `db:"opening_balance" json:"opening_balance"`
	ClosingBalance   decimal.NullDecimal `db:"closing_balance" json:"closing_balance"`
	CalculatedCashIn decimal.NullDecimal `db:"calculated_cash_in" json:"calculated_cash_in"`
	Difference       decimal.NullDecimal `db:"difference" json:"difference"`
	Status           CashSessionStatus   `db:"status" json:"status"`
	Notes            string              `db:"notes" json:"notes"`
	OpenedAt         time.Time           `db:"opened_at" json:"opened_at"`
	ClosedAt         *time.Time          `db:"closed_at" json:"closed_at"`
}

// ExpectedCash is what should be in the drawer: opening balance plus cash sales.
func ExpectedCash(opening, cashIn decimal.Decimal) decimal.Decimal {
	return opening.Add(cashIn)
}

// CashDifference is counted - (opening + cashIn). Negative means the drawer is short.
func CashDifference(counted, opening, cashIn decimal.Decimal) decimal.Decimal {
	return counted.Sub(ExpectedCash(opening, cashIn))
}

type CashSessionSummary struct {
	SessionID      string          `json:"session_id"`
	TotalCashSales decimal.Decimal `db:"total_cash_sales" json:"total_cash_sales"`
}
