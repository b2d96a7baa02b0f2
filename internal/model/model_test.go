package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMovementSigns(t *testing.T) {
	outbound := []MovementType{MovementReserveOut, MovementAdjustmentOut, MovementWasteOut, MovementTestingStock, MovementRelocatedOut}
	inbound := []MovementType{MovementReserveReleaseIn, MovementInitialStock, MovementAdjustmentIn, MovementPurchaseIn, MovementReturnIn}

	for _, m := range outbound {
		assert.True(t, m.IsOutbound(), m)
		assert.Equal(t, -3, m.Delta(3), m)
		assert.Equal(t, -3, m.Delta(-3), m)
	}
	for _, m := range inbound {
		assert.False(t, m.IsOutbound(), m)
		assert.Equal(t, 3, m.Delta(3), m)
	}

	assert.False(t, MovementType("SALE_OUT").Valid())
	assert.Equal(t, 0, MovementType("SALE_OUT").Delta(2))
}

func TestReserveAndReleaseCancelOut(t *testing.T) {
	for _, q := range []int{1, 2, 17} {
		assert.Zero(t, MovementReserveOut.Delta(q)+MovementReserveReleaseIn.Delta(q))
	}
}

func TestOrderTransitions(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransition(OrderStatusPaid))
	assert.True(t, OrderStatusPending.CanTransition(OrderStatusAbandoned))
	assert.False(t, OrderStatusPending.CanTransition(OrderStatusPending))
	assert.False(t, OrderStatusPaid.CanTransition(OrderStatusAbandoned))
	assert.False(t, OrderStatusAbandoned.CanTransition(OrderStatusPaid))
}

func TestCashDifference(t *testing.T) {
	diff := CashDifference(decimal.NewFromInt(145), decimal.NewFromInt(100), decimal.NewFromInt(50))
	assert.True(t, diff.Equal(decimal.NewFromInt(-5)), diff.String())
}

func TestStockLevelID(t *testing.T) {
	assert.Equal(t, "item-1:loc-9", StockLevelID("item-1", "loc-9"))
	assert.True(t, ItemTypeProduct.TracksStock())
	assert.False(t, ItemTypeService.TracksStock())
}
