package dto

import "github.com/fekuna/omnipos-offline-sync/internal/model"

type AdjustInput struct {
	ItemID       string             `json:"item_id" binding:"required"`
	MovementType model.MovementType `json:"movement_type" binding:"required"`
	// Quantity is a positive magnitude; the movement type decides the sign.
	Quantity int    `json:"quantity" binding:"required"`
	Reason   string `json:"reason"`
}

type AdjustOutput struct {
	MovementID    string `json:"movement_id"`
	QuantityDelta int    `json:"quantity_delta"`
	QuantityAfter int    `json:"quantity_after"`
	Offline       bool   `json:"offline"`
}

type Line struct {
	ItemID   string
	ItemName string
	ItemType model.ItemType
	Quantity int
	// ReservationID is the RESERVE_OUT that covered this line, when known.
	ReservationID string
}

type ReservationInput struct {
	TenantID   string
	LocationID string
	ActorID    *string
	Reason     string
	Lines      []Line
	// Offline forces the path; callers decide it once per command.
	Offline bool
}

type ReservationOutput struct {
	Offline   bool
	Movements []model.StockMovement
	// Lines mirrors the input lines with ReservationID filled in.
	Lines []Line
}
