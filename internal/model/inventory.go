package model

import (
	"fmt"
	"time"
)

type ItemType string

const (
	ItemTypeProduct ItemType = "PRODUCT"
	ItemTypeService ItemType = "SERVICE"
)

// TracksStock reports whether movements apply to this item. Services never touch stock.
func (t ItemType) TracksStock() bool {
	return t == ItemTypeProduct
}

type InventoryItem struct {
	ID           string    `db:"id" json:"id"`
	TenantID     string    `db:"account_id" json:"account_id"`
	Name         string    `db:"name" json:"name"`
	SKU          string    `db:"sku" json:"sku"`
	ItemType     ItemType  `db:"item_type" json:"item_type"`
	ItemStatus   string    `db:"item_status" json:"item_status"`
	SellingPrice float64   `db:"selling_price" json:"selling_price"`
	CostPrice    float64   `db:"cost_price" json:"cost_price"`
	Description  string    `db:"description" json:"description"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StockLevel is keyed by (item, location). Tentative and PendingDelta only
// exist in the local cache: they track offline deltas not yet confirmed remotely.
type StockLevel struct {
	ID           string    `db:"-" json:"id"`
	ItemID       string    `db:"item_id" json:"item_id"`
	LocationID   string    `db:"business_id" json:"location_id"`
	TenantID     string    `db:"account_id" json:"account_id"`
	Quantity     int       `db:"quantity" json:"quantity"`
	Tentative    bool      `db:"-" json:"tentative"`
	PendingDelta int       `db:"-" json:"pending_delta"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func StockLevelID(itemID, locationID string) string {
	return fmt.Sprintf("%s:%s", itemID, locationID)
}

type MovementType string

const (
	MovementReserveOut       MovementType = "RESERVE_OUT"
	MovementReserveReleaseIn MovementType = "RESERVE_RELEASE_IN"
	MovementInitialStock     MovementType = "INITIAL_STOCK"
	MovementAdjustmentIn     MovementType = "ADJUSTMENT_IN"
	MovementAdjustmentOut    MovementType = "ADJUSTMENT_OUT"
	MovementPurchaseIn       MovementType = "PURCHASE_IN"
	MovementReturnIn         MovementType = "RETURN_IN"
	MovementWasteOut         MovementType = "WASTE_OUT"
	MovementTestingStock     MovementType = "TESTING_STOCK"
	MovementRelocatedOut     MovementType = "RELOCATED_OUT"
)

var movementSigns = map[MovementType]int{
	MovementReserveOut:       -1,
	MovementReserveReleaseIn: 1,
	MovementInitialStock:     1,
	MovementAdjustmentIn:     1,
	MovementAdjustmentOut:    -1,
	MovementPurchaseIn:       1,
	MovementReturnIn:         1,
	MovementWasteOut:         -1,
	MovementTestingStock:     -1,
	MovementRelocatedOut:     -1,
}

func (m MovementType) Valid() bool {
	_, ok := movementSigns[m]
	return ok
}

// Sign is -1 for outbound movements and +1 for inbound ones. Unknown types return 0.
func (m MovementType) Sign() int {
	return movementSigns[m]
}

func (m MovementType) IsOutbound() bool {
	return m.Sign() < 0
}

// Delta converts a positive magnitude into the signed quantity change.
func (m MovementType) Delta(quantity int) int {
	if quantity < 0 {
		quantity = -quantity
	}
	return m.Sign() * quantity
}

// StockMovement is the immutable unit of intent sent to the remote adjustment.
type StockMovement struct {
	ID            string       `db:"id" json:"id"`
	ItemID        string       `db:"item_id" json:"item_id"`
	LocationID    string       `db:"business_id" json:"business_id"`
	TenantID      string       `db:"account_id" json:"account_id"`
	QuantityDelta int          `db:"quantity_change" json:"quantity_change"`
	MovementType  MovementType `db:"movement_type" json:"movement_type"`
	Reason        string       `db:"reason" json:"reason"`
	ActorID       *string      `db:"user_id" json:"user_id"` // nil for system actions
	QuantityAfter int          `db:"quantity_after" json:"-"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	// Reverses is the RESERVE_OUT a queued release undoes. Local only.
	Reverses string `db:"-" json:"reverses,omitempty"`
}

type ReservationState string

const (
	ReservationPending  ReservationState = "PENDING"
	ReservationRejected ReservationState = "REJECTED"
)

// Reservation follows a RESERVE_OUT queued offline until the remote settles it.
// Confirmed reservations are forgotten; a refused one is kept so its release
// is never sent.
type Reservation struct {
	ID         string           `json:"id"`
	ItemID     string           `json:"item_id"`
	LocationID string           `json:"location_id"`
	TenantID   string           `json:"account_id"`
	Quantity   int              `json:"quantity"`
	State      ReservationState `json:"state"`
	Released   bool             `json:"released"`
	CreatedAt  time.Time        `json:"created_at"`
}

const (
	AdjustStatusSuccess = "success"
	AdjustStatusError   = "error"
)

type AdjustResult struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	QuantityAfter int    `json:"quantity_after"`
}
