package localstore

const (
	InventoryItems = "inventory_items"
	StockLevels    = "stock_levels"
	Customers      = "customers"
	SyncQueue      = "sync_queue"
	Orders         = "orders"
	Reservations   = "stock_reservations"
)

func InventoryItemsSchema() *Schema {
	return &Schema{
		Name:       InventoryItems,
		Version:    0,
		PrimaryKey: "id",
		Fields: map[string]Field{
			"id":            {Type: TypeString, Required: true},
			"account_id":    {Type: TypeString, Required: true},
			"name":          {Type: TypeString, Required: true},
			"sku":           {Type: TypeString},
			"item_type":     {Type: TypeString, Enum: []string{"PRODUCT", "SERVICE"}},
			"item_status":   {Type: TypeString},
			"selling_price": {Type: TypeNumber, Required: true},
			"cost_price":    {Type: TypeNumber},
			"description":   {Type: TypeString},
			"image_url":     {Type: TypeString},
			"updated_at":    {Type: TypeString},
			"deleted":       {Type: TypeBoolean, Default: false},
		},
	}
}

// StockLevelsSchema is at version 1: version 0 documents predate offline
// reconciliation and lack tentative/pending_delta.
func StockLevelsSchema() *Schema {
	return &Schema{
		Name:       StockLevels,
		Version:    1,
		PrimaryKey: "id",
		Fields: map[string]Field{
			"id":            {Type: TypeString, Required: true},
			"item_id":       {Type: TypeString, Required: true},
			"location_id":   {Type: TypeString, Required: true},
			"account_id":    {Type: TypeString, Required: true},
			"quantity":      {Type: TypeInteger, Required: true},
			"tentative":     {Type: TypeBoolean, Default: false},
			"pending_delta": {Type: TypeInteger, Default: float64(0)},
			"updated_at":    {Type: TypeString},
		},
		Migrations: map[int]MigrationFunc{
			0: func(doc Document) (Document, error) {
				doc["tentative"] = false
				doc["pending_delta"] = float64(0)
				return doc, nil
			},
		},
	}
}

func CustomersSchema() *Schema {
	return &Schema{
		Name:       Customers,
		Version:    0,
		PrimaryKey: "id",
		Fields: map[string]Field{
			"id":         {Type: TypeString, Required: true},
			"account_id": {Type: TypeString, Required: true},
			"name":       {Type: TypeString, Required: true},
			"doc_type":   {Type: TypeString},
			"doc_number": {Type: TypeString},
			"email":      {Type: TypeString},
			"phone":      {Type: TypeString},
		},
	}
}

func SyncQueueSchema() *Schema {
	return &Schema{
		Name:       SyncQueue,
		Version:    0,
		PrimaryKey: "id",
		Fields: map[string]Field{
			"id":         {Type: TypeString, Required: true},
			"operation":  {Type: TypeString, Required: true, Enum: []string{"INSERT", "UPDATE", "DELETE"}},
			"table_name": {Type: TypeString, Required: true},
			"payload":    {Type: TypeObject, Required: true},
			"created_at": {Type: TypeString, Required: true},
			"seq":        {Type: TypeInteger, Required: true},
			"status":     {Type: TypeString, Default: "PENDING", Enum: []string{"PENDING", "SYNCING", "ERROR"}},
			"last_error": {Type: TypeString},
			"attempts":   {Type: TypeInteger, Default: float64(0)},
			"rejected":   {Type: TypeBoolean, Default: false},
		},
	}
}

// OrdersSchema holds orders created or transitioned on this terminal, so the
// order state machine can be enforced while offline.
func OrdersSchema() *Schema {
	return &Schema{
		Name:       Orders,
		Version:    0,
		PrimaryKey: "id",
		Fields: map[string]Field{
			"id":           {Type: TypeString, Required: true},
			"account_id":   {Type: TypeString, Required: true},
			"business_id":  {Type: TypeString, Required: true},
			"status":       {Type: TypeString, Required: true, Enum: []string{"PENDING", "PAID", "ABANDONED"}},
			"total_amount": {Type: TypeString},
			"items":        {Type: TypeArray},
			"offline":      {Type: TypeBoolean, Default: false},
			"updated_at":   {Type: TypeString},
		},
	}
}

// ReservationsSchema tracks offline reservations until the remote settles them.
func ReservationsSchema() *Schema {
	return &Schema{
		Name:       Reservations,
		Version:    0,
		PrimaryKey: "id",
		Fields: map[string]Field{
			"id":          {Type: TypeString, Required: true},
			"item_id":     {Type: TypeString, Required: true},
			"location_id": {Type: TypeString, Required: true},
			"account_id":  {Type: TypeString, Required: true},
			"quantity":    {Type: TypeInteger, Required: true},
			"state":       {Type: TypeString, Required: true, Enum: []string{"PENDING", "REJECTED"}},
			"released":    {Type: TypeBoolean, Default: false},
			"created_at":  {Type: TypeString},
		},
	}
}

// DefaultSchemas is every collection the terminal agent uses.
func DefaultSchemas() []*Schema {
	return []*Schema{
		InventoryItemsSchema(),
		StockLevelsSchema(),
		CustomersSchema(),
		SyncQueueSchema(),
		OrdersSchema(),
		ReservationsSchema(),
	}
}
