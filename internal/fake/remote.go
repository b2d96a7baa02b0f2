// Package fake provides an in-memory stand-in for the remote backend and the
// connectivity monitor, for usecase tests.
package fake

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	catalogdto "github.com/fekuna/omnipos-offline-sync/internal/catalog/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/localstore"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/shopspring/decimal"
)

// Remote implements the stock, order, cash session, catalog and sync queue repositories.
type Remote struct {
	mu        sync.Mutex
	rows      map[string]map[string]map[string]any
	stock     map[string]int
	movements map[string]model.StockMovement
	orders    map[string]*model.Order
	payments  []model.Payment
	sessions  map[string]*model.CashSession
	items     map[string]model.InventoryItem
	customers map[string]model.Customer
	failures  map[string]error
	calls     map[string]int
}

func NewRemote() *Remote {
	return &Remote{
		rows:      map[string]map[string]map[string]any{},
		stock:     map[string]int{},
		movements: map[string]model.StockMovement{},
		orders:    map[string]*model.Order{},
		sessions:  map[string]*model.CashSession{},
		items:     map[string]model.InventoryItem{},
		customers: map[string]model.Customer{},
		failures:  map[string]error{},
		calls:     map[string]int{},
	}
}

// Fail makes every call to op return err until Fail(op, nil).
func (r *Remote) Fail(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, op)
		return
	}
	r.failures[op] = err
}

func (r *Remote) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// enter must be called with mu held.
func (r *Remote) enter(op string) error {
	r.calls[op]++
	return r.failures[op]
}

func (r *Remote) SetStock(itemID, locationID string, qty int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock[model.StockLevelID(itemID, locationID)] = qty
}

func (r *Remote) Stock(itemID, locationID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[model.StockLevelID(itemID, locationID)]
}

// Movements returns the applied movements ordered by creation time.
func (r *Remote) Movements() []model.StockMovement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.StockMovement, 0, len(r.movements))
	for _, m := range r.movements {
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Remote) Order(id string) (model.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return model.Order{}, false
	}
	cp := *o
	cp.Items = append([]model.OrderItem(nil), o.Items...)
	return cp, true
}

func (r *Remote) OrderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *Remote) Payments() []model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Payment(nil), r.payments...)
}

// Rows returns generic rows written to a table the fake has no model for.
func (r *Remote) Rows(table string) map[string]map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]map[string]any{}
	for id, row := range r.rows[table] {
		out[id] = row
	}
	return out
}

func (r *Remote) AdjustStock(_ context.Context, m *model.StockMovement) (*model.AdjustResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("AdjustStock"); err != nil {
		return nil, err
	}

	if prev, ok := r.movements[m.ID]; ok {
		return &model.AdjustResult{Status: model.AdjustStatusSuccess, QuantityAfter: prev.QuantityAfter}, nil
	}

	key := model.StockLevelID(m.ItemID, m.LocationID)
	current := r.stock[key]
	next := current + m.QuantityDelta
	if m.QuantityDelta < 0 && next < 0 {
		return &model.AdjustResult{
			Status:  model.AdjustStatusError,
			Message: fmt.Sprintf("disponible %d, solicitado %d", current, -m.QuantityDelta),
		}, nil
	}
	r.stock[key] = next

	applied := *m
	applied.QuantityAfter = next
	r.movements[m.ID] = applied
	return &model.AdjustResult{Status: model.AdjustStatusSuccess, QuantityAfter: next}, nil
}

func (r *Remote) CreateOrder(_ context.Context, o *model.Order, items []model.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("CreateOrder"); err != nil {
		return err
	}
	cp := *o
	cp.Items = append([]model.OrderItem(nil), items...)
	r.orders[o.ID] = &cp
	return nil
}

func (r *Remote) GetOrder(_ context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("GetOrder"); err != nil {
		return nil, err
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, apperror.ErrNotFound)
	}
	cp := *o
	cp.Items = append([]model.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (r *Remote) UpdateOrderStatus(_ context.Context, id string, to model.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("UpdateOrderStatus"); err != nil {
		return err
	}
	return r.transition(id, to)
}

func (r *Remote) MarkPaid(_ context.Context, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("MarkPaid"); err != nil {
		return err
	}
	if err := r.transition(p.OrderID, model.OrderStatusPaid); err != nil {
		return err
	}
	r.payments = append(r.payments, *p)
	return nil
}

func (r *Remote) transition(id string, to model.OrderStatus) error {
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, apperror.ErrNotFound)
	}
	if o.Status != model.OrderStatusPending {
		return fmt.Errorf("order %s is %s: %w", id, o.Status, apperror.ErrInvalidTransition)
	}
	o.Status = to
	return nil
}

// Insert maps the order tables onto the typed state and keeps anything else as raw rows.
func (r *Remote) Insert(_ context.Context, table string, row map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Insert"); err != nil {
		return err
	}

	switch table {
	case "orders":
		var o model.Order
		if err := localstore.Decode(row, &o); err != nil {
			return err
		}
		r.orders[o.ID] = &o
	case "order_items":
		var it model.OrderItem
		if err := localstore.Decode(row, &it); err != nil {
			return err
		}
		o, ok := r.orders[it.OrderID]
		if !ok {
			return apperror.NewValidation(table, "order_id", "violates foreign key constraint")
		}
		o.Items = append(o.Items, it)
	case "payments":
		var p model.Payment
		if err := localstore.Decode(row, &p); err != nil {
			return err
		}
		r.payments = append(r.payments, p)
	default:
		id, _ := row["id"].(string)
		if r.rows[table] == nil {
			r.rows[table] = map[string]map[string]any{}
		}
		r.rows[table][id] = row
	}
	return nil
}

func (r *Remote) Update(_ context.Context, table, id string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Update"); err != nil {
		return err
	}

	if table == "orders" {
		o, ok := r.orders[id]
		if !ok {
			return fmt.Errorf("orders %s: %w", id, apperror.ErrNotFound)
		}
		if status, ok := fields["status"].(string); ok {
			o.Status = model.OrderStatus(status)
		}
		return nil
	}

	row, ok := r.rows[table][id]
	if !ok {
		return fmt.Errorf("%s %s: %w", table, id, apperror.ErrNotFound)
	}
	for k, v := range fields {
		row[k] = v
	}
	return nil
}

func (r *Remote) SoftDelete(_ context.Context, table, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("SoftDelete"); err != nil {
		return err
	}
	row, ok := r.rows[table][id]
	if !ok {
		return fmt.Errorf("%s %s: %w", table, id, apperror.ErrNotFound)
	}
	row["deleted"] = true
	return nil
}

func (r *Remote) OpenSession(_ context.Context, s *model.CashSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("OpenSession"); err != nil {
		return err
	}
	for _, existing := range r.sessions {
		if existing.TenantID == s.TenantID && existing.LocationID == s.LocationID && existing.Status == model.CashSessionOpen {
			return apperror.ErrSessionAlreadyOpen
		}
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *Remote) GetSession(_ context.Context, id string) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("GetSession"); err != nil {
		return nil, err
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("cash session %s: %w", id, apperror.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (r *Remote) GetActiveSession(_ context.Context, tenantID, locationID string) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("GetActiveSession"); err != nil {
		return nil, err
	}
	for _, s := range r.sessions {
		if s.TenantID == tenantID && s.LocationID == locationID && s.Status == model.CashSessionOpen {
			cp := *s
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("active cash session: %w", apperror.ErrNotFound)
}

func (r *Remote) SessionSummary(_ context.Context, sessionID string) (*model.CashSessionSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("SessionSummary"); err != nil {
		return nil, err
	}
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("cash session %s: %w", sessionID, apperror.ErrNotFound)
	}

	total := decimal.Zero
	for _, p := range r.payments {
		if p.Status != model.PaymentStatusApproved || p.PaymentMethodID != model.PaymentMethodCash {
			continue
		}
		o, ok := r.orders[p.OrderID]
		if !ok || o.TenantID != s.TenantID || o.LocationID != s.LocationID {
			continue
		}
		if p.CreatedAt.Before(s.OpenedAt) || (s.ClosedAt != nil && p.CreatedAt.After(*s.ClosedAt)) {
			continue
		}
		total = total.Add(p.Amount)
	}
	return &model.CashSessionSummary{SessionID: sessionID, TotalCashSales: total}, nil
}

func (r *Remote) CloseSession(_ context.Context, s *model.CashSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("CloseSession"); err != nil {
		return err
	}
	existing, ok := r.sessions[s.ID]
	if !ok || existing.Status != model.CashSessionOpen {
		return apperror.ErrSessionNotOpen
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *Remote) PutItem(it model.InventoryItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[it.ID] = it
}

func (r *Remote) DeleteItem(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

func (r *Remote) PutCustomer(c model.Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[c.ID] = c
}

func (r *Remote) ListItems(_ context.Context, f *catalogdto.ItemFilters) ([]model.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("ListItems"); err != nil {
		return nil, err
	}
	search := strings.ToLower(f.SearchQuery)
	var out []model.InventoryItem
	for _, it := range r.items {
		if it.TenantID != f.TenantID || (f.ItemType != "" && it.ItemType != f.ItemType) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(it.Name), search) && !strings.Contains(strings.ToLower(it.SKU), search) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListStockLevels reports every level recorded for the location; the fake keeps one tenant per location.
func (r *Remote) ListStockLevels(_ context.Context, tenantID, locationID string) ([]model.StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("ListStockLevels"); err != nil {
		return nil, err
	}
	var out []model.StockLevel
	suffix := ":" + locationID
	for key, qty := range r.stock {
		if !strings.HasSuffix(key, suffix) {
			continue
		}
		itemID := strings.TrimSuffix(key, suffix)
		out = append(out, model.StockLevel{
			ID:         key,
			ItemID:     itemID,
			LocationID: locationID,
			TenantID:   tenantID,
			Quantity:   qty,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Remote) ListCustomers(_ context.Context, tenantID string) ([]model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("ListCustomers"); err != nil {
		return nil, err
	}
	var out []model.Customer
	for _, c := range r.customers {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Switch is a connectivity.Checker the test flips by hand.
type Switch struct {
	online atomic.Bool
}

func NewSwitch(online bool) *Switch {
	s := &Switch{}
	s.online.Store(online)
	return s
}

func (s *Switch) IsOnline() bool { return s.online.Load() }

func (s *Switch) Set(online bool) { s.online.Store(online) }
