package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/auth"
	"github.com/fekuna/omnipos-offline-sync/internal/connectivity"
	"github.com/fekuna/omnipos-offline-sync/internal/localstore"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/metrics"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/fekuna/omnipos-offline-sync/internal/order"
	"github.com/fekuna/omnipos-offline-sync/internal/order/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/stock"
	stockdto "github.com/fekuna/omnipos-offline-sync/internal/stock/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultPaymentType = "point"

type orderUseCase struct {
	repo    order.Repository
	stock   stock.UseCase
	queue   syncqueue.UseCase
	store   *localstore.Store
	conn    connectivity.Checker
	metrics *metrics.Metrics
	logger  logger.ZapLogger
}

func NewOrderUseCase(repo order.Repository, stockUC stock.UseCase, queue syncqueue.UseCase, store *localstore.Store, conn connectivity.Checker, m *metrics.Metrics, log logger.ZapLogger) order.UseCase {
	return &orderUseCase{
		repo:    repo,
		stock:   stockUC,
		queue:   queue,
		store:   store,
		conn:    conn,
		metrics: m,
		logger:  log,
	}
}

func (uc *orderUseCase) CreateOrder(ctx context.Context, input *dto.CreateOrderInput) (*dto.OrderResult, error) {
	actor := auth.GetActor(ctx)
	locationID := input.LocationID
	if locationID == "" {
		locationID = actor.LocationID
	}
	if actor.TenantID == "" || actor.UserID == "" || locationID == "" {
		return nil, apperror.ErrMissingContext
	}
	if len(input.Cart) == 0 {
		return nil, apperror.ErrEmptyCart
	}

	cart, err := uc.resolveCart(ctx, input.Cart)
	if err != nil {
		return nil, err
	}

	offline := !uc.conn.IsOnline()
	now := time.Now().UTC()
	o := &model.Order{
		ID:                uuid.New().String(),
		TenantID:          actor.TenantID,
		LocationID:        locationID,
		ClientID:          input.Customer.ClientID,
		CustomerName:      orDefault(input.Customer.Name, model.WalkInCustomerName),
		CustomerDocType:   orDefault(input.Customer.DocType, model.WalkInDocType),
		CustomerDocNumber: orDefault(input.Customer.DocNumber, model.WalkInDocNumber),
		TotalAmount:       cartTotal(cart),
		Status:            model.OrderStatusPending,
		CreatedBy:         actor.UserID,
		CreatedAt:         now,
	}
	items := make([]model.OrderItem, len(cart))
	for i, line := range cart {
		items[i] = model.OrderItem{
			ID:        uuid.New().String(),
			TenantID:  actor.TenantID,
			OrderID:   o.ID,
			ItemID:    line.ItemID,
			ItemType:  line.ItemType,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			CreatedAt: now,
			ItemName:  line.Name,
		}
	}
	o.Items = items

	userID := actor.UserID
	reservation := &stockdto.ReservationInput{
		TenantID:   o.TenantID,
		LocationID: o.LocationID,
		ActorID:    &userID,
		Reason:     fmt.Sprintf("Reserva para orden POS: %s", o.ID),
		Lines:      toLines(cart),
		Offline:    offline,
	}
	reserved, err := uc.stock.Reserve(ctx, reservation)
	if err != nil {
		uc.metrics.OrdersTotal.WithLabelValues("rejected", metrics.PathLabel(offline)).Inc()
		return nil, err
	}
	reservation.Lines = reserved.Lines

	if err := uc.persistNew(ctx, o, offline); err != nil {
		reservation.Reason = fmt.Sprintf("Reversión de reserva, orden no registrada: %s", o.ID)
		if _, rerr := uc.stock.Release(ctx, reservation); rerr != nil {
			uc.logger.Error("failed to release reservation of unwritten order", zap.String("order_id", o.ID), zap.Error(rerr))
		}
		uc.metrics.OrdersTotal.WithLabelValues("rejected", metrics.PathLabel(offline)).Inc()
		return nil, err
	}

	uc.mirror(ctx, o, reserved.Lines, offline)
	uc.metrics.OrdersTotal.WithLabelValues(string(model.OrderStatusPending), metrics.PathLabel(offline)).Inc()
	uc.logger.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("total", o.TotalAmount.String()),
		zap.Int("lines", len(items)),
		zap.Bool("offline", offline),
	)
	return &dto.OrderResult{OrderID: o.ID, Status: o.Status, Total: o.TotalAmount, Offline: offline}, nil
}

func (uc *orderUseCase) persistNew(ctx context.Context, o *model.Order, offline bool) error {
	if !offline {
		return uc.repo.CreateOrder(ctx, o, o.Items)
	}

	var enqueued []string
	undo := func() {
		for _, id := range enqueued {
			uc.discard(ctx, id)
		}
	}

	entry, err := uc.queue.Enqueue(ctx, model.OpInsert, order.OrdersTable, o)
	if err != nil {
		return err
	}
	enqueued = append(enqueued, entry.ID)
	for i := range o.Items {
		entry, err := uc.queue.Enqueue(ctx, model.OpInsert, order.OrderItemsTable, &o.Items[i])
		if err != nil {
			undo()
			return err
		}
		enqueued = append(enqueued, entry.ID)
	}
	return nil
}

func (uc *orderUseCase) CancelOrder(ctx context.Context, input *dto.CancelOrderInput) (*dto.OrderResult, error) {
	actor := auth.GetActor(ctx)
	if actor.TenantID == "" || actor.UserID == "" {
		return nil, apperror.ErrMissingContext
	}
	userID := actor.UserID
	return uc.abandon(ctx, input.OrderID, input.LocationID, input.Items, &userID,
		fmt.Sprintf("Liberación de reserva por cancelación: %s", input.OrderID))
}

func (uc *orderUseCase) RejectPayment(ctx context.Context, orderID, reason string) (*dto.OrderResult, error) {
	return uc.abandon(ctx, orderID, "", nil, nil,
		fmt.Sprintf("Liberación de reserva por pago %s: %s", reason, orderID))
}

// abandon claims PENDING -> ABANDONED first and releases stock second, so a
// repeated cancel can never release the same reservation twice.
func (uc *orderUseCase) abandon(ctx context.Context, orderID, locationHint string, items []dto.CartLine, actorID *string, reason string) (*dto.OrderResult, error) {
	snap, err := uc.lookup(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !snap.Status.CanTransition(model.OrderStatusAbandoned) {
		return nil, fmt.Errorf("order %s is %s: %w", orderID, snap.Status, apperror.ErrInvalidTransition)
	}

	lines := snap.Lines
	if len(lines) == 0 && len(items) > 0 {
		cart, err := uc.resolveCart(ctx, items)
		if err != nil {
			return nil, err
		}
		lines = toLines(cart)
	}
	locationID := orDefault(snap.LocationID, locationHint)

	if snap.Queued {
		entry, err := uc.queue.Enqueue(ctx, model.OpUpdate, order.OrdersTable, statusPatch(orderID, model.OrderStatusAbandoned))
		if err != nil {
			return nil, err
		}
		if err := uc.transitionMirror(ctx, orderID, model.OrderStatusAbandoned); err != nil {
			uc.discard(ctx, entry.ID)
			return nil, err
		}
	} else {
		if err := uc.repo.UpdateOrderStatus(ctx, orderID, model.OrderStatusAbandoned); err != nil {
			return nil, err
		}
		uc.syncMirrorStatus(ctx, orderID, model.OrderStatusAbandoned)
	}

	_, err = uc.stock.Release(ctx, &stockdto.ReservationInput{
		TenantID:   snap.TenantID,
		LocationID: locationID,
		ActorID:    actorID,
		Reason:     reason,
		Lines:      lines,
		Offline:    snap.Queued,
	})
	if err != nil {
		uc.logger.Error("order abandoned but stock release failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("order %s abandoned, stock release failed: %w", orderID, err)
	}

	uc.metrics.OrdersTotal.WithLabelValues(string(model.OrderStatusAbandoned), metrics.PathLabel(snap.Queued)).Inc()
	uc.logger.Info("order abandoned", zap.String("order_id", orderID), zap.Bool("offline", snap.Queued))
	return &dto.OrderResult{OrderID: orderID, Status: model.OrderStatusAbandoned, Total: snap.Total, Offline: snap.Queued}, nil
}

// ConfirmPayment records the payment and marks the order PAID. Stock is untouched:
// the reservation already is the sale.
func (uc *orderUseCase) ConfirmPayment(ctx context.Context, input *dto.PaymentInput) (*dto.OrderResult, error) {
	actor := auth.GetActor(ctx)
	if actor.TenantID == "" {
		return nil, apperror.ErrMissingContext
	}
	if input.Amount.IsNegative() {
		return nil, apperror.NewValidation(order.PaymentsTable, "amount", "must not be negative")
	}

	snap, err := uc.lookup(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !snap.Status.CanTransition(model.OrderStatusPaid) {
		return nil, fmt.Errorf("order %s is %s: %w", input.OrderID, snap.Status, apperror.ErrInvalidTransition)
	}

	amount := input.Amount
	if amount.IsZero() {
		amount = snap.Total
	}
	var createdBy *string
	if actor.UserID != "" {
		userID := actor.UserID
		createdBy = &userID
	}
	p := &model.Payment{
		ID:              uuid.New().String(),
		TenantID:        orDefault(snap.TenantID, actor.TenantID),
		OrderID:         input.OrderID,
		CreatedBy:       createdBy,
		Amount:          amount,
		Status:          model.PaymentStatusApproved,
		PaymentMethodID: orDefault(input.Method, model.PaymentMethodCash),
		PaymentType:     orDefault(input.Type, defaultPaymentType),
		ExternalID:      input.ExternalID,
		CreatedAt:       time.Now().UTC(),
	}

	if snap.Queued {
		if err := uc.queuePayment(ctx, p); err != nil {
			return nil, err
		}
	} else {
		if err := uc.repo.MarkPaid(ctx, p); err != nil {
			return nil, err
		}
		uc.syncMirrorStatus(ctx, input.OrderID, model.OrderStatusPaid)
	}

	uc.metrics.OrdersTotal.WithLabelValues(string(model.OrderStatusPaid), metrics.PathLabel(snap.Queued)).Inc()
	uc.logger.Info("order paid",
		zap.String("order_id", input.OrderID),
		zap.String("payment_id", p.ID),
		zap.String("amount", amount.String()),
		zap.Bool("offline", snap.Queued),
	)
	return &dto.OrderResult{OrderID: input.OrderID, Status: model.OrderStatusPaid, Total: snap.Total, Offline: snap.Queued}, nil
}

// queuePayment writes the payment and the PAID transition to the queue before
// touching the mirror. On any failure the entries already queued are discarded.
func (uc *orderUseCase) queuePayment(ctx context.Context, p *model.Payment) error {
	paid, err := uc.queue.Enqueue(ctx, model.OpInsert, order.PaymentsTable, p)
	if err != nil {
		return err
	}
	status, err := uc.queue.Enqueue(ctx, model.OpUpdate, order.OrdersTable, statusPatch(p.OrderID, model.OrderStatusPaid))
	if err != nil {
		uc.discard(ctx, paid.ID)
		return err
	}
	if err := uc.transitionMirror(ctx, p.OrderID, model.OrderStatusPaid); err != nil {
		uc.discard(ctx, status.ID)
		uc.discard(ctx, paid.ID)
		return err
	}
	return nil
}

func (uc *orderUseCase) discard(ctx context.Context, entryID string) {
	if err := uc.queue.Discard(ctx, entryID); err != nil {
		uc.logger.Error("failed to discard queue entry", zap.String("entry_id", entryID), zap.Error(err))
	}
}

// Reconcile clears the offline mark once the queued order insert reached the remote.
func (uc *orderUseCase) Reconcile(ctx context.Context, entry *model.QueueEntry, outcome syncqueue.Outcome) error {
	if entry.Operation != model.OpInsert {
		return nil
	}
	id, _ := entry.Payload["id"].(string)

	switch outcome {
	case syncqueue.OutcomeConfirmed:
		_, err := uc.store.Patch(ctx, localstore.Orders, id, localstore.Document{"offline": false})
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	case syncqueue.OutcomeRejected:
		uc.logger.Warn("queued order was refused by the remote", zap.String("order_id", id))
	}
	return nil
}

type snapshot struct {
	TenantID   string
	LocationID string
	Status     model.OrderStatus
	Total      decimal.Decimal
	Lines      []stockdto.Line
	// Queued: the order, or the terminal, is offline; transitions go through the queue.
	Queued bool
}

type mirrorLine struct {
	ItemID        string         `json:"item_id"`
	ItemType      model.ItemType `json:"item_type"`
	Quantity      int            `json:"quantity"`
	Name          string         `json:"name"`
	ReservationID string         `json:"reservation_id,omitempty"`
}

type mirrorDoc struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"account_id"`
	LocationID  string            `json:"business_id"`
	Status      model.OrderStatus `json:"status"`
	TotalAmount string            `json:"total_amount"`
	Items       []mirrorLine      `json:"items"`
	Offline     bool              `json:"offline"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// lookup resolves the order's current state. An order whose insert is still
// queued is only known locally; otherwise, while online, the remote is authoritative.
func (uc *orderUseCase) lookup(ctx context.Context, id string) (*snapshot, error) {
	offline := !uc.conn.IsOnline()

	var local *snapshot
	doc, err := uc.store.FindOne(ctx, localstore.Orders, id)
	switch {
	case err == nil:
		var m mirrorDoc
		if err := localstore.Decode(doc, &m); err != nil {
			return nil, err
		}
		total, _ := decimal.NewFromString(m.TotalAmount)
		local = &snapshot{
			TenantID:   m.TenantID,
			LocationID: m.LocationID,
			Status:     m.Status,
			Total:      total,
			Queued:     offline || m.Offline,
		}
		for _, l := range m.Items {
			local.Lines = append(local.Lines, stockdto.Line{
				ItemID:        l.ItemID,
				ItemName:      l.Name,
				ItemType:      l.ItemType,
				Quantity:      l.Quantity,
				ReservationID: l.ReservationID,
			})
		}
		if local.Queued {
			return local, nil
		}
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, err
	case offline:
		return nil, fmt.Errorf("order %s is not known on this terminal: %w", id, apperror.ErrOffline)
	}

	o, err := uc.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{
		TenantID:   o.TenantID,
		LocationID: o.LocationID,
		Status:     o.Status,
		Total:      o.TotalAmount,
	}
	for _, it := range o.Items {
		snap.Lines = append(snap.Lines, stockdto.Line{ItemID: it.ItemID, ItemName: it.ItemName, ItemType: it.ItemType, Quantity: it.Quantity})
	}
	if local != nil {
		if len(snap.Lines) == 0 {
			snap.Lines = local.Lines
		} else {
			attachReservations(snap.Lines, local.Lines)
		}
	}
	return snap, nil
}

// attachReservations copies the reservation ids recorded at creation onto the
// remote's lines, pairing them by item in order.
func attachReservations(lines, local []stockdto.Line) {
	ids := make(map[string][]string)
	for _, l := range local {
		if l.ReservationID != "" {
			ids[l.ItemID] = append(ids[l.ItemID], l.ReservationID)
		}
	}
	for i := range lines {
		if q := ids[lines[i].ItemID]; len(q) > 0 {
			lines[i].ReservationID = q[0]
			ids[lines[i].ItemID] = q[1:]
		}
	}
}

// mirror stores the order locally. reserved is aligned with o.Items.
func (uc *orderUseCase) mirror(ctx context.Context, o *model.Order, reserved []stockdto.Line, offline bool) {
	m := mirrorDoc{
		ID:          o.ID,
		TenantID:    o.TenantID,
		LocationID:  o.LocationID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount.String(),
		Offline:     offline,
		UpdatedAt:   time.Now().UTC(),
	}
	for i, it := range o.Items {
		line := mirrorLine{ItemID: it.ItemID, ItemType: it.ItemType, Quantity: it.Quantity, Name: it.ItemName}
		if i < len(reserved) {
			line.ReservationID = reserved[i].ReservationID
		}
		m.Items = append(m.Items, line)
	}
	doc, err := localstore.Encode(m)
	if err == nil {
		err = uc.store.Upsert(ctx, localstore.Orders, doc)
	}
	if err != nil {
		uc.logger.Warn("failed to mirror order locally", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (uc *orderUseCase) transitionMirror(ctx context.Context, id string, to model.OrderStatus) error {
	_, err := uc.store.PatchFunc(ctx, localstore.Orders, id, func(doc localstore.Document) (localstore.Document, error) {
		from := model.OrderStatus(fmt.Sprint(doc["status"]))
		if !from.CanTransition(to) {
			return nil, fmt.Errorf("order %s is %s: %w", id, from, apperror.ErrInvalidTransition)
		}
		doc["status"] = string(to)
		doc["updated_at"] = time.Now().UTC()
		return doc, nil
	})
	return err
}

// syncMirrorStatus follows a remote transition. Orders never mirrored are left alone.
func (uc *orderUseCase) syncMirrorStatus(ctx context.Context, id string, to model.OrderStatus) {
	_, err := uc.store.Patch(ctx, localstore.Orders, id, localstore.Document{
		"status":     string(to),
		"updated_at": time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		uc.logger.Warn("failed to update local order", zap.String("order_id", id), zap.Error(err))
	}
}

// resolveCart fills item type and name from the local catalog and validates quantities.
func (uc *orderUseCase) resolveCart(ctx context.Context, lines []dto.CartLine) ([]dto.CartLine, error) {
	out := make([]dto.CartLine, len(lines))
	for i, line := range lines {
		if line.ItemID == "" {
			return nil, apperror.NewValidation(order.OrderItemsTable, "item_id", "required")
		}
		if line.Quantity <= 0 {
			return nil, apperror.NewValidation(order.OrderItemsTable, "quantity", fmt.Sprintf("item %s: must be positive", line.ItemID))
		}
		if line.UnitPrice.IsNegative() {
			return nil, apperror.NewValidation(order.OrderItemsTable, "unit_price", fmt.Sprintf("item %s: must not be negative", line.ItemID))
		}
		if line.ItemType == "" || line.Name == "" {
			if doc, err := uc.store.FindOne(ctx, localstore.InventoryItems, line.ItemID); err == nil {
				if line.ItemType == "" {
					line.ItemType = model.ItemType(fmt.Sprint(doc["item_type"]))
				}
				if line.Name == "" {
					line.Name, _ = doc["name"].(string)
				}
			}
		}
		if line.ItemType != model.ItemTypeService {
			line.ItemType = model.ItemTypeProduct
		}
		out[i] = line
	}
	return out, nil
}

func cartTotal(lines []dto.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

func toLines(cart []dto.CartLine) []stockdto.Line {
	lines := make([]stockdto.Line, len(cart))
	for i, c := range cart {
		lines[i] = stockdto.Line{ItemID: c.ItemID, ItemName: c.Name, ItemType: c.ItemType, Quantity: c.Quantity}
	}
	return lines
}

func statusPatch(id string, status model.OrderStatus) map[string]any {
	return map[string]any{"id": id, "status": string(status)}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
