package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/database/postgres"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB      *sqlx.DB
	timeout time.Duration
}

func NewPGRepository(db *sqlx.DB, timeout time.Duration) *PGRepository {
	return &PGRepository{DB: db, timeout: timeout}
}

func (r *PGRepository) CreateOrder(ctx context.Context, o *model.Order, items []model.OrderItem) error {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.Classify("create order", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
        INSERT INTO orders (
            id, account_id, business_id, client_id, customer_name,
            customer_doc_type, customer_doc_number, total_amount, status,
            created_by, created_at
        )
        VALUES (
            :id, :account_id, :business_id, :client_id, :customer_name,
            :customer_doc_type, :customer_doc_number, :total_amount, :status,
            :created_by, :created_at
        )
    `, o)
	if err != nil {
		return apperror.Classify("create order", fmt.Errorf("failed to insert order: %w", err))
	}

	if len(items) > 0 {
		_, err = tx.NamedExecContext(ctx, `
            INSERT INTO order_items (
                id, account_id, order_id, item_id, item_type, quantity, unit_price, created_at
            )
            VALUES (
                :id, :account_id, :order_id, :item_id, :item_type, :quantity, :unit_price, :created_at
            )
        `, items)
		if err != nil {
			return apperror.Classify("create order", fmt.Errorf("failed to insert order items: %w", err))
		}
	}

	return apperror.Classify("create order", tx.Commit())
}

func (r *PGRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	var o model.Order
	err := r.DB.GetContext(ctx, &o, `
        SELECT id, account_id, business_id, client_id, customer_name, customer_doc_type,
               customer_doc_number, total_amount, status, created_by, created_at
        FROM orders WHERE id = $1 AND deleted_at IS NULL
    `, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, apperror.ErrNotFound)
		}
		return nil, apperror.Classify("get order", err)
	}

	err = r.DB.SelectContext(ctx, &o.Items, `
        SELECT oi.id, oi.account_id, oi.order_id, oi.item_id, oi.item_type, oi.quantity,
               oi.unit_price, oi.created_at, COALESCE(ii.name, '') AS item_name
        FROM order_items oi
        LEFT JOIN inventory_items ii ON ii.id = oi.item_id
        WHERE oi.order_id = $1 AND oi.deleted_at IS NULL
    `, id)
	if err != nil {
		return nil, apperror.Classify("get order items", err)
	}
	return &o, nil
}

func (r *PGRepository) UpdateOrderStatus(ctx context.Context, id string, to model.OrderStatus) error {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	res, err := r.DB.ExecContext(ctx, `
        UPDATE orders SET status = $2, updated_at = NOW()
        WHERE id = $1 AND status = 'PENDING'
    `, id, to)
	if err != nil {
		return apperror.Classify("update order status", err)
	}
	return r.requireTransition(ctx, r.DB, res, id)
}

func (r *PGRepository) MarkPaid(ctx context.Context, p *model.Payment) error {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.Classify("mark paid", err)
	}
	defer tx.Rollback()

	// 1. Claim the transition
	res, err := tx.ExecContext(ctx, `
        UPDATE orders SET status = 'PAID', updated_at = NOW()
        WHERE id = $1 AND status = 'PENDING'
    `, p.OrderID)
	if err != nil {
		return apperror.Classify("mark paid", err)
	}
	if err := r.requireTransition(ctx, tx, res, p.OrderID); err != nil {
		return err
	}

	// 2. Register Payment
	_, err = tx.NamedExecContext(ctx, `
        INSERT INTO payments (
            id, account_id, order_id, created_by, amount, status,
            payment_method_id, payment_type, mp_payment_id, created_at
        )
        VALUES (
            :id, :account_id, :order_id, :created_by, :amount, :status,
            :payment_method_id, :payment_type, :mp_payment_id, :created_at
        )
    `, p)
	if err != nil {
		return apperror.Classify("mark paid", fmt.Errorf("failed to insert payment: %w", err))
	}

	return apperror.Classify("mark paid", tx.Commit())
}

// requireTransition tells a missing order from one that already left PENDING.
func (r *PGRepository) requireTransition(ctx context.Context, q sqlx.QueryerContext, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var status string
	err = sqlx.GetContext(ctx, q, &status, `SELECT status FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("order %s: %w", id, apperror.ErrNotFound)
	}
	if err != nil {
		return apperror.Classify("read order status", err)
	}
	return fmt.Errorf("order %s is %s: %w", id, status, apperror.ErrInvalidTransition)
}
