package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/database/postgres"
	"github.com/jmoiron/sqlx"
)

// Tables the queue may write to. Anything else is refused before reaching SQL.
var replayableTables = map[string]bool{
	"orders":      true,
	"order_items": true,
	"payments":    true,
	"customers":   true,
}

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type PGRepository struct {
	DB      *sqlx.DB
	timeout time.Duration
}

func NewPGRepository(db *sqlx.DB, timeout time.Duration) *PGRepository {
	return &PGRepository{DB: db, timeout: timeout}
}

func (r *PGRepository) Insert(ctx context.Context, table string, row map[string]any) error {
	cols, args, err := columns(table, row)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)",
		table, strings.Join(cols, ", "), strings.Join(cols, ", :"))

	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	if _, err := r.DB.NamedExecContext(ctx, query, args); err != nil {
		return apperror.Classify("insert "+table, err)
	}
	return nil
}

func (r *PGRepository) Update(ctx context.Context, table, id string, fields map[string]any) error {
	rest := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != "id" {
			rest[k] = v
		}
	}
	cols, args, err := columns(table, rest)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return apperror.NewValidation(table, "", "update without fields")
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = :%s", c, c)
	}
	args["id"] = id
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", table, strings.Join(sets, ", "))

	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	res, err := r.DB.NamedExecContext(ctx, query, args)
	if err != nil {
		return apperror.Classify("update "+table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s/%s: %w", table, id, apperror.ErrNotFound)
	}
	return nil
}

func (r *PGRepository) SoftDelete(ctx context.Context, table, id string) error {
	if !replayableTables[table] {
		return apperror.NewValidation(table, "", "table is not replayable")
	}

	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	query := fmt.Sprintf("UPDATE %s SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", table)
	if _, err := r.DB.ExecContext(ctx, query, id); err != nil {
		return apperror.Classify("delete "+table, err)
	}
	return nil
}

// columns validates identifiers and converts JSON-decoded values into SQL arguments.
func columns(table string, row map[string]any) ([]string, map[string]any, error) {
	if !replayableTables[table] {
		return nil, nil, apperror.NewValidation(table, "", "table is not replayable")
	}

	cols := make([]string, 0, len(row))
	args := make(map[string]any, len(row))
	for k, v := range row {
		if !identifier.MatchString(k) {
			return nil, nil, apperror.NewValidation(table, k, "invalid column name")
		}
		val, err := sqlValue(v)
		if err != nil {
			return nil, nil, apperror.NewValidation(table, k, err.Error())
		}
		cols = append(cols, k)
		args[k] = val
	}
	sort.Strings(cols)
	return cols, args, nil
}

func sqlValue(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t), nil
		}
		return t, nil
	case map[string]any, []any:
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}
	return v, nil
}
