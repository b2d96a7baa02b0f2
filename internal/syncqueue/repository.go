package syncqueue

import "context"

// Repository is the generic remote write surface used to replay queued operations.
type Repository interface {
	Insert(ctx context.Context, table string, row map[string]any) error
	Update(ctx context.Context, table, id string, fields map[string]any) error
	SoftDelete(ctx context.Context, table, id string) error
}
