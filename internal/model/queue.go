package model

import "time"

type OpKind string

const (
	OpInsert OpKind = "INSERT"
	OpUpdate OpKind = "UPDATE"
	OpDelete OpKind = "DELETE"
)

func (o OpKind) Valid() bool {
	return o == OpInsert || o == OpUpdate || o == OpDelete
}

type QueueStatus string

const (
	QueueStatusPending QueueStatus = "PENDING"
	QueueStatusSyncing QueueStatus = "SYNCING"
	QueueStatusError   QueueStatus = "ERROR"
)

// QueueEntry is a deferred write. Succeeded entries are deleted, so only
// PENDING, SYNCING (in flight) and ERROR ever exist.
type QueueEntry struct {
	ID        string         `json:"id"`
	Operation OpKind         `json:"operation"`
	TableName string         `json:"table_name"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Seq       int64          `json:"seq"`
	Status    QueueStatus    `json:"status"`
	LastError string         `json:"last_error"`
	Attempts  int            `json:"attempts"`
	// Rejected is set once the remote refused the write and its local effect was undone.
	Rejected bool `json:"rejected"`
}
