package syncqueue

import (
	"context"

	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue/dto"
)

type UseCase interface {
	Enqueue(ctx context.Context, op model.OpKind, table string, payload any) (*model.QueueEntry, error)
	Drain(ctx context.Context) (*dto.DrainResult, error)
	ListByStatus(ctx context.Context, status model.QueueStatus) ([]model.QueueEntry, error)
	Retry(ctx context.Context, id string) error
	Discard(ctx context.Context, id string) error
	// Recover fails entries left SYNCING by a previous process.
	Recover(ctx context.Context) error

	RegisterReplayer(table string, r Replayer)
	RegisterReconciler(table string, r Reconciler)
	OnDrained(fn func(ctx context.Context, res *dto.DrainResult))
}

// Replayer applies one queued write to the remote store.
type Replayer interface {
	Replay(ctx context.Context, entry *model.QueueEntry) error
}

type Outcome string

const (
	// OutcomeConfirmed: the remote applied the write.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeRejected: the remote refused it, or the operator discarded it.
	OutcomeRejected Outcome = "rejected"
	// OutcomeRequeued: a rejected entry was put back to PENDING.
	OutcomeRequeued Outcome = "requeued"
)

// Reconciler settles local tentative state once a queued write's fate is known.
type Reconciler interface {
	Reconcile(ctx context.Context, entry *model.QueueEntry, outcome Outcome) error
}
