package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/connectivity"
	"github.com/fekuna/omnipos-offline-sync/internal/localstore"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/metrics"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue/dto"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/fekuna/omnipos-offline-sync/internal/syncqueue")

type syncUseCase struct {
	store   *localstore.Store
	repo    syncqueue.Repository
	conn    connectivity.Checker
	metrics *metrics.Metrics
	logger  logger.ZapLogger

	seqMu     sync.Mutex
	seq       int64
	seqLoaded bool

	draining atomic.Bool

	mu          sync.RWMutex
	replayers   map[string]syncqueue.Replayer
	reconcilers map[string]syncqueue.Reconciler
	drained     []func(context.Context, *dto.DrainResult)
}

func NewSyncUseCase(store *localstore.Store, repo syncqueue.Repository, conn connectivity.Checker, m *metrics.Metrics, log logger.ZapLogger) syncqueue.UseCase {
	return &syncUseCase{
		store:       store,
		repo:        repo,
		conn:        conn,
		metrics:     m,
		logger:      log,
		replayers:   map[string]syncqueue.Replayer{},
		reconcilers: map[string]syncqueue.Reconciler{},
	}
}

func (uc *syncUseCase) RegisterReplayer(table string, r syncqueue.Replayer) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.replayers[table] = r
}

func (uc *syncUseCase) RegisterReconciler(table string, r syncqueue.Reconciler) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.reconcilers[table] = r
}

func (uc *syncUseCase) OnDrained(fn func(ctx context.Context, res *dto.DrainResult)) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.drained = append(uc.drained, fn)
}

func (uc *syncUseCase) Enqueue(ctx context.Context, op model.OpKind, table string, payload any) (*model.QueueEntry, error) {
	if !op.Valid() {
		return nil, apperror.NewValidation(localstore.SyncQueue, "operation", fmt.Sprintf("unknown operation %q", op))
	}
	if table == "" {
		return nil, apperror.NewValidation(localstore.SyncQueue, "table_name", "required")
	}
	body, err := localstore.Encode(payload)
	if err != nil {
		return nil, apperror.NewValidation(localstore.SyncQueue, "payload", err.Error())
	}
	if id, _ := body["id"].(string); id == "" {
		return nil, apperror.NewValidation(localstore.SyncQueue, "payload", "payload must carry a string id")
	}

	seq, err := uc.nextSeq(ctx)
	if err != nil {
		return nil, err
	}

	entry := &model.QueueEntry{
		ID:        uuid.New().String(),
		Operation: op,
		TableName: table,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
		Seq:       seq,
		Status:    model.QueueStatusPending,
	}
	doc, err := localstore.Encode(entry)
	if err != nil {
		return nil, err
	}
	if err := uc.store.Upsert(ctx, localstore.SyncQueue, doc); err != nil {
		return nil, err
	}

	uc.metrics.QueueEntries.WithLabelValues("enqueued", table).Inc()
	uc.logger.Debug("operation enqueued",
		zap.String("entry_id", entry.ID),
		zap.String("operation", string(op)),
		zap.String("table", table),
		zap.Int64("seq", seq),
	)
	return entry, nil
}

// nextSeq hands out a strictly increasing sequence, resuming after the highest persisted one.
func (uc *syncUseCase) nextSeq(ctx context.Context) (int64, error) {
	uc.seqMu.Lock()
	defer uc.seqMu.Unlock()

	if !uc.seqLoaded {
		last, err := uc.store.Find(ctx, localstore.SyncQueue, localstore.Query{SortBy: "seq", Descending: true, Limit: 1})
		if err != nil {
			return 0, err
		}
		if len(last) == 1 {
			if f, ok := last[0]["seq"].(float64); ok {
				uc.seq = int64(f)
			}
		}
		uc.seqLoaded = true
	}
	uc.seq++
	return uc.seq, nil
}

func (uc *syncUseCase) Drain(ctx context.Context) (*dto.DrainResult, error) {
	if !uc.draining.CompareAndSwap(false, true) {
		return nil, apperror.ErrDrainInProgress
	}
	defer uc.draining.Store(false)

	if !uc.conn.IsOnline() {
		return &dto.DrainResult{Skipped: true}, nil
	}

	ctx, span := tracer.Start(ctx, "syncqueue.Drain")
	defer span.End()

	start := time.Now()
	defer func() { uc.metrics.DrainDuration.Observe(time.Since(start).Seconds()) }()

	// Snapshot: entries enqueued from here on wait for the next drain.
	pending, err := uc.ListByStatus(ctx, model.QueueStatusPending)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	res := &dto.DrainResult{}
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		entry := &pending[i]
		res.Attempted++
		if err := uc.replayEntry(ctx, entry); err != nil {
			res.Failed++
			res.FailedIDs = append(res.FailedIDs, entry.ID)
			continue
		}
		res.Synced++
	}

	span.SetAttributes(
		attribute.Int("queue.attempted", res.Attempted),
		attribute.Int("queue.synced", res.Synced),
		attribute.Int("queue.failed", res.Failed),
	)
	if res.Attempted > 0 {
		uc.logger.Info("sync queue drained",
			zap.Int("attempted", res.Attempted),
			zap.Int("synced", res.Synced),
			zap.Int("failed", res.Failed),
		)
	}

	uc.mu.RLock()
	hooks := append([]func(context.Context, *dto.DrainResult){}, uc.drained...)
	uc.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, res)
	}
	return res, nil
}

func (uc *syncUseCase) replayEntry(ctx context.Context, entry *model.QueueEntry) error {
	ctx, span := tracer.Start(ctx, "syncqueue.Replay", trace.WithAttributes(
		attribute.String("queue.entry_id", entry.ID),
		attribute.String("queue.table", entry.TableName),
		attribute.String("queue.operation", string(entry.Operation)),
	))
	defer span.End()

	entry.Attempts++
	entry.Status = model.QueueStatusSyncing
	if _, err := uc.store.Patch(ctx, localstore.SyncQueue, entry.ID, localstore.Document{
		"status":   model.QueueStatusSyncing,
		"attempts": entry.Attempts,
	}); err != nil {
		// Discarded by the operator after the snapshot.
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return uc.fail(ctx, span, entry, err)
	}

	if err := uc.replayerFor(entry.TableName).Replay(ctx, entry); err != nil {
		return uc.fail(ctx, span, entry, err)
	}

	if err := uc.store.Remove(ctx, localstore.SyncQueue, entry.ID); err != nil {
		uc.logger.Error("failed to remove synced queue entry", zap.String("entry_id", entry.ID), zap.Error(err))
	}
	if err := uc.reconcile(ctx, entry, syncqueue.OutcomeConfirmed); err != nil {
		uc.logger.Error("failed to reconcile confirmed entry", zap.String("entry_id", entry.ID), zap.Error(err))
	}
	uc.metrics.QueueEntries.WithLabelValues("synced", entry.TableName).Inc()
	return nil
}

// fail parks the entry in ERROR. A refusal by the remote (anything but a
// transport failure) undoes the entry's local effect right away.
func (uc *syncUseCase) fail(ctx context.Context, span trace.Span, entry *model.QueueEntry, cause error) error {
	qerr := &apperror.QueueEntryError{EntryID: entry.ID, Table: entry.TableName, Err: cause}
	span.RecordError(qerr)
	span.SetStatus(codes.Error, cause.Error())

	// A blocked entry waits for an earlier one; like a transport failure it
	// keeps its local effect.
	rejected := false
	if !apperror.IsInfrastructure(cause) && !errors.Is(cause, apperror.ErrBlocked) {
		if err := uc.reconcile(ctx, entry, syncqueue.OutcomeRejected); err != nil {
			uc.logger.Error("failed to reconcile rejected entry", zap.String("entry_id", entry.ID), zap.Error(err))
		} else {
			rejected = true
		}
	}

	entry.Status = model.QueueStatusError
	entry.LastError = cause.Error()
	entry.Rejected = rejected
	if _, err := uc.store.Patch(ctx, localstore.SyncQueue, entry.ID, localstore.Document{
		"status":     model.QueueStatusError,
		"last_error": cause.Error(),
		"rejected":   rejected,
	}); err != nil {
		uc.logger.Error("failed to mark queue entry as error", zap.String("entry_id", entry.ID), zap.Error(err))
	}

	uc.metrics.QueueEntries.WithLabelValues("failed", entry.TableName).Inc()
	uc.logger.Warn("queue entry failed to sync",
		zap.String("entry_id", entry.ID),
		zap.String("table", entry.TableName),
		zap.String("operation", string(entry.Operation)),
		zap.Bool("rejected", rejected),
		zap.Error(cause),
	)
	return qerr
}

func (uc *syncUseCase) replayerFor(table string) syncqueue.Replayer {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	if r, ok := uc.replayers[table]; ok {
		return r
	}
	return genericReplayer{repo: uc.repo}
}

func (uc *syncUseCase) reconcile(ctx context.Context, entry *model.QueueEntry, outcome syncqueue.Outcome) error {
	uc.mu.RLock()
	r, ok := uc.reconcilers[entry.TableName]
	uc.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.Reconcile(ctx, entry, outcome)
}

func (uc *syncUseCase) ListByStatus(ctx context.Context, status model.QueueStatus) ([]model.QueueEntry, error) {
	q := localstore.Query{SortBy: "seq"}
	if status != "" {
		q.Selector = localstore.Document{"status": string(status)}
	}
	docs, err := uc.store.Find(ctx, localstore.SyncQueue, q)
	if err != nil {
		return nil, err
	}

	entries := make([]model.QueueEntry, 0, len(docs))
	for _, doc := range docs {
		var e model.QueueEntry
		if err := localstore.Decode(doc, &e); err != nil {
			return nil, fmt.Errorf("decode queue entry %v: %w", doc["id"], err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (uc *syncUseCase) get(ctx context.Context, id string) (*model.QueueEntry, error) {
	doc, err := uc.store.FindOne(ctx, localstore.SyncQueue, id)
	if err != nil {
		return nil, err
	}
	var e model.QueueEntry
	if err := localstore.Decode(doc, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (uc *syncUseCase) Retry(ctx context.Context, id string) error {
	entry, err := uc.get(ctx, id)
	if err != nil {
		return err
	}
	if entry.Status != model.QueueStatusError {
		return fmt.Errorf("retry entry in %s: %w", entry.Status, apperror.ErrInvalidTransition)
	}
	if entry.Rejected {
		if err := uc.reconcile(ctx, entry, syncqueue.OutcomeRequeued); err != nil {
			return err
		}
	}

	_, err = uc.store.Patch(ctx, localstore.SyncQueue, id, localstore.Document{
		"status":     model.QueueStatusPending,
		"last_error": "",
		"rejected":   false,
	})
	if err != nil {
		return err
	}
	uc.logger.Info("queue entry requeued", zap.String("entry_id", id))
	return nil
}

func (uc *syncUseCase) Discard(ctx context.Context, id string) error {
	entry, err := uc.get(ctx, id)
	if err != nil {
		return err
	}
	if entry.Status == model.QueueStatusSyncing {
		return fmt.Errorf("discard entry in flight: %w", apperror.ErrInvalidTransition)
	}
	if !entry.Rejected {
		if err := uc.reconcile(ctx, entry, syncqueue.OutcomeRejected); err != nil {
			return err
		}
	}
	if err := uc.store.Remove(ctx, localstore.SyncQueue, id); err != nil {
		return err
	}

	uc.metrics.QueueEntries.WithLabelValues("discarded", entry.TableName).Inc()
	uc.logger.Warn("queue entry discarded",
		zap.String("entry_id", id),
		zap.String("table", entry.TableName),
		zap.String("last_error", entry.LastError),
	)
	return nil
}

func (uc *syncUseCase) Recover(ctx context.Context) error {
	stuck, err := uc.ListByStatus(ctx, model.QueueStatusSyncing)
	if err != nil {
		return err
	}
	for _, e := range stuck {
		if _, err := uc.store.Patch(ctx, localstore.SyncQueue, e.ID, localstore.Document{
			"status":     model.QueueStatusError,
			"last_error": "interrupted during sync; remote outcome unknown",
		}); err != nil {
			return err
		}
		uc.logger.Warn("queue entry interrupted during sync", zap.String("entry_id", e.ID), zap.String("table", e.TableName))
	}
	return nil
}

type genericReplayer struct {
	repo syncqueue.Repository
}

func (g genericReplayer) Replay(ctx context.Context, entry *model.QueueEntry) error {
	id, _ := entry.Payload["id"].(string)
	switch entry.Operation {
	case model.OpInsert:
		return g.repo.Insert(ctx, entry.TableName, entry.Payload)
	case model.OpUpdate:
		return g.repo.Update(ctx, entry.TableName, id, entry.Payload)
	case model.OpDelete:
		return g.repo.SoftDelete(ctx, entry.TableName, id)
	}
	return apperror.NewValidation(entry.TableName, "operation", fmt.Sprintf("unknown operation %q", entry.Operation))
}
