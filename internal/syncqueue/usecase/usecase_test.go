package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/fake"
	"github.com/fekuna/omnipos-offline-sync/internal/localstore"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/metrics"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue/usecase"
	"github.com/fekuna/omnipos-offline-sync/internal/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const table = "notes"

type row struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// recorder replays and reconciles entries of one table, failing ids listed in fail.
type recorder struct {
	mu       sync.Mutex
	replayed []string
	outcomes []string
	fail     map[string]error
}

func (r *recorder) Replay(_ context.Context, e *model.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, _ := e.Payload["id"].(string)
	r.replayed = append(r.replayed, id)
	return r.fail[id]
}

func (r *recorder) Reconcile(_ context.Context, e *model.QueueEntry, o syncqueue.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, _ := e.Payload["id"].(string)
	r.outcomes = append(r.outcomes, id+":"+string(o))
	return nil
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.replayed...), append([]string(nil), r.outcomes...)
}

type fixture struct {
	uc     syncqueue.UseCase
	store  *localstore.Store
	remote *fake.Remote
	conn   *fake.Switch
	rec    *recorder
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	f := &fixture{
		store:  localstore.New(localstore.NewMemoryPersister(), localstore.DefaultSchemas()...),
		remote: fake.NewRemote(),
		conn:   fake.NewSwitch(online),
		rec:    &recorder{fail: map[string]error{}},
	}
	f.uc = usecase.NewSyncUseCase(f.store, f.remote, f.conn, metrics.NewNop(), logger.NewNop())
	f.uc.RegisterReplayer(table, f.rec)
	f.uc.RegisterReconciler(table, f.rec)
	return f
}

func (f *fixture) enqueue(t *testing.T, ids ...string) []*model.QueueEntry {
	t.Helper()
	var out []*model.QueueEntry
	for _, id := range ids {
		e, err := f.uc.Enqueue(context.Background(), model.OpInsert, table, row{ID: id, Body: "x"})
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestEnqueueAssignsIncreasingSeq(t *testing.T) {
	f := newFixture(t, false)
	entries := f.enqueue(t, "a", "b", "c")

	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Equal(t, int64(3), entries[2].Seq)
	for _, e := range entries {
		assert.Equal(t, model.QueueStatusPending, e.Status)
	}
}

func TestEnqueueResumesSeqAfterRestart(t *testing.T) {
	f := newFixture(t, false)
	f.enqueue(t, "a", "b")

	restarted := usecase.NewSyncUseCase(f.store, f.remote, f.conn, metrics.NewNop(), logger.NewNop())
	e, err := restarted.Enqueue(context.Background(), model.OpInsert, table, row{ID: "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.Seq)
}

func TestEnqueueValidation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.uc.Enqueue(ctx, "UPSERT", table, row{ID: "a"})
	var verr *apperror.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.uc.Enqueue(ctx, model.OpInsert, "", row{ID: "a"})
	assert.ErrorAs(t, err, &verr)

	_, err = f.uc.Enqueue(ctx, model.OpInsert, table, map[string]any{"body": "no id"})
	assert.ErrorAs(t, err, &verr)
}

func TestDrainOfflineIsNoop(t *testing.T) {
	f := newFixture(t, false)
	f.enqueue(t, "a")

	res, err := f.uc.Drain(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Attempted)

	pending, err := f.uc.ListByStatus(context.Background(), model.QueueStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDrainReplaysInSeqOrder(t *testing.T) {
	f := newFixture(t, false)
	f.enqueue(t, "c", "a", "b")
	f.conn.Set(true)

	res, err := f.uc.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Synced)

	replayed, outcomes := f.rec.snapshot()
	assert.Equal(t, []string{"c", "a", "b"}, replayed)
	assert.Equal(t, []string{"c:confirmed", "a:confirmed", "b:confirmed"}, outcomes)

	all, err := f.uc.ListByStatus(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDrainContinuesPastRejectedEntry(t *testing.T) {
	f := newFixture(t, true)
	entries := f.enqueue(t, "a", "b", "c")
	f.rec.fail["b"] = apperror.NewValidation(table, "body", "refused")

	res, err := f.uc.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{entries[1].ID}, res.FailedIDs)

	failed, err := f.uc.ListByStatus(context.Background(), model.QueueStatusError)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, entries[1].ID, failed[0].ID)
	assert.Contains(t, failed[0].LastError, "refused")
	assert.True(t, failed[0].Rejected)
	assert.Equal(t, 1, failed[0].Attempts)

	_, outcomes := f.rec.snapshot()
	assert.Equal(t, []string{"a:confirmed", "b:rejected", "c:confirmed"}, outcomes)
}

func TestDrainInfrastructureFailureIsNotRejected(t *testing.T) {
	f := newFixture(t, true)
	f.enqueue(t, "a")
	f.rec.fail["a"] = &apperror.NetworkError{Op: "insert", Err: errors.New("connection reset")}

	res, err := f.uc.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	failed, err := f.uc.ListByStatus(context.Background(), model.QueueStatusError)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.False(t, failed[0].Rejected)

	_, outcomes := f.rec.snapshot()
	assert.Empty(t, outcomes)
}

func TestSecondDrainIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	f.enqueue(t, "a", "b")

	_, err := f.uc.Drain(context.Background())
	require.NoError(t, err)

	res, err := f.uc.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Attempted)

	replayed, _ := f.rec.snapshot()
	assert.Equal(t, []string{"a", "b"}, replayed)
}

type blockingReplayer struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingReplayer) Replay(ctx context.Context, _ *model.QueueEntry) error {
	close(b.entered)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func TestDrainIsSingleFlight(t *testing.T) {
	f := newFixture(t, true)
	slow := &blockingReplayer{entered: make(chan struct{}), release: make(chan struct{})}
	f.uc.RegisterReplayer("slow", slow)
	_, err := f.uc.Enqueue(context.Background(), model.OpInsert, "slow", row{ID: "a"})
	require.NoError(t, err)

	done := make(chan *dto.DrainResult)
	go func() {
		res, _ := f.uc.Drain(context.Background())
		done <- res
	}()

	select {
	case <-slow.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first drain never started")
	}

	_, err = f.uc.Drain(context.Background())
	assert.ErrorIs(t, err, apperror.ErrDrainInProgress)

	close(slow.release)
	res := <-done
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Synced)
}

func TestDrainFallsBackToGenericReplay(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.uc.Enqueue(ctx, model.OpInsert, "customers", map[string]any{"id": "c-1", "name": "Ana"})
	require.NoError(t, err)
	_, err = f.uc.Enqueue(ctx, model.OpUpdate, "customers", map[string]any{"id": "c-1", "name": "Ana María"})
	require.NoError(t, err)

	res, err := f.uc.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, "Ana María", f.remote.Rows("customers")["c-1"]["name"])
}

func TestOnDrainedHooksRun(t *testing.T) {
	f := newFixture(t, true)
	f.enqueue(t, "a")

	var got *dto.DrainResult
	f.uc.OnDrained(func(_ context.Context, res *dto.DrainResult) { got = res })

	_, err := f.uc.Drain(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Synced)
}

func TestRetry(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	entries := f.enqueue(t, "a")
	f.rec.fail["a"] = apperror.NewValidation(table, "body", "refused")

	err := f.uc.Retry(ctx, entries[0].ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	_, err = f.uc.Drain(ctx)
	require.NoError(t, err)

	delete(f.rec.fail, "a")
	require.NoError(t, f.uc.Retry(ctx, entries[0].ID))

	pending, err := f.uc.ListByStatus(ctx, model.QueueStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].Rejected)
	assert.Empty(t, pending[0].LastError)

	res, err := f.uc.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)

	_, outcomes := f.rec.snapshot()
	assert.Equal(t, []string{"a:rejected", "a:requeued", "a:confirmed"}, outcomes)
}

func TestDiscard(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	entries := f.enqueue(t, "a", "b")

	require.NoError(t, f.uc.Discard(ctx, entries[0].ID))

	all, err := f.uc.ListByStatus(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, entries[1].ID, all[0].ID)

	_, outcomes := f.rec.snapshot()
	assert.Equal(t, []string{"a:rejected"}, outcomes)

	err = f.uc.Discard(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDiscardRejectedEntryDoesNotReconcileTwice(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	entries := f.enqueue(t, "a")
	f.rec.fail["a"] = apperror.NewValidation(table, "body", "refused")

	_, err := f.uc.Drain(ctx)
	require.NoError(t, err)
	require.NoError(t, f.uc.Discard(ctx, entries[0].ID))

	_, outcomes := f.rec.snapshot()
	assert.Equal(t, []string{"a:rejected"}, outcomes)
}

func TestRecoverFailsInterruptedEntries(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	entries := f.enqueue(t, "a", "b")

	_, err := f.store.Patch(ctx, localstore.SyncQueue, entries[0].ID, localstore.Document{"status": string(model.QueueStatusSyncing)})
	require.NoError(t, err)

	err = f.uc.Discard(ctx, entries[0].ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	require.NoError(t, f.uc.Recover(ctx))

	failed, err := f.uc.ListByStatus(ctx, model.QueueStatusError)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, entries[0].ID, failed[0].ID)
	assert.Contains(t, failed[0].LastError, "interrupted")
}

func TestDrainIsTraced(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp, err := tracing.NewProvider(context.Background(), tracing.Config{ServiceName: "pos-agent"}, sdktrace.WithSpanProcessor(rec))
	require.NoError(t, err)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	f := newFixture(t, true)
	f.enqueue(t, "a", "b")
	f.rec.fail["b"] = apperror.NewValidation(table, "body", "refused")

	_, err = f.uc.Drain(context.Background())
	require.NoError(t, err)

	var names []string
	failed := 0
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
		if s.Status().Code == codes.Error {
			failed++
		}
	}
	assert.Equal(t, []string{"syncqueue.Replay", "syncqueue.Replay", "syncqueue.Drain"}, names)
	assert.Equal(t, 1, failed)
}
