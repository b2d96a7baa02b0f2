package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/connectivity"
	"github.com/fekuna/omnipos-offline-sync/internal/fake"
	"github.com/fekuna/omnipos-offline-sync/internal/localstore"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/metrics"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerDrainsWhenConnectivityReturns(t *testing.T) {
	store := localstore.New(localstore.NewMemoryPersister(), localstore.DefaultSchemas()...)
	remote := fake.NewRemote()
	conn := fake.NewSwitch(false)
	uc := usecase.NewSyncUseCase(store, remote, conn, metrics.NewNop(), logger.NewNop())

	drained := make(chan *dto.DrainResult, 4)
	uc.OnDrained(func(_ context.Context, res *dto.DrainResult) { drained <- res })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := uc.Enqueue(ctx, model.OpInsert, "customers", map[string]any{"id": "c-1", "name": "Ana"})
	require.NoError(t, err)

	r := NewRunner(uc, time.Hour, logger.NewNop())
	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	// Offline transitions do not drain.
	r.OnConnectivity(ctx, connectivity.Offline)

	conn.Set(true)
	r.OnConnectivity(ctx, connectivity.Online)

	select {
	case res := <-drained:
		assert.Equal(t, 1, res.Synced)
	case <-time.After(5 * time.Second):
		t.Fatal("drain was not triggered")
	}
	assert.Contains(t, remote.Rows("customers"), "c-1")
}

func TestDrainJobStopsAfterCancel(t *testing.T) {
	store := localstore.New(localstore.NewMemoryPersister(), localstore.DefaultSchemas()...)
	remote := fake.NewRemote()
	uc := usecase.NewSyncUseCase(store, remote, fake.NewSwitch(true), metrics.NewNop(), logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := uc.Enqueue(ctx, model.OpInsert, "customers", map[string]any{"id": "c-1", "name": "Ana"})
	require.NoError(t, err)

	r := NewRunner(uc, time.Hour, logger.NewNop())
	r.ctx = ctx
	cancel()
	r.drain()

	assert.Zero(t, remote.Calls("Insert"))
}
