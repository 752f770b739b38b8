package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propaths/propaths/internal/discovery"
	"github.com/propaths/propaths/internal/graph"
	"github.com/propaths/propaths/internal/storage/sqlite"
	"github.com/propaths/propaths/pkg/types"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "propaths.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSyncItemDirect(t *testing.T) {
	store := newTestStore(t)
	syncer := NewSyncer(store, nil)
	ctx := context.Background()

	err := syncer.SyncItem(ctx, "run:1", discovery.DiscoveredInteraction{
		Query:     "ATXN3",
		Target:    "VCP",
		Direction: "main_to_primary",
		Arrow:     "binds",
	})
	require.NoError(t, err)

	comp := graph.NewComposer(store)
	got, err := comp.Interactions(ctx, "ATXN3")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "VCP", got[0].Partner)
	assert.Equal(t, types.DirectionAToB, got[0].Direction, "query acts on target from the query's view")
	assert.Equal(t, "binds", got[0].Arrow)
}

func TestSyncItemChainDecomposes(t *testing.T) {
	store := newTestStore(t)
	syncer := NewSyncer(store, nil)
	ctx := context.Background()

	err := syncer.SyncItem(ctx, "run:1", discovery.DiscoveredInteraction{
		Query:         "p62",
		Target:        "NRF2",
		Type:          "indirect",
		Direction:     "main_to_primary",
		Arrow:         "activates",
		MediatorChain: []string{"KEAP1"},
	})
	require.NoError(t, err)

	m, err := store.GetProtein(ctx, "KEAP1")
	require.NoError(t, err)
	edges, err := store.ListInteractionsFor(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2, "mediator gets both segment edges")
}

func TestSyncItemUnknownChainStoredAsIs(t *testing.T) {
	store := newTestStore(t)
	syncer := NewSyncer(store, nil)
	ctx := context.Background()

	err := syncer.SyncItem(ctx, "run:1", discovery.DiscoveredInteraction{
		Query:  "A",
		Target: "B",
		Type:   "indirect",
	})
	require.NoError(t, err)

	a, err := store.GetProtein(ctx, "A")
	require.NoError(t, err)
	edges, err := store.ListInteractionsFor(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, types.KindIndirect, edges[0].Kind)
	assert.False(t, edges[0].Chain.Known)
}

func TestSyncBatchPartialFailure(t *testing.T) {
	store := newTestStore(t)
	syncer := NewSyncer(store, nil)
	ctx := context.Background()

	items := []discovery.DiscoveredInteraction{
		{Query: "ATXN3", Target: "VCP", Arrow: "binds", Direction: "main_to_primary"},
		{Query: "BAD", Target: "BAD"}, // self interaction
		{Query: "p62", Target: "NRF2", Type: "indirect", MediatorChain: []string{"p62"}, Direction: "main_to_primary"},
		{Query: "ATXN3", Target: "UBE2", Arrow: "activates", Direction: "primary_to_main"},
	}

	result, err := syncer.SyncBatch(ctx, "run:batch", items)
	require.Error(t, err)

	// The demoted-corrupt-chain item syncs as direct; only the self pair fails.
	assert.Equal(t, 3, result.Synced)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Skipped)

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	require.Len(t, batchErr.Errors, 1)
	assert.Equal(t, 1, batchErr.Errors[0].Index)
	assert.ErrorIs(t, batchErr.Errors[0], discovery.ErrInvalidPayload)

	// Items after the failure were stored.
	comp := graph.NewComposer(store)
	got, err := comp.Interactions(ctx, "ATXN3")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSyncBatchStopsOnCancelledContext(t *testing.T) {
	store := newTestStore(t)
	syncer := NewSyncer(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []discovery.DiscoveredInteraction{
		{Query: "A", Target: "B"},
		{Query: "A", Target: "C"},
	}
	result, err := syncer.SyncBatch(ctx, "run:cancelled", items)
	require.NoError(t, err, "cancellation is not an item failure")
	assert.Zero(t, result.Synced)
	assert.Equal(t, 2, result.Skipped)
}

func TestEngineProcessesSubmittedBatches(t *testing.T) {
	store := newTestStore(t)
	engine := NewEngine(NewSyncer(store, nil), 2, 4)

	results := make(chan *BatchResult, 1)
	engine.OnBatchDone = func(r *BatchResult, err error) {
		assert.NoError(t, err)
		results <- r
	}
	require.NoError(t, engine.Start())

	err := engine.Submit(&BatchJob{
		Source: "test",
		Items: []discovery.DiscoveredInteraction{
			{Query: "ATXN3", Target: "VCP", Arrow: "binds", Direction: "main_to_primary"},
		},
	})
	require.NoError(t, err)

	select {
	case r := <-results:
		assert.Equal(t, 1, r.Synced)
		assert.NotEmpty(t, r.RunID, "run id is minted when absent")
	case <-time.After(5 * time.Second):
		t.Fatal("batch was not processed")
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	require.NoError(t, engine.Shutdown(ctx))

	assert.Error(t, engine.Submit(&BatchJob{}), "submit after shutdown must fail")
}

func TestEngineQueueFull(t *testing.T) {
	store := newTestStore(t)
	engine := NewEngine(NewSyncer(store, nil), 1, 1)
	// Not started: workers never drain, but Submit must refuse anyway.
	assert.Error(t, engine.Submit(&BatchJob{}))

	require.NoError(t, engine.Start())
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	require.NoError(t, engine.Shutdown(ctx))
}
