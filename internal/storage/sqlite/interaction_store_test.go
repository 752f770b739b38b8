package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propaths/propaths/internal/storage"
	"github.com/propaths/propaths/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "propaths.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustEnsure(t *testing.T, store *Store, symbol string) *types.Protein {
	t.Helper()
	p, err := store.EnsureProtein(context.Background(), symbol)
	require.NoError(t, err)
	return p
}

// canonicalPair ensures both proteins and returns their ids low-first.
func canonicalPair(t *testing.T, store *Store, symA, symB string) (low, high int64) {
	t.Helper()
	a := mustEnsure(t, store, symA)
	b := mustEnsure(t, store, symB)
	if a.ID < b.ID {
		return a.ID, b.ID
	}
	return b.ID, a.ID
}

func TestEnsureProteinIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.EnsureProtein(ctx, "ATXN3")
	require.NoError(t, err)
	second, err := store.EnsureProtein(ctx, "ATXN3")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "ATXN3", second.Symbol)
	assert.Zero(t, second.InteractionCount)

	_, err = store.EnsureProtein(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestGetProteinNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetProtein(context.Background(), "NOPE")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpsertInsertsAndCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	low, high := canonicalPair(t, store, "ATXN3", "VCP")

	stored, inserted, err := store.UpsertInteraction(ctx, &types.Interaction{
		ProteinAID: low, ProteinBID: high,
		Direction: types.DirectionAToB,
		Arrow:     "binds",
		Arrows:    types.ArrowSet{types.DirectionAToB: {"binds"}},
		Kind:      types.KindDirect,
		Data:      map[string]any{"evidence": "co-IP"},
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, stored.ID)

	// Both endpoints gained a count in the same transaction.
	for _, id := range []int64{low, high} {
		n, err := store.InteractionCount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	got, err := store.GetInteraction(ctx, low, high)
	require.NoError(t, err)
	assert.Equal(t, types.DirectionAToB, got.Direction)
	assert.Equal(t, "binds", got.Arrow)
	assert.Equal(t, types.KindDirect, got.Kind)
	assert.Equal(t, "co-IP", got.Data["evidence"])
	assert.Equal(t, "ATXN3", got.ProteinA)
	assert.Equal(t, "VCP", got.ProteinB)
}

func TestUpsertMergesExistingPair(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	low, high := canonicalPair(t, store, "ATXN3", "VCP")

	_, inserted, err := store.UpsertInteraction(ctx, &types.Interaction{
		ProteinAID: low, ProteinBID: high,
		Direction: types.DirectionAToB,
		Arrow:     "binds",
		Arrows:    types.ArrowSet{types.DirectionAToB: {"binds"}},
		Kind:      types.KindDirect,
	})
	require.NoError(t, err)
	require.True(t, inserted)

	merged, inserted, err := store.UpsertInteraction(ctx, &types.Interaction{
		ProteinAID: low, ProteinBID: high,
		Direction:  types.DirectionAToB,
		Arrow:      "activates",
		Arrows:     types.ArrowSet{types.DirectionAToB: {"activates"}},
		Kind:       types.KindDirect,
		Confidence: 0.8,
	})
	require.NoError(t, err)
	assert.False(t, inserted, "second upsert for the pair must merge, not insert")

	assert.ElementsMatch(t, []string{"binds", "activates"}, merged.Arrows[types.DirectionAToB])
	assert.Equal(t, types.ArrowMixed, merged.Arrow)
	assert.Equal(t, 0.8, merged.Confidence)

	// Merge must not touch the counters.
	n, err := store.InteractionCount(ctx, low)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertRejectsNonCanonicalOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	low, high := canonicalPair(t, store, "ATXN3", "VCP")

	_, _, err := store.UpsertInteraction(ctx, &types.Interaction{
		ProteinAID: high, ProteinBID: low, Kind: types.KindDirect,
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, _, err = store.UpsertInteraction(ctx, &types.Interaction{
		ProteinAID: low, ProteinBID: low, Kind: types.KindDirect,
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput, "degenerate self pair is rejected")

	_, err = store.GetInteraction(ctx, high, low)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestUpsertPersistsChainMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	low, high := canonicalPair(t, store, "p62", "NRF2")

	_, _, err := store.UpsertInteraction(ctx, &types.Interaction{
		ProteinAID: low, ProteinBID: high,
		Direction: types.DirectionAToB,
		Kind:      types.KindIndirect,
		Chain:     types.Chain{Known: true, Mediators: []string{"KEAP1"}},
	})
	require.NoError(t, err)

	got, err := store.GetInteraction(ctx, low, high)
	require.NoError(t, err)
	assert.Equal(t, types.KindIndirect, got.Kind)
	assert.True(t, got.Chain.Known)
	assert.Equal(t, []string{"KEAP1"}, got.Chain.Mediators)
	assert.Equal(t, 2, got.Chain.Depth())
}

func TestUpsertUnknownChainStaysUnknown(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	low, high := canonicalPair(t, store, "A1", "B1")

	_, _, err := store.UpsertInteraction(ctx, &types.Interaction{
		ProteinAID: low, ProteinBID: high,
		Kind: types.KindIndirect,
	})
	require.NoError(t, err)

	got, err := store.GetInteraction(ctx, low, high)
	require.NoError(t, err)
	assert.False(t, got.Chain.Known, "missing chain is never fabricated")
	assert.Equal(t, 2, got.Chain.Depth())
}

func TestConcurrentUpsertsSamePair(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	low, high := canonicalPair(t, store, "ATXN3", "VCP")

	arrows := []string{"binds", "activates", "inhibits", "regulates"}
	var wg sync.WaitGroup
	errs := make([]error, len(arrows))
	for i, arrow := range arrows {
		wg.Add(1)
		go func(i int, arrow string) {
			defer wg.Done()
			_, _, errs[i] = store.UpsertInteraction(ctx, &types.Interaction{
				ProteinAID: low, ProteinBID: high,
				Direction: types.DirectionAToB,
				Arrows:    types.ArrowSet{types.DirectionAToB: {arrow}},
				Kind:      types.KindDirect,
			})
		}(i, arrow)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "upsert %d", i)
	}

	// One row, all arrows, counter incremented exactly once per endpoint.
	got, err := store.GetInteraction(ctx, low, high)
	require.NoError(t, err)
	assert.ElementsMatch(t, arrows, got.Arrows[types.DirectionAToB])

	all, err := store.ListInteractionsFor(ctx, low)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	n, err := store.InteractionCount(ctx, low)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListInteractionsForBothSides(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := mustEnsure(t, store, "A")
	b := mustEnsure(t, store, "B")
	c := mustEnsure(t, store, "C")

	upsert := func(x, y int64) {
		t.Helper()
		low, high := x, y
		if low > high {
			low, high = high, low
		}
		_, _, err := store.UpsertInteraction(ctx, &types.Interaction{
			ProteinAID: low, ProteinBID: high, Kind: types.KindDirect,
		})
		require.NoError(t, err)
	}
	upsert(a.ID, b.ID)
	upsert(b.ID, c.ID)

	// B sits on the low side of one pair and the high side of the other.
	list, err := store.ListInteractionsFor(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = store.ListInteractionsFor(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListInteractionsAmongAndBetween(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := mustEnsure(t, store, "A")
	b := mustEnsure(t, store, "B")
	c := mustEnsure(t, store, "C")
	d := mustEnsure(t, store, "D")

	upsert := func(x, y int64) {
		t.Helper()
		low, high := x, y
		if low > high {
			low, high = high, low
		}
		_, _, err := store.UpsertInteraction(ctx, &types.Interaction{
			ProteinAID: low, ProteinBID: high, Kind: types.KindDirect,
		})
		require.NoError(t, err)
	}
	upsert(a.ID, b.ID)
	upsert(b.ID, c.ID)
	upsert(c.ID, d.ID)

	among, err := store.ListInteractionsAmong(ctx, []int64{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	assert.Len(t, among, 2, "c–d has an endpoint outside the set")

	between, err := store.ListInteractionsBetween(ctx, []int64{b.ID}, []int64{c.ID, d.ID})
	require.NoError(t, err)
	assert.Len(t, between, 1, "only b–c spans the two sets")

	none, err := store.ListInteractionsAmong(ctx, []int64{a.ID})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIncrementQueryCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := mustEnsure(t, store, "ATXN3")

	require.NoError(t, store.IncrementQueryCount(ctx, p.ID))
	require.NoError(t, store.IncrementQueryCount(ctx, p.ID))

	got, err := store.GetProtein(ctx, "ATXN3")
	require.NoError(t, err)
	assert.Equal(t, 2, got.QueryCount)

	err = store.IncrementQueryCount(ctx, 99999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecountInteractionsRepairsDrift(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	low, high := canonicalPair(t, store, "A", "B")

	_, _, err := store.UpsertInteraction(ctx, &types.Interaction{
		ProteinAID: low, ProteinBID: high, Kind: types.KindDirect,
	})
	require.NoError(t, err)

	// Counters in sync: nothing to repair.
	changed, err := store.RecountInteractions(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)

	// Break a counter behind the store's back, then repair.
	_, err = store.db.ExecContext(ctx,
		`UPDATE proteins SET interaction_count = 7 WHERE id = ?`, low)
	require.NoError(t, err)

	changed, err = store.RecountInteractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	n, err := store.InteractionCount(ctx, low)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeduplicateNoopOnCleanStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	low, high := canonicalPair(t, store, "A", "B")

	_, _, err := store.UpsertInteraction(ctx, &types.Interaction{
		ProteinAID: low, ProteinBID: high, Kind: types.KindDirect,
	})
	require.NoError(t, err)

	removed, err := store.DeduplicateInteractions(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestGetInteractionNotFound(t *testing.T) {
	store := newTestStore(t)
	low, high := canonicalPair(t, store, "A", "B")

	_, err := store.GetInteraction(context.Background(), low, high)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
