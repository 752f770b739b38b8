package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func p62Keap1Nrf2() ChainDiscovery {
	return ChainDiscovery{
		Query:     "p62",
		Target:    "NRF2",
		Mediators: []string{"KEAP1"},
		Direction: types.DirectionAToB,
		Arrows:    types.ArrowSet{types.DirectionAToB: {"activates"}},
		RunID:     "run:test",
	}
}

func TestDecomposeStoresSegmentsAndSummary(t *testing.T) {
	store := newTestStore(t)
	dec := NewDecomposer(store)
	ctx := context.Background()

	require.NoError(t, dec.Decompose(ctx, p62Keap1Nrf2()))

	q, err := store.GetProtein(ctx, "p62")
	require.NoError(t, err)
	m, err := store.GetProtein(ctx, "KEAP1")
	require.NoError(t, err)
	tgt, err := store.GetProtein(ctx, "NRF2")
	require.NoError(t, err)

	// First hop: direct, no observed arrows, marked chain-inferred.
	firstHop, err := store.GetInteraction(ctx, min(q.ID, m.ID), max(q.ID, m.ID))
	require.NoError(t, err)
	assert.Equal(t, types.KindDirect, firstHop.Kind)
	assert.True(t, firstHop.ChainInferred())
	assert.Empty(t, firstHop.Arrows)

	// Final hop: direct, carries the observed arrows.
	lastHop, err := store.GetInteraction(ctx, min(m.ID, tgt.ID), max(m.ID, tgt.ID))
	require.NoError(t, err)
	assert.Equal(t, types.KindDirect, lastHop.Kind)
	assert.False(t, lastHop.ChainInferred())
	resolved, err := Resolve(lastHop, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"activates"}, resolved.Arrows[types.DirectionAToB])

	// Summary edge: indirect, full chain, depth mediators+1.
	summary, err := store.GetInteraction(ctx, min(q.ID, tgt.ID), max(q.ID, tgt.ID))
	require.NoError(t, err)
	assert.Equal(t, types.KindIndirect, summary.Kind)
	assert.True(t, summary.Chain.Known)
	assert.Equal(t, []string{"KEAP1"}, summary.Chain.Mediators)
	assert.Equal(t, 2, summary.Chain.Depth())
}

func TestDecomposeIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	dec := NewDecomposer(store)
	ctx := context.Background()

	require.NoError(t, dec.Decompose(ctx, p62Keap1Nrf2()))
	require.NoError(t, dec.Decompose(ctx, p62Keap1Nrf2()))

	m, err := store.GetProtein(ctx, "KEAP1")
	require.NoError(t, err)
	edges, err := store.ListInteractionsFor(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2, "the mediator sits on exactly two segment edges")

	// Counters bumped once per edge, not once per decomposition.
	n, err := store.InteractionCount(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDecomposeDirectEvidenceWins(t *testing.T) {
	store := newTestStore(t)
	dec := NewDecomposer(store)
	ctx := context.Background()

	// Observe the first hop directly before the chain arrives.
	q, err := store.EnsureProtein(ctx, "p62")
	require.NoError(t, err)
	m, err := store.EnsureProtein(ctx, "KEAP1")
	require.NoError(t, err)
	observed, err := Canonicalize(&types.Interaction{
		ProteinAID: q.ID, ProteinBID: m.ID,
		ProteinA: "p62", ProteinB: "KEAP1",
		Direction: types.DirectionAToB,
		Arrows:    types.ArrowSet{types.DirectionAToB: {"binds"}},
		Kind:      types.KindDirect,
		Data:      map[string]any{"evidence": "co-IP"},
	})
	require.NoError(t, err)
	_, _, err = store.UpsertInteraction(ctx, observed)
	require.NoError(t, err)

	require.NoError(t, dec.Decompose(ctx, p62Keap1Nrf2()))

	got, err := store.GetInteraction(ctx, min(q.ID, m.ID), max(q.ID, m.ID))
	require.NoError(t, err)
	assert.Equal(t, types.KindDirect, got.Kind)
	assert.False(t, got.ChainInferred(), "the implied segment must not demote observed evidence")
	assert.Equal(t, "co-IP", got.Data["evidence"])
}

func TestDecomposeRejectsMalformedChains(t *testing.T) {
	store := newTestStore(t)
	dec := NewDecomposer(store)
	ctx := context.Background()

	tests := []struct {
		name string
		disc ChainDiscovery
	}{
		{"no mediators", ChainDiscovery{Query: "A", Target: "B"}},
		{"empty mediator", ChainDiscovery{Query: "A", Target: "B", Mediators: []string{""}}},
		{"mediator is query", ChainDiscovery{Query: "A", Target: "B", Mediators: []string{"A"}}},
		{"mediator is target", ChainDiscovery{Query: "A", Target: "B", Mediators: []string{"B"}}},
		{"cycle", ChainDiscovery{Query: "A", Target: "B", Mediators: []string{"M", "M"}}},
		{"query equals target", ChainDiscovery{Query: "A", Target: "A", Mediators: []string{"M"}}},
		{"missing endpoint", ChainDiscovery{Query: "", Target: "B", Mediators: []string{"M"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dec.Decompose(ctx, tt.disc)
			assert.ErrorIs(t, err, ErrMalformedChain)
		})
	}

	// Nothing was stored by any of the rejected chains.
	for _, sym := range []string{"A", "B", "M"} {
		_, err := store.GetProtein(ctx, sym)
		assert.Error(t, err, "rejected chain must not create protein %s", sym)
	}
}

func TestDecomposeLongerChain(t *testing.T) {
	store := newTestStore(t)
	dec := NewDecomposer(store)
	ctx := context.Background()

	require.NoError(t, dec.Decompose(ctx, ChainDiscovery{
		Query:     "ATXN3",
		Target:    "NRF2",
		Mediators: []string{"p62", "KEAP1"},
		Direction: types.DirectionAToB,
		Arrows:    types.ArrowSet{types.DirectionAToB: {"regulates"}},
		RunID:     "run:test",
	}))

	q, err := store.GetProtein(ctx, "ATXN3")
	require.NoError(t, err)
	edges, err := store.ListInteractionsFor(ctx, q.ID)
	require.NoError(t, err)
	// One segment to the first mediator plus the indirect summary.
	require.Len(t, edges, 2)

	tgt, err := store.GetProtein(ctx, "NRF2")
	require.NoError(t, err)
	summary, err := store.GetInteraction(ctx, min(q.ID, tgt.ID), max(q.ID, tgt.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{"p62", "KEAP1"}, summary.Chain.Mediators)
	assert.Equal(t, 3, summary.Chain.Depth())
}
