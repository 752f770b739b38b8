package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propaths/propaths/pkg/types"
)

func TestNormalizeLegacyDirections(t *testing.T) {
	tests := []struct {
		legacy string
		want   types.Direction
	}{
		{"main_to_primary", types.DirectionAToB},
		{"primary_to_main", types.DirectionBToA},
		{"bidirectional", types.DirectionBidirectional},
		{"a_to_b", types.DirectionAToB},
		{"b_to_a", types.DirectionBToA},
		{"unknown", types.DirectionUnknown},
		{"", types.DirectionUnknown},
	}
	for _, tt := range tests {
		t.Run("direction "+tt.legacy, func(t *testing.T) {
			got, err := Normalize(DiscoveredInteraction{
				Query: "ATXN3", Target: "VCP", Direction: tt.legacy,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Direction)
		})
	}

	_, err := Normalize(DiscoveredInteraction{Query: "A", Target: "B", Direction: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestNormalizeLegacySingleArrow(t *testing.T) {
	got, err := Normalize(DiscoveredInteraction{
		Query: "ATXN3", Target: "VCP",
		Direction: "main_to_primary",
		Arrow:     "binds",
	})
	require.NoError(t, err)
	assert.Equal(t, types.ArrowSet{types.DirectionAToB: {"binds"}}, got.Arrows)
}

func TestNormalizeArrowBuckets(t *testing.T) {
	got, err := Normalize(DiscoveredInteraction{
		Query: "ATXN3", Target: "VCP",
		Direction: "bidirectional",
		Arrow:     "binds",
		Arrows: map[string][]string{
			"main_to_primary": {"activates"},
			"b_to_a":          {"inhibits"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"activates"}, got.Arrows[types.DirectionAToB])
	assert.Equal(t, []string{"inhibits"}, got.Arrows[types.DirectionBToA])
	assert.Equal(t, []string{"binds"}, got.Arrows[types.DirectionBidirectional],
		"legacy single tag folds into the finding's own direction bucket")
}

func TestNormalizeChainInference(t *testing.T) {
	// Chain present: upstream is its last member by definition, a stored
	// conflicting upstream is ignored.
	got, err := Normalize(DiscoveredInteraction{
		Query: "p62", Target: "NRF2",
		Type:               "indirect",
		MediatorChain:      []string{"KEAP1"},
		UpstreamInteractor: "SOMETHING_ELSE",
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindIndirect, got.Kind)
	assert.Equal(t, []string{"KEAP1"}, got.Chain.Mediators)
	assert.Equal(t, "KEAP1", got.Chain.Upstream())

	// Only upstream present: the path is that single mediator.
	got, err = Normalize(DiscoveredInteraction{
		Query: "p62", Target: "NRF2",
		Type:               "indirect",
		UpstreamInteractor: "KEAP1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"KEAP1"}, got.Chain.Mediators)

	// Neither present: the chain is unknown, never fabricated.
	got, err = Normalize(DiscoveredInteraction{
		Query: "p62", Target: "NRF2",
		Type: "indirect",
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindIndirect, got.Kind)
	assert.False(t, got.Chain.Known)
}

func TestNormalizeDemotesCorruptMediator(t *testing.T) {
	got, err := Normalize(DiscoveredInteraction{
		Query: "ATXN3", Target: "VCP",
		Type:               "indirect",
		UpstreamInteractor: "VCP",
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindDirect, got.Kind, "self-mediated finding is repaired to direct")
	assert.False(t, got.Chain.Known)
}

func TestNormalizeRejectsBadPayloads(t *testing.T) {
	_, err := Normalize(DiscoveredInteraction{Target: "VCP"})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Normalize(DiscoveredInteraction{Query: "ATXN3"})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Normalize(DiscoveredInteraction{Query: "ATXN3", Target: "ATXN3"})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Normalize(DiscoveredInteraction{Query: "A", Target: "B", Type: "quantum"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
