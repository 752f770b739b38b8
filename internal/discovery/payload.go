// Package discovery adapts findings from the external discovery pipeline
// (and its cache snapshots) into the typed interaction model.
//
// The pipeline speaks a query-relative vocabulary that predates the
// canonical store: directions are main_to_primary / primary_to_main, arrows
// may be a single legacy tag or keyed buckets, and indirect findings carry
// either an upstream_interactor, a mediator_chain, both, or neither.
// Normalize is the single place where all of that is translated; nothing
// downstream of it ever sees the legacy vocabulary.
package discovery

import (
	"errors"
	"fmt"
	"log"

	"github.com/propaths/propaths/pkg/types"
)

// ErrInvalidPayload indicates a finding the adapter cannot interpret.
var ErrInvalidPayload = errors.New("invalid discovery payload")

// Legacy query-relative direction values.
const (
	legacyMainToPrimary = "main_to_primary"
	legacyPrimaryToMain = "primary_to_main"
)

// DiscoveredInteraction is one finding as the pipeline or a cache snapshot
// emits it.
type DiscoveredInteraction struct {
	Query  string `json:"query_protein"`
	Target string `json:"protein"`

	// Type is "direct" or "indirect". Empty means direct.
	Type string `json:"interaction_type,omitempty"`

	// Direction is query-relative, in either the legacy vocabulary
	// (main_to_primary / primary_to_main) or the current one (a_to_b /
	// b_to_a / bidirectional / unknown).
	Direction string `json:"direction,omitempty"`

	// Arrow is the legacy single tag; Arrows the bucketed form. When both
	// appear the buckets win and the single tag is folded in.
	Arrow  string              `json:"arrow,omitempty"`
	Arrows map[string][]string `json:"arrows,omitempty"`

	// UpstreamInteractor and MediatorChain describe the path of an
	// indirect finding. Older runs recorded only the upstream interactor.
	UpstreamInteractor string   `json:"upstream_interactor,omitempty"`
	MediatorChain      []string `json:"mediator_chain,omitempty"`

	Confidence float64        `json:"confidence,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Normalized is a finding translated into the typed model, still expressed
// from the query protein's point of view (subject = query).
type Normalized struct {
	Query  string
	Target string

	Direction  types.Direction
	Arrows     types.ArrowSet
	Kind       types.Kind
	Chain      types.Chain
	Confidence float64
	Data       map[string]any
}

// Normalize translates one finding. Chain handling follows the recorded
// data and never invents a path:
//
//   - mediator_chain present: it is the path, and the upstream interactor
//     is by definition its last member (a conflicting stored upstream is
//     ignored);
//   - only upstream_interactor present: the path is that single mediator;
//   - neither present on an indirect finding: the chain stays unknown.
//
// An indirect finding whose recorded mediator equals one of its own
// endpoints is corrupt; it is demoted to a direct finding with the path
// dropped, matching how such rows are repaired in place.
func Normalize(item DiscoveredInteraction) (*Normalized, error) {
	if item.Query == "" || item.Target == "" {
		return nil, fmt.Errorf("%w: missing query or target protein", ErrInvalidPayload)
	}
	if item.Query == item.Target {
		return nil, fmt.Errorf("%w: query and target are both %q", ErrInvalidPayload, item.Query)
	}

	direction, err := normalizeDirection(item.Direction)
	if err != nil {
		return nil, err
	}

	out := &Normalized{
		Query:      item.Query,
		Target:     item.Target,
		Direction:  direction,
		Arrows:     normalizeArrows(item, direction),
		Kind:       types.KindDirect,
		Confidence: item.Confidence,
		Data:       item.Data,
	}

	switch item.Type {
	case "", string(types.KindDirect):
		return out, nil
	case string(types.KindIndirect):
	default:
		return nil, fmt.Errorf("%w: unknown interaction_type %q", ErrInvalidPayload, item.Type)
	}

	out.Kind = types.KindIndirect
	switch {
	case len(item.MediatorChain) > 0:
		out.Chain = types.Chain{Known: true, Mediators: append([]string(nil), item.MediatorChain...)}
	case item.UpstreamInteractor != "":
		out.Chain = types.Chain{Known: true, Mediators: []string{item.UpstreamInteractor}}
	default:
		// First-ring indirect from an older run; the path is simply unknown.
		out.Chain = types.Chain{}
	}

	for _, m := range out.Chain.Mediators {
		if m == item.Query || m == item.Target {
			log.Printf("discovery: %s-%s records itself as mediator, demoting to direct",
				item.Query, item.Target)
			out.Kind = types.KindDirect
			out.Chain = types.Chain{}
			break
		}
	}
	return out, nil
}

func normalizeDirection(d string) (types.Direction, error) {
	switch d {
	case legacyMainToPrimary:
		return types.DirectionAToB, nil
	case legacyPrimaryToMain:
		return types.DirectionBToA, nil
	case "":
		return types.DirectionUnknown, nil
	}
	dir := types.Direction(d)
	if !dir.Valid() {
		return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidPayload, d)
	}
	return dir, nil
}

// normalizeArrows folds the legacy single tag and the bucketed form into
// one ArrowSet keyed by the current direction vocabulary.
func normalizeArrows(item DiscoveredInteraction, direction types.Direction) types.ArrowSet {
	if item.Arrow == "" && len(item.Arrows) == 0 {
		return nil
	}

	out := make(types.ArrowSet)
	for key, tags := range item.Arrows {
		dir, err := normalizeDirection(key)
		if err != nil {
			log.Printf("discovery: dropping arrow bucket with unknown direction %q", key)
			continue
		}
		out = out.Union(types.ArrowSet{dir: tags})
	}
	if item.Arrow != "" {
		out = out.Union(types.ArrowSet{direction: {item.Arrow}})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
