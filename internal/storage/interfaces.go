// Package storage defines the persistence interfaces for the ProPaths
// interaction store.
//
// Implementations hold every interaction exactly once per unordered protein
// pair, in canonical order (protein_a_id < protein_b_id). Callers are
// expected to canonicalize records before writing; the implementations
// enforce the ordering as a hard constraint and reject violations.
package storage

import (
	"context"

	"github.com/propaths/propaths/pkg/types"
)

// InteractionStore is the core persistence interface: protein directory,
// canonical interaction rows, and the per-protein counters maintained
// alongside them.
type InteractionStore interface {
	// EnsureProtein returns the protein with the given symbol, creating it
	// with zeroed counters when it does not exist yet. Safe to call
	// concurrently for the same symbol.
	EnsureProtein(ctx context.Context, symbol string) (*types.Protein, error)

	// GetProtein retrieves a protein by symbol.
	// Returns ErrNotFound if the protein doesn't exist.
	GetProtein(ctx context.Context, symbol string) (*types.Protein, error)

	// UpsertInteraction stores a canonicalized record with
	// find-or-create-or-merge semantics, in a single transaction. When a row
	// for the pair exists the incoming record is merged into it; otherwise a
	// new row is inserted and both endpoints' interaction_count is
	// incremented in the same transaction. A unique-constraint violation
	// from a concurrent insert is retried as a merge, never surfaced.
	// Returns the stored record and whether a new row was inserted.
	UpsertInteraction(ctx context.Context, rec *types.Interaction) (*types.Interaction, bool, error)

	// GetInteraction retrieves the row for a canonical pair.
	// Returns ErrNotFound when no row exists, ErrInvalidInput when
	// lowID >= highID.
	GetInteraction(ctx context.Context, lowID, highID int64) (*types.Interaction, error)

	// ListInteractionsFor returns every interaction involving the protein,
	// on either canonical side. Empty slice when there are none.
	ListInteractionsFor(ctx context.Context, proteinID int64) ([]*types.Interaction, error)

	// ListInteractionsAmong returns the interactions whose both endpoints
	// are in the given id set.
	ListInteractionsAmong(ctx context.Context, proteinIDs []int64) ([]*types.Interaction, error)

	// ListInteractionsBetween returns the interactions with one endpoint in
	// setA and the other in setB. Pairs internal to either set are excluded.
	ListInteractionsBetween(ctx context.Context, setA, setB []int64) ([]*types.Interaction, error)

	// InteractionCount returns the maintained interaction_count for the
	// protein. Returns ErrNotFound for an unknown protein.
	InteractionCount(ctx context.Context, proteinID int64) (int, error)

	// IncrementQueryCount atomically bumps the protein's query_count.
	IncrementQueryCount(ctx context.Context, proteinID int64) error

	// RecountInteractions recomputes interaction_count for every protein
	// from the interaction rows and returns the number of proteins whose
	// counter changed. A repair path: after it runs, counters match what
	// incremental maintenance would have produced.
	RecountInteractions(ctx context.Context) (int, error)

	// DeduplicateInteractions collapses legacy dual-written rows (the same
	// unordered pair stored in both orders) into the canonical row, merging
	// the richer payload, and returns the number of rows removed.
	DeduplicateInteractions(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
