package types

import "time"

// Protein represents one tracked protein in the directory.
// Proteins are created on first reference (a discovery run mentioning them,
// or a lookup with create semantics) and are never deleted during normal
// operation.
type Protein struct {
	// ID is the internal surrogate id, assigned once by the database and
	// used only for canonical pair ordering. It is never exposed to API
	// consumers; the symbol is the public identifier.
	ID int64 `json:"-"`

	// Symbol is the stable symbolic identifier (e.g. "ATXN3").
	// Unique and case-sensitive.
	Symbol string `json:"symbol"`

	// InteractionCount is the aggregate number of stored interactions this
	// protein participates in, counting both canonical sides.
	InteractionCount int `json:"interaction_count"`

	// QueryCount is the number of times this protein has been the subject
	// of a query.
	QueryCount int `json:"query_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
