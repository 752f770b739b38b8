// Package postgres provides the PostgreSQL implementation of the
// interaction store.
package postgres

// Schema contains the SQL statements to create the database schema for
// PostgreSQL. Idempotent: every statement uses IF NOT EXISTS.
const Schema = `
-- Proteins table: the protein directory with maintained counters
CREATE TABLE IF NOT EXISTS proteins (
    id BIGSERIAL PRIMARY KEY,
    symbol TEXT NOT NULL UNIQUE,

    -- Maintained counters
    interaction_count INTEGER NOT NULL DEFAULT 0,
    query_count INTEGER NOT NULL DEFAULT 0,

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Interactions table: one row per unordered protein pair, stored in
-- canonical order. All pair-relative fields (direction, arrows) read
-- relative to (protein_a_id, protein_b_id).
CREATE TABLE IF NOT EXISTS interactions (
    id BIGSERIAL PRIMARY KEY,
    protein_a_id BIGINT NOT NULL REFERENCES proteins(id),
    protein_b_id BIGINT NOT NULL REFERENCES proteins(id),

    direction TEXT NOT NULL DEFAULT 'unknown',
    arrow TEXT,
    arrows JSONB,

    -- 'direct' or 'indirect'
    interaction_type TEXT NOT NULL DEFAULT 'direct',

    -- Mediator path for indirect summaries. NULL means the record is
    -- indirect but the path was never captured.
    mediator_chain JSONB,
    depth INTEGER NOT NULL DEFAULT 1,

    confidence REAL,

    -- Opaque evidence document from the discovery pipeline
    data JSONB,

    -- Discovery run that first produced this record
    discovered_in_query TEXT,

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    -- Canonical-pair invariants
    UNIQUE(protein_a_id, protein_b_id),
    CHECK(protein_a_id < protein_b_id)
);

-- Indexes for endpoint lookups
CREATE INDEX IF NOT EXISTS idx_interactions_protein_a ON interactions(protein_a_id);
CREATE INDEX IF NOT EXISTS idx_interactions_protein_b ON interactions(protein_b_id);
CREATE INDEX IF NOT EXISTS idx_interactions_type ON interactions(interaction_type);
CREATE INDEX IF NOT EXISTS idx_proteins_symbol ON proteins(symbol);
`
