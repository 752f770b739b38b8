// Package sqlite provides a file-backed SQLite implementation of the
// interaction store, used as a degraded fallback when PostgreSQL is
// unavailable and as the backend for store-level unit tests.
package sqlite

// Schema contains the SQL statements to create the database schema for
// SQLite. Idempotent: every statement uses IF NOT EXISTS.
const Schema = `
CREATE TABLE IF NOT EXISTS proteins (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol TEXT NOT NULL UNIQUE,

    interaction_count INTEGER NOT NULL DEFAULT 0,
    query_count INTEGER NOT NULL DEFAULT 0,

    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS interactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    protein_a_id INTEGER NOT NULL REFERENCES proteins(id),
    protein_b_id INTEGER NOT NULL REFERENCES proteins(id),

    direction TEXT NOT NULL DEFAULT 'unknown',
    arrow TEXT,
    arrows TEXT,

    interaction_type TEXT NOT NULL DEFAULT 'direct',

    mediator_chain TEXT,
    depth INTEGER NOT NULL DEFAULT 1,

    confidence REAL,
    data TEXT,
    discovered_in_query TEXT,

    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,

    UNIQUE(protein_a_id, protein_b_id),
    CHECK(protein_a_id < protein_b_id)
);

CREATE INDEX IF NOT EXISTS idx_interactions_protein_a ON interactions(protein_a_id);
CREATE INDEX IF NOT EXISTS idx_interactions_protein_b ON interactions(protein_b_id);
CREATE INDEX IF NOT EXISTS idx_interactions_type ON interactions(interaction_type);
`
