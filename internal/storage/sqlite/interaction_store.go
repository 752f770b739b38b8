package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/propaths/propaths/internal/storage"
	"github.com/propaths/propaths/pkg/types"
)

// Store implements storage.InteractionStore using SQLite.
//
// SQLite is the degraded fallback: it honors the same interface and the
// same canonical-pair semantics, but the heavy concurrent-writer
// guarantees are the primary Postgres store's job. Here a single open
// connection serialises writes.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) a SQLite interaction store at the
// given path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY under concurrent load; WAL
	// lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// isUniqueViolation reports whether err is SQLite's unique-constraint
// failure. The modernc driver exposes it only through the message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// EnsureProtein returns the protein with the given symbol, creating it on
// first reference.
func (s *Store) EnsureProtein(ctx context.Context, symbol string) (*types.Protein, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: protein symbol is required", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO proteins (symbol, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(symbol) DO NOTHING`, symbol, now, now)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to ensure protein %q: %w", symbol, err)
	}

	return s.GetProtein(ctx, symbol)
}

// GetProtein retrieves a protein by symbol.
func (s *Store) GetProtein(ctx context.Context, symbol string) (*types.Protein, error) {
	p := &types.Protein{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, symbol, interaction_count, query_count, created_at, updated_at
		 FROM proteins WHERE symbol = ?`, symbol).
		Scan(&p.ID, &p.Symbol, &p.InteractionCount, &p.QueryCount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: protein %q", storage.ErrNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get protein %q: %w", symbol, err)
	}
	return p, nil
}

// UpsertInteraction stores a canonicalized record with
// find-or-create-or-merge semantics inside one transaction. A unique
// violation from a concurrent insert is retried as a merge.
func (s *Store) UpsertInteraction(ctx context.Context, rec *types.Interaction) (*types.Interaction, bool, error) {
	if rec == nil {
		return nil, false, storage.ErrInvalidInput
	}
	if rec.ProteinAID <= 0 || rec.ProteinBID <= 0 {
		return nil, false, fmt.Errorf("%w: both endpoint ids are required", storage.ErrInvalidInput)
	}
	if rec.ProteinAID >= rec.ProteinBID {
		return nil, false, fmt.Errorf("%w: record is not in canonical order (%d, %d)",
			storage.ErrInvalidInput, rec.ProteinAID, rec.ProteinBID)
	}

	stored, inserted, err := s.upsertOnce(ctx, rec)
	if err == nil {
		return stored, inserted, nil
	}
	if isUniqueViolation(err) {
		log.Printf("sqlite: upsert race on pair (%d, %d), retrying as merge",
			rec.ProteinAID, rec.ProteinBID)
		return s.upsertOnce(ctx, rec)
	}
	return nil, false, err
}

func (s *Store) upsertOnce(ctx context.Context, rec *types.Interaction) (*types.Interaction, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectInteraction+
		` WHERE i.protein_a_id = ? AND i.protein_b_id = ?`, rec.ProteinAID, rec.ProteinBID)
	existing, err := scanInteraction(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("sqlite: failed to read pair (%d, %d): %w",
			rec.ProteinAID, rec.ProteinBID, err)
	}

	if existing != nil {
		existing.MergeFrom(rec)
		if err := updateInteraction(ctx, tx, existing); err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("sqlite: failed to commit merge: %w", err)
		}
		return existing, false, nil
	}

	stored, err := insertInteraction(ctx, tx, rec)
	if err != nil {
		return nil, false, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE proteins
		 SET interaction_count = interaction_count + 1, updated_at = ?
		 WHERE id IN (?, ?)`, time.Now().UTC(), rec.ProteinAID, rec.ProteinBID)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: failed to increment interaction counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("sqlite: failed to commit insert: %w", err)
	}
	return stored, true, nil
}

func insertInteraction(ctx context.Context, tx *sql.Tx, rec *types.Interaction) (*types.Interaction, error) {
	arrowsJSON, chainJSON, dataJSON, err := marshalPayload(rec)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	stored := rec.Clone()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	result, err := tx.ExecContext(ctx,
		`INSERT INTO interactions
		 (protein_a_id, protein_b_id, direction, arrow, arrows, interaction_type,
		  mediator_chain, depth, confidence, data, discovered_in_query, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ProteinAID, rec.ProteinBID, string(rec.Direction), nullString(rec.Arrow),
		arrowsJSON, string(rec.Kind), chainJSON, depthOf(rec), nullFloat(rec.Confidence),
		dataJSON, nullString(rec.DiscoveredIn), now, now)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to insert pair (%d, %d): %w",
			rec.ProteinAID, rec.ProteinBID, err)
	}
	stored.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get insert id: %w", err)
	}
	return stored, nil
}

func updateInteraction(ctx context.Context, tx *sql.Tx, rec *types.Interaction) error {
	arrowsJSON, chainJSON, dataJSON, err := marshalPayload(rec)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE interactions
		 SET direction = ?, arrow = ?, arrows = ?, interaction_type = ?,
		     mediator_chain = ?, depth = ?, confidence = ?, data = ?,
		     discovered_in_query = ?, updated_at = ?
		 WHERE id = ?`,
		string(rec.Direction), nullString(rec.Arrow), arrowsJSON, string(rec.Kind),
		chainJSON, depthOf(rec), nullFloat(rec.Confidence), dataJSON,
		nullString(rec.DiscoveredIn), time.Now().UTC(), rec.ID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update interaction %d: %w", rec.ID, err)
	}
	return nil
}

// GetInteraction retrieves the row for a canonical pair.
func (s *Store) GetInteraction(ctx context.Context, lowID, highID int64) (*types.Interaction, error) {
	if lowID >= highID {
		return nil, fmt.Errorf("%w: pair (%d, %d) is not in canonical order",
			storage.ErrInvalidInput, lowID, highID)
	}

	row := s.db.QueryRowContext(ctx, selectInteraction+
		` WHERE i.protein_a_id = ? AND i.protein_b_id = ?`, lowID, highID)
	rec, err := scanInteraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: interaction (%d, %d)", storage.ErrNotFound, lowID, highID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get interaction (%d, %d): %w", lowID, highID, err)
	}
	return rec, nil
}

// ListInteractionsFor returns every interaction involving the protein.
func (s *Store) ListInteractionsFor(ctx context.Context, proteinID int64) ([]*types.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, selectInteraction+
		` WHERE i.protein_a_id = ? OR i.protein_b_id = ? ORDER BY i.id`, proteinID, proteinID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list interactions for protein %d: %w", proteinID, err)
	}
	return collectInteractions(rows)
}

// ListInteractionsAmong returns the interactions whose both endpoints are
// in the given id set.
func (s *Store) ListInteractionsAmong(ctx context.Context, proteinIDs []int64) ([]*types.Interaction, error) {
	if len(proteinIDs) < 2 {
		return nil, nil
	}
	placeholders, args := expandIDs(proteinIDs)
	query := selectInteraction +
		` WHERE i.protein_a_id IN (` + placeholders + `) AND i.protein_b_id IN (` + placeholders + `)
		 ORDER BY i.id`
	rows, err := s.db.QueryContext(ctx, query, append(args, args...)...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list interactions among set: %w", err)
	}
	return collectInteractions(rows)
}

// ListInteractionsBetween returns the interactions with one endpoint in
// setA and the other in setB.
func (s *Store) ListInteractionsBetween(ctx context.Context, setA, setB []int64) ([]*types.Interaction, error) {
	if len(setA) == 0 || len(setB) == 0 {
		return nil, nil
	}
	phA, argsA := expandIDs(setA)
	phB, argsB := expandIDs(setB)
	query := selectInteraction +
		` WHERE (i.protein_a_id IN (` + phA + `) AND i.protein_b_id IN (` + phB + `))
		    OR (i.protein_a_id IN (` + phB + `) AND i.protein_b_id IN (` + phA + `))
		 ORDER BY i.id`

	args := make([]any, 0, 2*(len(argsA)+len(argsB)))
	args = append(args, argsA...)
	args = append(args, argsB...)
	args = append(args, argsB...)
	args = append(args, argsA...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list interactions between sets: %w", err)
	}
	return collectInteractions(rows)
}

func expandIDs(ids []int64) (string, []any) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return placeholders, args
}

// InteractionCount returns the maintained interaction_count for the protein.
func (s *Store) InteractionCount(ctx context.Context, proteinID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT interaction_count FROM proteins WHERE id = ?`, proteinID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: protein %d", storage.ErrNotFound, proteinID)
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to get interaction count for protein %d: %w", proteinID, err)
	}
	return count, nil
}

// IncrementQueryCount atomically bumps the protein's query_count.
func (s *Store) IncrementQueryCount(ctx context.Context, proteinID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE proteins SET query_count = query_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), proteinID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to increment query count for protein %d: %w", proteinID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: protein %d", storage.ErrNotFound, proteinID)
	}
	return nil
}

// RecountInteractions recomputes interaction_count for every protein from
// the interaction rows.
func (s *Store) RecountInteractions(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE proteins
		 SET interaction_count = (
		     SELECT COUNT(*) FROM interactions i
		     WHERE i.protein_a_id = proteins.id OR i.protein_b_id = proteins.id
		 ),
		 updated_at = ?
		 WHERE interaction_count <> (
		     SELECT COUNT(*) FROM interactions i
		     WHERE i.protein_a_id = proteins.id OR i.protein_b_id = proteins.id
		 )`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to recount interactions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// DeduplicateInteractions collapses legacy dual-written rows into the
// canonical row. On a database created by this store's schema it is a
// no-op; it matters for files migrated from the pre-constraint layout.
func (s *Store) DeduplicateInteractions(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, selectInteraction+` ORDER BY i.id`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to scan interactions: %w", err)
	}
	all, err := collectInteractions(rows)
	if err != nil {
		return 0, err
	}

	removed := 0
	keepers := make(map[string]*types.Interaction)
	for _, rec := range all {
		canonical := rec
		if rec.ProteinAID > rec.ProteinBID {
			canonical = flipToCanonical(rec)
		}
		key := canonical.PairKey()

		keeper, seen := keepers[key]
		if !seen {
			keepers[key] = canonical
			if canonical != rec {
				if err := rewriteCanonical(ctx, tx, canonical); err != nil {
					return 0, err
				}
			}
			continue
		}

		keeper.MergeFrom(canonical)
		if err := updateInteraction(ctx, tx, keeper); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM interactions WHERE id = ?`, rec.ID); err != nil {
			return 0, fmt.Errorf("sqlite: failed to delete duplicate row %d: %w", rec.ID, err)
		}
		removed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: failed to commit deduplication: %w", err)
	}

	if removed > 0 {
		log.Printf("sqlite: deduplicated %d legacy interaction rows", removed)
		if _, err := s.RecountInteractions(ctx); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func flipToCanonical(rec *types.Interaction) *types.Interaction {
	out := rec.Clone()
	out.ProteinAID, out.ProteinBID = rec.ProteinBID, rec.ProteinAID
	out.ProteinA, out.ProteinB = rec.ProteinB, rec.ProteinA
	out.Direction = rec.Direction.Flip()
	out.Arrows = rec.Arrows.Flip()
	return out
}

func rewriteCanonical(ctx context.Context, tx *sql.Tx, rec *types.Interaction) error {
	arrowsJSON, _, _, err := marshalPayload(rec)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE interactions
		 SET protein_a_id = ?, protein_b_id = ?, direction = ?, arrows = ?, updated_at = ?
		 WHERE id = ?`,
		rec.ProteinAID, rec.ProteinBID, string(rec.Direction), arrowsJSON,
		time.Now().UTC(), rec.ID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to rewrite row %d in canonical order: %w", rec.ID, err)
	}
	return nil
}

const selectInteraction = `
SELECT i.id, i.protein_a_id, i.protein_b_id, pa.symbol, pb.symbol,
       i.direction, i.arrow, i.arrows, i.interaction_type, i.mediator_chain,
       i.confidence, i.data, i.discovered_in_query, i.created_at, i.updated_at
FROM interactions i
JOIN proteins pa ON pa.id = i.protein_a_id
JOIN proteins pb ON pb.id = i.protein_b_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInteraction(row rowScanner) (*types.Interaction, error) {
	rec := &types.Interaction{}
	var arrow, discoveredIn, arrowsJSON, chainJSON, dataJSON sql.NullString
	var confidence sql.NullFloat64
	var direction, kind string

	err := row.Scan(&rec.ID, &rec.ProteinAID, &rec.ProteinBID, &rec.ProteinA, &rec.ProteinB,
		&direction, &arrow, &arrowsJSON, &kind, &chainJSON,
		&confidence, &dataJSON, &discoveredIn, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Direction = types.Direction(direction)
	rec.Kind = types.Kind(kind)
	rec.Arrow = arrow.String
	rec.Confidence = confidence.Float64
	rec.DiscoveredIn = discoveredIn.String

	if arrowsJSON.Valid && arrowsJSON.String != "" {
		if err := json.Unmarshal([]byte(arrowsJSON.String), &rec.Arrows); err != nil {
			return nil, fmt.Errorf("sqlite: failed to unmarshal arrows: %w", err)
		}
	}
	if chainJSON.Valid && chainJSON.String != "" {
		rec.Chain.Known = true
		if err := json.Unmarshal([]byte(chainJSON.String), &rec.Chain.Mediators); err != nil {
			return nil, fmt.Errorf("sqlite: failed to unmarshal mediator chain: %w", err)
		}
	}
	if dataJSON.Valid && dataJSON.String != "" {
		if err := json.Unmarshal([]byte(dataJSON.String), &rec.Data); err != nil {
			return nil, fmt.Errorf("sqlite: failed to unmarshal data: %w", err)
		}
	}
	return rec, nil
}

func collectInteractions(rows *sql.Rows) ([]*types.Interaction, error) {
	defer rows.Close()
	var out []*types.Interaction
	for rows.Next() {
		rec, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan interaction row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: interaction row iteration failed: %w", err)
	}
	return out, nil
}

func marshalPayload(rec *types.Interaction) (arrows, chain, data sql.NullString, err error) {
	if rec.Arrows != nil {
		b, merr := json.Marshal(rec.Arrows)
		if merr != nil {
			err = fmt.Errorf("sqlite: failed to marshal arrows: %w", merr)
			return
		}
		arrows = sql.NullString{String: string(b), Valid: true}
	}
	if rec.Chain.Known {
		mediators := rec.Chain.Mediators
		if mediators == nil {
			mediators = []string{}
		}
		b, merr := json.Marshal(mediators)
		if merr != nil {
			err = fmt.Errorf("sqlite: failed to marshal mediator chain: %w", merr)
			return
		}
		chain = sql.NullString{String: string(b), Valid: true}
	}
	if rec.Data != nil {
		b, merr := json.Marshal(rec.Data)
		if merr != nil {
			err = fmt.Errorf("sqlite: failed to marshal data: %w", merr)
			return
		}
		data = sql.NullString{String: string(b), Valid: true}
	}
	return arrows, chain, data, nil
}

func depthOf(rec *types.Interaction) int {
	if rec.Kind == types.KindIndirect {
		return rec.Chain.Depth()
	}
	return 1
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}
