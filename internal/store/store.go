// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists protocols, extracted criteria and screening runs in
// a SQLite database so runs can be listed, reloaded and exported later.
// Criterion text is indexed with FTS5 for search across protocols.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

const dbFile = "prescreen.db"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the screening database.
type Store struct {
	db  *sql.DB
	dir string
	log *slog.Logger
}

// Open opens or creates the database at dir/prescreen.db and bootstraps the
// schema. A nil logger uses slog.Default().
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir, log: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, dbFile)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT,
			text TEXT NOT NULL,
			page_estimate INTEGER,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS criteria (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL REFERENCES documents(id),
			id TEXT NOT NULL,
			kind TEXT NOT NULL,
			text TEXT NOT NULL,
			elimination_rate REAL,
			priority INTEGER,
			category TEXT,
			numeric_threshold INTEGER,
			temporal INTEGER,
			ambiguous INTEGER,
			UNIQUE(document_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_criteria_document_id ON criteria(document_id)`,
		`CREATE TABLE IF NOT EXISTS runs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL REFERENCES documents(id),
			created_at TEXT NOT NULL,
			total_candidates INTEGER,
			passed INTEGER,
			failed INTEGER,
			needs_review INTEGER,
			combined_elimination_rate REAL,
			duration_ns INTEGER,
			pareto_criteria TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_document_id ON runs(document_id)`,
		`CREATE TABLE IF NOT EXISTS screenings (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			candidate_id TEXT NOT NULL,
			verdict TEXT NOT NULL,
			disqualified_by TEXT,
			duration_ns INTEGER,
			criterion_results TEXT,
			PRIMARY KEY (run_id, candidate_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='criteria_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE criteria_fts USING fts5(text, content=criteria, content_rowid=rowid)`,
			`CREATE TRIGGER criteria_ai AFTER INSERT ON criteria BEGIN
				INSERT INTO criteria_fts(rowid, text) VALUES (new.rowid, new.text);
			END`,
			`CREATE TRIGGER criteria_ad AFTER DELETE ON criteria BEGIN
				INSERT INTO criteria_fts(criteria_fts, rowid, text) VALUES('delete', old.rowid, old.text);
			END`,
			`CREATE TRIGGER criteria_au AFTER UPDATE ON criteria BEGIN
				INSERT INTO criteria_fts(criteria_fts, rowid, text) VALUES('delete', old.rowid, old.text);
				INSERT INTO criteria_fts(rowid, text) VALUES (new.rowid, new.text);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// SaveRun records doc, its extracted criteria and one pipeline result in a
// single transaction and returns the new run id. The document and its
// criteria are upserted; criteria no longer extracted from doc are removed.
func (s *Store) SaveRun(ctx context.Context, doc types.Document, criteria []types.Criterion, result *types.PipelineResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("saving run: nil result")
	}
	runID := uuid.NewString()
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, text, page_estimate, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, text=excluded.text,
			page_estimate=excluded.page_estimate, updated_at=excluded.updated_at`,
		doc.ID, doc.Title, doc.Text, doc.PageEstimate, now,
	)
	if err != nil {
		return "", fmt.Errorf("upserting document: %w", err)
	}

	if err := upsertCriteria(ctx, tx, doc.ID, criteria); err != nil {
		return "", err
	}

	pareto, err := json.Marshal(result.ParetoCriteria)
	if err != nil {
		return "", fmt.Errorf("marshaling pareto criteria: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, document_id, created_at, total_candidates, passed, failed,
			needs_review, combined_elimination_rate, duration_ns, pareto_criteria)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, doc.ID, now, result.TotalCandidates,
		len(result.Passed), len(result.Failed), len(result.NeedsReview),
		result.CombinedEliminationRate, int64(result.Duration), string(pareto),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO screenings (run_id, position, candidate_id, verdict, disqualified_by, duration_ns, criterion_results)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range result.Results() {
		crJSON, err := json.Marshal(r.CriterionResults)
		if err != nil {
			return "", fmt.Errorf("marshaling results for %s: %w", r.CandidateID, err)
		}
		_, err = stmt.ExecContext(ctx,
			runID, i, r.CandidateID, string(r.Verdict), r.DisqualifiedBy,
			int64(r.Duration), string(crJSON),
		)
		if err != nil {
			return "", fmt.Errorf("inserting screening %s: %w", r.CandidateID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}

	s.log.Info("store.saved",
		"run_id", runID,
		"document_id", doc.ID,
		"criteria", len(criteria),
		"candidates", result.TotalCandidates,
	)
	return runID, nil
}

func upsertCriteria(ctx context.Context, tx *sql.Tx, docID string, criteria []types.Criterion) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO criteria (document_id, id, kind, text, elimination_rate, priority, category,
			numeric_threshold, temporal, ambiguous)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(document_id, id) DO UPDATE SET
			kind=excluded.kind, text=excluded.text, elimination_rate=excluded.elimination_rate,
			priority=excluded.priority, category=excluded.category,
			numeric_threshold=excluded.numeric_threshold, temporal=excluded.temporal,
			ambiguous=excluded.ambiguous`)
	if err != nil {
		return fmt.Errorf("preparing criteria upsert: %w", err)
	}
	defer stmt.Close()

	keep := make([]any, 0, len(criteria)+1)
	keep = append(keep, docID)
	for _, c := range criteria {
		_, err := stmt.ExecContext(ctx,
			docID, c.ID, string(c.Kind), c.Text, c.EliminationRate, c.Priority, c.Category,
			c.Flags.NumericThreshold, c.Flags.Temporal, c.Flags.Ambiguous,
		)
		if err != nil {
			return fmt.Errorf("upserting criterion %s: %w", c.ID, err)
		}
		keep = append(keep, c.ID)
	}

	query := `DELETE FROM criteria WHERE document_id = ?`
	if len(criteria) > 0 {
		query += ` AND id NOT IN (?` + strings.Repeat(", ?", len(criteria)-1) + `)`
	}
	if _, err := tx.ExecContext(ctx, query, keep...); err != nil {
		return fmt.Errorf("removing stale criteria: %w", err)
	}
	return nil
}
