package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/somatic-tier-classifier/internal/domain"
)

// SQLiteStore implements domain.ResultStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite result store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; batch workers queue on the pool instead of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tier_results (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		request_id TEXT NOT NULL DEFAULT '',
		variant_id TEXT NOT NULL,
		framework TEXT NOT NULL,
		tier_assigned TEXT NOT NULL,
		confidence_score REAL NOT NULL,
		rules_invoked TEXT NOT NULL DEFAULT '[]',
		rule_evidence TEXT NOT NULL DEFAULT '{}',
		analysis_type TEXT NOT NULL DEFAULT '',
		clonality TEXT NOT NULL DEFAULT '',
		kb_version_snapshot TEXT NOT NULL DEFAULT '',
		evaluated_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tier_results_variant_framework ON tier_results(variant_id, framework, seq);
	CREATE INDEX IF NOT EXISTS idx_tier_results_request ON tier_results(request_id);
	`

	_, err := db.Exec(schema)
	return err
}

const sqliteColumns = `id, request_id, variant_id, framework, tier_assigned, confidence_score,
	rules_invoked, rule_evidence, analysis_type, clonality, kb_version_snapshot,
	evaluated_at, created_at`

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteRecord(s scanner) (domain.TierRecord, error) {
	var (
		rec                                      domain.TierRecord
		framework, tier, analysisType, clonality string
		rulesJSON, evidenceJSON                  string
	)
	r := &rec.Result
	err := s.Scan(
		&rec.ID, &rec.RequestID, &r.VariantID, &framework, &tier, &r.ConfidenceScore,
		&rulesJSON, &evidenceJSON, &analysisType, &clonality, &r.KBVersionSnapshot,
		&r.EvaluatedAt, &rec.CreatedAt,
	)
	if err != nil {
		return rec, err
	}

	r.Framework = domain.GuidelineFramework(framework)
	r.TierAssigned = domain.Tier(tier)
	r.AnalysisType = domain.AnalysisType(analysisType)
	r.Clonality = domain.Clonality(clonality)
	if err := json.Unmarshal([]byte(rulesJSON), &r.RulesInvoked); err != nil {
		return rec, fmt.Errorf("failed to decode rules_invoked: %w", err)
	}
	if err := json.Unmarshal([]byte(evidenceJSON), &r.RuleEvidence); err != nil {
		return rec, fmt.Errorf("failed to decode rule_evidence: %w", err)
	}
	return rec, nil
}

// Save appends a result and returns the new record id.
func (s *SQLiteStore) Save(ctx context.Context, result domain.TierResult, requestID string) (string, error) {
	return s.insert(ctx, s.db, result, requestID)
}

// SaveAll appends results in one transaction. On error nothing is stored.
func (s *SQLiteStore) SaveAll(ctx context.Context, results []domain.TierResult, requestID string) ([]string, error) {
	return saveAll(ctx, s.db, results, requestID, s.insert)
}

func (s *SQLiteStore) insert(ctx context.Context, db execer, result domain.TierResult, requestID string) (string, error) {
	rules, evidence, err := encodeTrace(result)
	if err != nil {
		return "", err
	}
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return "", fmt.Errorf("failed to encode rules_invoked: %w", err)
	}

	id := newRecordID()
	_, err = db.ExecContext(ctx, `
		INSERT INTO tier_results (
			id, request_id, variant_id, framework, tier_assigned, confidence_score,
			rules_invoked, rule_evidence, analysis_type, clonality, kb_version_snapshot,
			evaluated_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		requestID,
		result.VariantID,
		string(result.Framework),
		string(result.TierAssigned),
		result.ConfidenceScore,
		string(rulesJSON),
		string(evidence),
		string(result.AnalysisType),
		string(result.Clonality),
		result.KBVersionSnapshot,
		result.EvaluatedAt,
		s.now(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert: %w", err)
	}
	return id, nil
}

// Latest returns the most recently saved result for the variant under framework.
func (s *SQLiteStore) Latest(ctx context.Context, variantID string, framework domain.GuidelineFramework) (*domain.TierRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteColumns+`
		FROM tier_results
		WHERE variant_id = ? AND framework = ?
		ORDER BY seq DESC
		LIMIT 1
	`, variantID, string(framework))

	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(variantID, framework)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return &rec, nil
}

// History returns every saved result for the variant, oldest first. An empty
// framework matches all frameworks.
func (s *SQLiteStore) History(ctx context.Context, variantID string, framework domain.GuidelineFramework) ([]domain.TierRecord, error) {
	return s.list(ctx, `
		SELECT `+sqliteColumns+`
		FROM tier_results
		WHERE variant_id = ? AND (? = '' OR framework = ?)
		ORDER BY seq ASC
	`, variantID, string(framework), string(framework))
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...interface{}) ([]domain.TierRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []domain.TierRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the total number of stored results.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tier_results").Scan(&count)
	return count, err
}

// ExportJSON writes every stored result, oldest first.
func (s *SQLiteStore) ExportJSON(ctx context.Context, w io.Writer) error {
	all, err := s.list(ctx, `SELECT `+sqliteColumns+` FROM tier_results ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}
	return writeExport(w, all, s.now())
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
