package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lib/pq"

	"github.com/somatic-tier-classifier/internal/domain"
)

// PostgresStore implements domain.ResultStore using PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore creates a new PostgreSQL result store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

const postgresColumns = `id, request_id, variant_id, framework, tier_assigned, confidence_score,
	rules_invoked, rule_evidence, analysis_type, clonality, kb_version_snapshot,
	evaluated_at, created_at`

func scanPostgresRecord(s scanner) (domain.TierRecord, error) {
	var (
		rec                                      domain.TierRecord
		framework, tier, analysisType, clonality string
		rules                                    []string
		evidenceJSON                             []byte
	)
	r := &rec.Result
	err := s.Scan(
		&rec.ID, &rec.RequestID, &r.VariantID, &framework, &tier, &r.ConfidenceScore,
		pq.Array(&rules), &evidenceJSON, &analysisType, &clonality, &r.KBVersionSnapshot,
		&r.EvaluatedAt, &rec.CreatedAt,
	)
	if err != nil {
		return rec, err
	}

	r.Framework = domain.GuidelineFramework(framework)
	r.TierAssigned = domain.Tier(tier)
	r.AnalysisType = domain.AnalysisType(analysisType)
	r.Clonality = domain.Clonality(clonality)
	r.RulesInvoked = rules
	if r.RulesInvoked == nil {
		r.RulesInvoked = []string{}
	}
	if err := json.Unmarshal(evidenceJSON, &r.RuleEvidence); err != nil {
		return rec, fmt.Errorf("failed to decode rule_evidence: %w", err)
	}
	return rec, nil
}

// Save appends a result and returns the new record id.
func (s *PostgresStore) Save(ctx context.Context, result domain.TierResult, requestID string) (string, error) {
	return s.insert(ctx, s.db, result, requestID)
}

// SaveAll appends results in one transaction. On error nothing is stored.
func (s *PostgresStore) SaveAll(ctx context.Context, results []domain.TierResult, requestID string) ([]string, error) {
	return saveAll(ctx, s.db, results, requestID, s.insert)
}

func (s *PostgresStore) insert(ctx context.Context, db execer, result domain.TierResult, requestID string) (string, error) {
	rules, evidence, err := encodeTrace(result)
	if err != nil {
		return "", err
	}

	id := newRecordID()
	query := `
		INSERT INTO tier_results (
			id, request_id, variant_id, framework, tier_assigned, confidence_score,
			rules_invoked, rule_evidence, analysis_type, clonality, kb_version_snapshot,
			evaluated_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = db.ExecContext(ctx, query,
		id,
		requestID,
		result.VariantID,
		string(result.Framework),
		string(result.TierAssigned),
		result.ConfidenceScore,
		pq.Array(rules),
		string(evidence),
		string(result.AnalysisType),
		string(result.Clonality),
		result.KBVersionSnapshot,
		result.EvaluatedAt,
		s.now(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save result: %w", err)
	}
	return id, nil
}

// Latest returns the most recently saved result for the variant under framework.
func (s *PostgresStore) Latest(ctx context.Context, variantID string, framework domain.GuidelineFramework) (*domain.TierRecord, error) {
	query := `
		SELECT ` + postgresColumns + `
		FROM tier_results
		WHERE variant_id = $1 AND framework = $2
		ORDER BY seq DESC
		LIMIT 1
	`

	rec, err := scanPostgresRecord(s.db.QueryRowContext(ctx, query, variantID, string(framework)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(variantID, framework)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return &rec, nil
}

// History returns every saved result for the variant, oldest first. An empty
// framework matches all frameworks.
func (s *PostgresStore) History(ctx context.Context, variantID string, framework domain.GuidelineFramework) ([]domain.TierRecord, error) {
	query := `
		SELECT ` + postgresColumns + `
		FROM tier_results
		WHERE variant_id = $1 AND ($2 = '' OR framework = $2)
		ORDER BY seq ASC
	`
	return s.list(ctx, query, variantID, string(framework))
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...interface{}) ([]domain.TierRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var result []domain.TierRecord
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}

	return result, rows.Err()
}

// Count returns the total number of stored results.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tier_results").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}

// ExportJSON writes every stored result, oldest first.
func (s *PostgresStore) ExportJSON(ctx context.Context, w io.Writer) error {
	all, err := s.list(ctx, `SELECT `+postgresColumns+` FROM tier_results ORDER BY seq ASC`)
	if err != nil {
		return err
	}
	return writeExport(w, all, s.now())
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
