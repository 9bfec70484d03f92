// Package store persists tier results for audit. Saves are append-only: a re-run
// of the same variant and framework adds a record and never overwrites one.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/somatic-tier-classifier/internal/database"
	"github.com/somatic-tier-classifier/internal/domain"
)

// ExportVersion is the schema version written by ExportJSON.
const ExportVersion = "1.0"

// Export is the document written by ExportJSON.
type Export struct {
	Version    string              `json:"version"`
	ExportedAt time.Time           `json:"exported_at"`
	Count      int                 `json:"count"`
	Records    []domain.TierRecord `json:"records"`
}

// Open returns the store selected by cfg.Driver. The "none" driver yields a nil
// store and no error; callers skip persistence.
func Open(ctx context.Context, cfg domain.StorageConfig, logger *logrus.Logger) (domain.ResultStore, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.WithField("path", cfg.SQLitePath).Info("Using SQLite result store")
		return s, nil
	case "postgres":
		db, err := database.NewConnection(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		s, err := NewPostgresStore(db.SQL)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type insertFunc func(ctx context.Context, db execer, result domain.TierResult, requestID string) (string, error)

// saveAll inserts results inside one transaction and rolls it back on the first
// failure.
func saveAll(ctx context.Context, db *sql.DB, results []domain.TierResult, requestID string, insert insertFunc) ([]string, error) {
	if len(results) == 0 {
		return []string{}, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]string, 0, len(results))
	for _, r := range results {
		id, err := insert(ctx, tx, r, requestID)
		if err != nil {
			return nil, fmt.Errorf("save %s for %s: %w", r.Framework, r.VariantID, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit results: %w", err)
	}
	return ids, nil
}

func newRecordID() string {
	return uuid.NewString()
}

// encodeTrace serializes the audit columns shared by both stores.
func encodeTrace(result domain.TierResult) (rules []string, evidence []byte, err error) {
	rules = result.RulesInvoked
	if rules == nil {
		rules = []string{}
	}
	ruleEvidence := result.RuleEvidence
	if ruleEvidence == nil {
		ruleEvidence = map[string]domain.RuleTrace{}
	}
	evidence, err = json.Marshal(ruleEvidence)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode rule evidence: %w", err)
	}
	return rules, evidence, nil
}

func writeExport(w io.Writer, records []domain.TierRecord, now time.Time) error {
	if records == nil {
		records = []domain.TierRecord{}
	}
	export := &Export{
		Version:    ExportVersion,
		ExportedAt: now,
		Count:      len(records),
		Records:    records,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func notFound(variantID string, framework domain.GuidelineFramework) error {
	return fmt.Errorf("no result for %s under %s: %w", variantID, framework, domain.ErrNotFound)
}
