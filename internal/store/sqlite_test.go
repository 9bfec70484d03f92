package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somatic-tier-classifier/internal/domain"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveAndLatest(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	result := sampleResult("chr7:140453136:A>T", domain.AMP_ACMG, "TIER_IA")

	id, err := store.Save(ctx, result, "req-1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec, err := store.Latest(ctx, result.VariantID, domain.AMP_ACMG)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.False(t, rec.CreatedAt.IsZero())

	if diff := cmp.Diff(result, rec.Result, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("stored result differs (-saved +loaded):\n%s", diff)
	}
}

func TestSQLiteStore_SaveIsAppendOnly(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	first := sampleResult("v1", domain.AMP_ACMG, "TIER_IIC")
	second := sampleResult("v1", domain.AMP_ACMG, "TIER_IA")

	firstID, err := store.Save(ctx, first, "")
	require.NoError(t, err)
	secondID, err := store.Save(ctx, second, "")
	require.NoError(t, err)
	_, err = store.Save(ctx, sampleResult("v1", domain.CGC_VICC, "ONCOGENIC"), "")
	require.NoError(t, err)

	assert.NotEqual(t, firstID, secondID)

	latest, err := store.Latest(ctx, "v1", domain.AMP_ACMG)
	require.NoError(t, err)
	assert.Equal(t, secondID, latest.ID)
	assert.Equal(t, domain.Tier("TIER_IA"), latest.Result.TierAssigned)

	history, err := store.History(ctx, "v1", domain.AMP_ACMG)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, firstID, history[0].ID)
	assert.Equal(t, domain.Tier("TIER_IIC"), history[0].Result.TierAssigned)

	all, err := store.History(ctx, "v1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSQLiteStore_LatestNotFound(t *testing.T) {
	store := newTestSQLiteStore(t)

	rec, err := store.Latest(context.Background(), "missing", domain.ONCOKB_STYLE)

	assert.Nil(t, rec)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSQLiteStore_UnclassifiedResult(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	result := domain.TierResult{
		VariantID:    "v2",
		Framework:    domain.CGC_VICC,
		TierAssigned: "VUS",
		EvaluatedAt:  evaluatedAt,
	}

	_, err := store.Save(ctx, result, "")
	require.NoError(t, err)

	rec, err := store.Latest(ctx, "v2", domain.CGC_VICC)
	require.NoError(t, err)
	assert.Empty(t, rec.Result.RulesInvoked)
	assert.Empty(t, rec.Result.RuleEvidence)
	assert.Equal(t, 0.0, rec.Result.ConfidenceScore)
}

func TestSQLiteStore_ConcurrentSaves(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Save(ctx, sampleResult("v3", domain.AMP_ACMG, "TIER_IA"), "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, count)
}

func TestSQLiteStore_ExportJSON(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	_, err := store.Save(ctx, sampleResult("v1", domain.AMP_ACMG, "TIER_IA"), "")
	require.NoError(t, err)
	_, err = store.Save(ctx, sampleResult("v2", domain.AMP_ACMG, "TIER_IV"), "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &buf))

	var export Export
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, ExportVersion, export.Version)
	assert.Equal(t, 2, export.Count)
	require.Len(t, export.Records, 2)
	assert.Equal(t, "v1", export.Records[0].Result.VariantID)
	assert.Equal(t, "vemurafenib",
		export.Records[1].Result.RuleEvidence["AMP_IA_FDA_SAME_TUMOR"].Evidence[0].Detail["drug"])
}

func TestSQLiteStore_ExportEmpty(t *testing.T) {
	store := newTestSQLiteStore(t)

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(context.Background(), &buf))
	assert.Contains(t, buf.String(), `"records": []`)
}

func TestSQLiteStore_SaveAll(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	results := []domain.TierResult{
		sampleResult("v1", domain.AMP_ACMG, "TIER_IA"),
		sampleResult("v1", domain.CGC_VICC, "ONCOGENIC"),
		sampleResult("v1", domain.ONCOKB_STYLE, "LEVEL_1"),
	}

	// Act
	ids, err := store.SaveAll(ctx, results, "req-7")

	// Assert
	require.NoError(t, err)
	require.Len(t, ids, 3)
	history, err := store.History(ctx, "v1", "")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, rec := range history {
		assert.Equal(t, ids[i], rec.ID)
		assert.Equal(t, "req-7", rec.RequestID)
		assert.Equal(t, results[i].Framework, rec.Result.Framework)
	}
}

func TestSQLiteStore_SaveAll_FailureStoresNothing(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	results := []domain.TierResult{
		sampleResult("v1", domain.AMP_ACMG, "TIER_IA"),
		unencodable("v1", domain.CGC_VICC),
		sampleResult("v1", domain.ONCOKB_STYLE, "LEVEL_1"),
	}

	// Act
	ids, err := store.SaveAll(ctx, results, "req-8")

	// Assert
	require.Error(t, err)
	assert.Nil(t, ids)
	assert.Contains(t, err.Error(), "CGC_VICC")
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "the first insert must be rolled back")

	_, err = store.Save(ctx, sampleResult("v2", domain.AMP_ACMG, "TIER_IV"), "")
	require.NoError(t, err, "store stays usable after a rollback")
}

func TestSQLiteStore_SaveAll_Empty(t *testing.T) {
	store := newTestSQLiteStore(t)

	ids, err := store.SaveAll(context.Background(), nil, "")

	require.NoError(t, err)
	assert.Empty(t, ids)
}
