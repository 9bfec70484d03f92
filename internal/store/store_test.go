package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somatic-tier-classifier/internal/domain"
)

var evaluatedAt = time.Date(2025, 2, 1, 12, 30, 0, 0, time.UTC)

func sampleResult(variantID string, framework domain.GuidelineFramework, tier domain.Tier) domain.TierResult {
	return domain.TierResult{
		VariantID:       variantID,
		Framework:       framework,
		TierAssigned:    tier,
		ConfidenceScore: 0.95,
		RulesInvoked:    []string{"AMP_IA_FDA_SAME_TUMOR"},
		RuleEvidence: map[string]domain.RuleTrace{
			"AMP_IA_FDA_SAME_TUMOR": {
				RuleID:          "AMP_IA_FDA_SAME_TUMOR",
				Candidate:       tier,
				ConfidenceDelta: 0.95,
				Justification:   "FDA-approved therapy for this tumor type (FDA_SAME_TUMOR from FDA_APPROVED)",
				Evidence: []domain.Evidence{{
					Source:        domain.FDA_APPROVED,
					Code:          domain.CodeFDASameTumor,
					Direction:     domain.SUPPORTS_PATHOGENIC,
					Strength:      domain.VERY_STRONG,
					RawScore:      10,
					AdjustedScore: 10,
					PathwayWeight: 1,
					Status:        domain.EVIDENCE_FOUND,
					Detail:        map[string]string{"drug": "vemurafenib"},
				}},
			},
		},
		AnalysisType:      domain.TUMOR_NORMAL,
		Clonality:         domain.CLONAL,
		KBVersionSnapshot: "kb-2025-01",
		EvaluatedAt:       evaluatedAt,
	}
}

// unencodable returns a result whose trace cannot be serialized, so its insert
// fails after earlier inserts in the same transaction succeeded.
func unencodable(variantID string, framework domain.GuidelineFramework) domain.TierResult {
	r := sampleResult(variantID, framework, "TIER_IA")
	r.RuleEvidence = map[string]domain.RuleTrace{"BROKEN": {ConfidenceDelta: math.NaN()}}
	return r
}

func TestOpen_Drivers(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	s, err := Open(ctx, domain.StorageConfig{Driver: "none"}, logger)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, domain.StorageConfig{Driver: "sqlite", SQLitePath: t.TempDir() + "/results.db"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, domain.StorageConfig{Driver: "mysql"}, logger)
	assert.Error(t, err)

	_, err = Open(ctx, domain.StorageConfig{Driver: "postgres"}, logger)
	assert.Error(t, err, "postgres without a URL cannot connect")
}
