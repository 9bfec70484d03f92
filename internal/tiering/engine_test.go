package tiering

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somatic-tier-classifier/internal/domain"
	"github.com/somatic-tier-classifier/internal/evidence"
	"github.com/somatic-tier-classifier/internal/workflow"
)

var fixedNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger, _ := test.NewNullLogger()
	engine := NewEngine(logger)
	engine.now = func() time.Time { return fixedNow }
	return engine
}

// found builds a FOUND item already weighted the way the router would weight it.
func found(source domain.EvidenceSource, code string, strength domain.RuleStrength, raw, weight float64) domain.Evidence {
	return domain.Evidence{
		Source:        source,
		Code:          code,
		Direction:     domain.SUPPORTS_PATHOGENIC,
		Strength:      strength,
		RawScore:      raw,
		PathwayWeight: weight,
		AdjustedScore: raw * weight,
		Status:        domain.EVIDENCE_FOUND,
	}
}

var kras = domain.VariantContext{
	VariantID:   "chr12:25398284:C>T",
	GeneSymbol:  "KRAS",
	HGVS:        "NM_004985.5:c.35G>A",
	Consequence: "missense_variant",
	IsHotspot:   true,
	TumorVAF:    0.38,
}

func TestEngine_NoRuleFired_IsUnclassified(t *testing.T) {
	engine := newTestEngine(t)

	evidenceSets := map[string][]domain.Evidence{
		"empty": nil,
		"below score floor": {
			found(domain.FDA_APPROVED, domain.CodeFDASameTumor, domain.VERY_STRONG, 0.4, 1.0),
		},
		"not usable": {
			{Source: domain.ONCOKB, Code: domain.CodeOncoKBLevel1, RawScore: 10, PathwayWeight: 1, AdjustedScore: 10, Status: domain.EVIDENCE_MALFORMED},
			{Source: domain.CLINVAR, Code: domain.AbsentCode(domain.CLINVAR), Status: domain.EVIDENCE_ABSENT},
		},
	}

	for name, evidence := range evidenceSets {
		for _, fw := range domain.AllFrameworks() {
			t.Run(name+"/"+string(fw), func(t *testing.T) {
				desc, err := engine.Describe(fw)
				require.NoError(t, err)

				// Act
				result, err := engine.Evaluate(kras, evidence, fw)

				// Assert
				require.NoError(t, err)
				assert.Empty(t, result.RulesInvoked)
				assert.Empty(t, result.RuleEvidence)
				assert.Equal(t, desc.Unclassified, result.TierAssigned)
				assert.Equal(t, 0.0, result.ConfidenceScore)
				assert.False(t, result.Classified())
			})
		}
	}
}

func TestEngine_Evaluate_Idempotent(t *testing.T) {
	engine := newTestEngine(t)
	evidence := []domain.Evidence{
		found(domain.ONCOKB, domain.CodeOncoKBLevel3A, domain.MODERATE, 7, 1.0),
		found(domain.COSMIC_HOTSPOT, domain.CodeCOSMICHotspotHigh, domain.STRONG, 8, 0.8),
		found(domain.GNOMAD, domain.CodeGnomADAbsent, domain.MODERATE, 4, 0.7),
	}

	for _, fw := range domain.AllFrameworks() {
		first, err := engine.Evaluate(kras, evidence, fw)
		require.NoError(t, err)
		second, err := engine.Evaluate(kras, evidence, fw)
		require.NoError(t, err)

		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%s: repeated evaluation differs (-first +second):\n%s", fw, diff)
		}
	}
}

func TestEngine_TieBreak_HighestSeverityWins(t *testing.T) {
	engine := newTestEngine(t)
	evidence := []domain.Evidence{
		found(domain.FDA_APPROVED, domain.CodeFDASameTumor, domain.VERY_STRONG, 10, 1.0),
		found(domain.CIVIC, domain.CodeCIViCLevelB, domain.STRONG, 7, 0.9),
		found(domain.GNOMAD, domain.CodeGnomADCommon, domain.VERY_STRONG, 10, 0.2),
	}

	// Act
	result, err := engine.Evaluate(kras, evidence, domain.AMP_ACMG)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, TierIA, result.TierAssigned)
	assert.Equal(t, []string{"AMP_IA_FDA_SAME_TUMOR", "AMP_IIC_CLINICAL_EVIDENCE", "AMP_IV_POPULATION"}, result.RulesInvoked)
	assert.InDelta(t, 0.95, result.ConfidenceScore, 1e-9, "confidence is the max delta, not a sum")

	population := result.RuleEvidence["AMP_IV_POPULATION"]
	assert.Equal(t, TierIV, population.Candidate)
	assert.InDelta(t, 0.18, population.ConfidenceDelta, 1e-9)
	require.Len(t, population.Evidence, 1)
	assert.Equal(t, domain.GNOMAD, population.Evidence[0].Source)
	assert.Contains(t, population.Justification, "GNOMAD_COMMON from GNOMAD")
}

func TestEngine_PathwayWeightScalesConfidence(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name     string
		weight   float64
		expected float64
	}{
		{"tumor-normal gnomAD weight", 0.2, 0.18},
		{"tumor-only gnomAD weight", 0.7, 0.63},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evidence := []domain.Evidence{found(domain.GNOMAD, domain.CodeGnomADCommon, domain.VERY_STRONG, 10, tt.weight)}

			// Act
			result, err := engine.Evaluate(kras, evidence, domain.AMP_ACMG)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, TierIV, result.TierAssigned)
			assert.InDelta(t, tt.expected, result.ConfidenceScore, 1e-9)
		})
	}
}

func TestEngine_ConfidenceClipped(t *testing.T) {
	logger, _ := test.NewNullLogger()
	fw := Framework{
		ID:               "TEST",
		Severity:         []domain.Tier{"HIGH", "LOW"},
		Unclassified:     "NONE",
		MinAdjustedScore: 0,
		Rules: []Rule{
			{ID: "OVERCONFIDENT", Tier: "HIGH", Evaluate: func(in RuleInput) (RuleOutcome, bool) {
				return RuleOutcome{Candidate: "HIGH", Base: 1.7, Evidence: in.Evidence}, true
			}},
			{ID: "NEGATIVE", Tier: "LOW", Evaluate: func(RuleInput) (RuleOutcome, bool) {
				return RuleOutcome{Base: -0.5}, true
			}},
		},
	}
	engine, err := NewEngineWithFrameworks(logger, fw)
	require.NoError(t, err)

	// Act
	result, err := engine.Evaluate(kras, []domain.Evidence{found(domain.ONCOKB, "X", domain.STRONG, 1, 1)}, "TEST")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.Tier("HIGH"), result.TierAssigned)
	assert.Equal(t, 1.0, result.ConfidenceScore)
	assert.Equal(t, 0.0, result.RuleEvidence["NEGATIVE"].ConfidenceDelta)
	assert.Equal(t, domain.Tier("LOW"), result.RuleEvidence["NEGATIVE"].Candidate, "empty candidate defaults to the rule tier")
}

func TestEngine_UnknownFramework(t *testing.T) {
	engine := newTestEngine(t)

	// Act
	_, err := engine.Evaluate(kras, nil, "ESCAT")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "ESCAT", cfgErr.Name)
	assert.Contains(t, err.Error(), kras.VariantID)
	assert.NotContains(t, err.Error(), "(analysis", "no analysis type was given")

	_, err = engine.EvaluateRun(kras, nil, []domain.GuidelineFramework{"ESCAT"}, RunMetadata{AnalysisType: domain.TUMOR_NORMAL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(analysis TUMOR_NORMAL)")

	_, err = engine.EvaluateAll(kras, nil, []domain.GuidelineFramework{domain.AMP_ACMG, "ESCAT"})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestEngine_TierOutsideSeverity_IsInvariantViolation(t *testing.T) {
	logger, hook := test.NewNullLogger()
	fw := Framework{
		ID:           "BROKEN",
		Severity:     []domain.Tier{"A", "B"},
		Unclassified: "U",
		Rules: []Rule{
			{ID: "ROGUE", Tier: "A", Evaluate: func(RuleInput) (RuleOutcome, bool) {
				return RuleOutcome{Candidate: "Z", Base: 1}, true
			}},
		},
	}
	engine, err := NewEngineWithFrameworks(logger, fw)
	require.NoError(t, err)

	// Act
	_, err = engine.EvaluateRun(kras, nil, []domain.GuidelineFramework{"BROKEN"}, RunMetadata{AnalysisType: domain.TUMOR_ONLY})

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRuleInvariant))
	var violation *domain.RuleEvaluationInvariantViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, domain.GuidelineFramework("BROKEN"), violation.Framework)
	assert.Equal(t, kras.VariantID, violation.VariantID)
	assert.Equal(t, domain.Tier("Z"), violation.Tier)
	assert.Contains(t, err.Error(), "TUMOR_ONLY")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Framework evaluation aborted", hook.LastEntry().Message)
}

func TestEvaluation_TierWithoutRules_IsInvariantViolation(t *testing.T) {
	fw := ampFramework()
	ev := newEvaluation(&fw, kras)
	require.NoError(t, ev.bind(nil))
	require.NoError(t, ev.evaluateRules())
	ev.tier = TierIA

	// Act
	_, err := ev.finalize(RunMetadata{}, fixedNow)

	// Assert
	var violation *domain.RuleEvaluationInvariantViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, TierIA, violation.Tier)
}

func TestEvaluation_StatesAdvanceInOrder(t *testing.T) {
	fw := ampFramework()
	ev := newEvaluation(&fw, kras)

	_, err := ev.finalize(RunMetadata{}, fixedNow)
	assert.Error(t, err)
	assert.Error(t, ev.evaluateRules())

	require.NoError(t, ev.bind(nil))
	assert.Error(t, ev.bind(nil))
	require.NoError(t, ev.evaluateRules())
	_, err = ev.finalize(RunMetadata{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, stateTierFinalized, ev.state)
}

func TestEngine_EvaluateRun_StampsMetadata(t *testing.T) {
	engine := newTestEngine(t)
	evidence := []domain.Evidence{
		found(domain.ONCOKB, domain.CodeOncoKBLevel1, domain.VERY_STRONG, 10, 1.0),
		found(domain.ONCOKB, domain.CodeOncoKBOncogenic, domain.STRONG, 6, 1.0),
	}
	meta := RunMetadata{AnalysisType: domain.TUMOR_NORMAL, Clonality: domain.CLONAL, KBVersionSnapshot: "kb-2025-01"}

	// Act
	results, err := engine.EvaluateRun(kras, evidence, domain.AllFrameworks(), meta)

	// Assert
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, fw := range domain.AllFrameworks() {
		assert.Equal(t, fw, results[i].Framework)
		assert.Equal(t, kras.VariantID, results[i].VariantID)
		assert.Equal(t, domain.TUMOR_NORMAL, results[i].AnalysisType)
		assert.Equal(t, domain.CLONAL, results[i].Clonality)
		assert.Equal(t, "kb-2025-01", results[i].KBVersionSnapshot)
		assert.Equal(t, fixedNow, results[i].EvaluatedAt)
	}
	assert.Equal(t, TierIA, results[0].TierAssigned)
	assert.Equal(t, OncoKBLevel1, results[2].TierAssigned)
	assert.Equal(t, []string{"OKB_LEVEL_1", "OKB_ONCOGENIC"}, results[2].RulesInvoked)
}

func TestEngine_EvaluateAll_FrameworksIndependent(t *testing.T) {
	engine := newTestEngine(t)
	evidence := []domain.Evidence{found(domain.CIVIC, domain.CodeCIViCLevelA, domain.VERY_STRONG, 9, 0.9)}

	// Act
	together, err := engine.EvaluateAll(kras, evidence, []domain.GuidelineFramework{domain.ONCOKB_STYLE, domain.AMP_ACMG})
	require.NoError(t, err)
	alone, err := engine.Evaluate(kras, evidence, domain.AMP_ACMG)
	require.NoError(t, err)

	// Assert
	require.Len(t, together, 2)
	assert.Equal(t, OncoKBLevel3A, together[0].TierAssigned)
	if diff := cmp.Diff(alone, together[1]); diff != "" {
		t.Errorf("framework result depends on evaluation order (-alone +together):\n%s", diff)
	}
}

func TestEngine_TracesHoldPrivateCopies(t *testing.T) {
	engine := newTestEngine(t)
	item := found(domain.CANCER_GENE_CENSUS, domain.CodeCGCTier1, domain.MODERATE, 5, 0.7)
	item.Detail = map[string]string{"roles": "TSG"}
	evidence := []domain.Evidence{
		item,
		found(domain.ONCOKB, domain.CodeOncoKBOncogenic, domain.STRONG, 6, 1.0),
	}
	variant := kras
	variant.Consequence = "stop_gained"

	result, err := engine.Evaluate(variant, evidence, domain.CGC_VICC)
	require.NoError(t, err)

	// Act
	evidence[0].Detail["roles"] = "oncogene"

	// Assert
	assert.Equal(t, VICCOncogenic, result.TierAssigned)
	trace := result.RuleEvidence["VICC_ONCOGENIC"]
	require.NotEmpty(t, trace.Evidence)
	for _, e := range trace.Evidence {
		if e.Source == domain.CANCER_GENE_CENSUS {
			assert.Equal(t, "TSG", e.Detail["roles"])
		}
	}
}

func TestEngine_VICCPointClasses(t *testing.T) {
	engine := newTestEngine(t)

	oncogenic := found(domain.ONCOKB, domain.CodeOncoKBOncogenic, domain.STRONG, 6, 1.0)
	hotspot := found(domain.COSMIC_HOTSPOT, domain.CodeCOSMICHotspotHigh, domain.STRONG, 8, 0.8)
	absent := found(domain.GNOMAD, domain.CodeGnomADAbsent, domain.MODERATE, 4, 0.7)
	insilico := found(domain.DBNSFP, domain.CodeDbNSFPDeleterious, domain.SUPPORTING, 3, 0.5)
	common := found(domain.GNOMAD, domain.CodeGnomADCommon, domain.VERY_STRONG, 10, 0.7)
	common.Direction = domain.SUPPORTS_BENIGN
	polymorphic := found(domain.GNOMAD, domain.CodeGnomADPolymorphic, domain.STRONG, 7, 0.7)
	polymorphic.Direction = domain.SUPPORTS_BENIGN

	tests := []struct {
		name        string
		consequence string
		evidence    []domain.Evidence
		tier        domain.Tier
		rule        string
		confidence  float64
		points      string
	}{
		{
			name:       "ten points is oncogenic",
			evidence:   []domain.Evidence{oncogenic, hotspot, absent, insilico},
			tier:       VICCOncogenic,
			rule:       "VICC_ONCOGENIC",
			confidence: 0.9,
			points:     "10 points",
		},
		{
			name:       "nine points is likely oncogenic",
			evidence:   []domain.Evidence{oncogenic, hotspot, absent},
			tier:       VICCLikelyOncogenic,
			rule:       "VICC_LIKELY_ONCOGENIC",
			confidence: 0.7,
			points:     "9 points",
		},
		{
			name:     "five points stays uncertain",
			evidence: []domain.Evidence{oncogenic, absent},
			tier:     VICCUncertain,
		},
		{
			name:       "common population variant is benign",
			evidence:   []domain.Evidence{common},
			tier:       VICCBenign,
			rule:       "VICC_BENIGN",
			confidence: 0.63,
			points:     "-8 points",
		},
		{
			name:       "polymorphic variant is likely benign",
			evidence:   []domain.Evidence{polymorphic},
			tier:       VICCLikelyBenign,
			rule:       "VICC_LIKELY_BENIGN",
			confidence: 0.49,
			points:     "-4 points",
		},
		{
			name:        "synonymous with no evidence is likely benign at base confidence",
			consequence: "synonymous_variant",
			tier:        VICCLikelyBenign,
			rule:        "VICC_LIKELY_BENIGN",
			confidence:  0.7,
			points:      "SBP2(-1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			variant := kras
			if tt.consequence != "" {
				variant.Consequence = tt.consequence
			}

			// Act
			result, err := engine.Evaluate(variant, tt.evidence, domain.CGC_VICC)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.tier, result.TierAssigned)
			if tt.rule == "" {
				assert.Empty(t, result.RulesInvoked)
				return
			}
			assert.Equal(t, []string{tt.rule}, result.RulesInvoked)
			assert.InDelta(t, tt.confidence, result.ConfidenceScore, 1e-9)
			assert.Contains(t, result.RuleEvidence[tt.rule].Justification, tt.points)
		})
	}
}

func TestVICCTally_LikelyOncogenicExcludedByOncogenic(t *testing.T) {
	in := RuleInput{
		Variant: kras,
		Evidence: []domain.Evidence{
			found(domain.ONCOKB, domain.CodeOncoKBOncogenic, domain.STRONG, 6, 1.0),
			found(domain.CLINVAR, domain.CodeClinVarLikelyPathogenic, domain.MODERATE, 6, 0.8),
		},
	}

	// Act
	total, hits := viccTally(in)

	// Assert
	assert.Equal(t, 4, total)
	require.Len(t, hits, 1)
	assert.Equal(t, "OS2", hits[0].id)
}

func TestVICCTally_NullVariantInTumorSuppressor(t *testing.T) {
	tsg := found(domain.CANCER_GENE_CENSUS, domain.CodeCGCTier1, domain.MODERATE, 5, 0.7)
	tsg.Detail = map[string]string{"roles": "oncogene, TSG"}
	variant := kras
	variant.Consequence = "frameshift_variant"

	total, hits := viccTally(RuleInput{Variant: variant, Evidence: []domain.Evidence{tsg}})
	assert.Equal(t, 8, total)
	require.Len(t, hits, 1)
	assert.Equal(t, "OVS1", hits[0].id)

	variant.Consequence = "missense_variant"
	total, _ = viccTally(RuleInput{Variant: variant, Evidence: []domain.Evidence{tsg}})
	assert.Equal(t, 0, total)
}

func TestEngine_Describe(t *testing.T) {
	engine := newTestEngine(t)

	desc, err := engine.Describe(domain.AMP_ACMG)
	require.NoError(t, err)
	assert.Equal(t, TierIII, desc.Unclassified)
	assert.Equal(t, []domain.Tier{TierIA, TierIB, TierIIC, TierIID, TierIV}, desc.Severity)
	assert.Len(t, desc.Rules, 10)
	assert.Equal(t, "AMP_IA_FDA_SAME_TUMOR", desc.Rules[0].ID)

	desc.Severity[0] = "MUTATED"
	again, err := engine.Describe(domain.AMP_ACMG)
	require.NoError(t, err)
	assert.Equal(t, TierIA, again.Severity[0])

	_, err = engine.Describe("ESCAT")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	assert.Equal(t, domain.AllFrameworks(), engine.Frameworks())
}

func TestNewEngineWithFrameworks_RejectsBadDefinitions(t *testing.T) {
	logger, _ := test.NewNullLogger()
	fire := func(RuleInput) (RuleOutcome, bool) { return RuleOutcome{}, false }

	tests := []struct {
		name       string
		frameworks []Framework
	}{
		{"missing id", []Framework{{Severity: []domain.Tier{"A"}, Unclassified: "U"}}},
		{"no severity", []Framework{{ID: "F", Unclassified: "U"}}},
		{"duplicate tier", []Framework{{ID: "F", Severity: []domain.Tier{"A", "A"}, Unclassified: "U"}}},
		{"unclassified in severity", []Framework{{ID: "F", Severity: []domain.Tier{"A", "U"}, Unclassified: "U"}}},
		{"missing unclassified", []Framework{{ID: "F", Severity: []domain.Tier{"A"}}}},
		{"rule without predicate", []Framework{{ID: "F", Severity: []domain.Tier{"A"}, Unclassified: "U",
			Rules: []Rule{{ID: "R", Tier: "A"}}}}},
		{"duplicate rule", []Framework{{ID: "F", Severity: []domain.Tier{"A"}, Unclassified: "U",
			Rules: []Rule{{ID: "R", Tier: "A", Evaluate: fire}, {ID: "R", Tier: "A", Evaluate: fire}}}}},
		{"rule tier outside severity", []Framework{{ID: "F", Severity: []domain.Tier{"A"}, Unclassified: "U",
			Rules: []Rule{{ID: "R", Tier: "B", Evaluate: fire}}}}},
		{"framework registered twice", []Framework{
			{ID: "F", Severity: []domain.Tier{"A"}, Unclassified: "U"},
			{ID: "F", Severity: []domain.Tier{"A"}, Unclassified: "U"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngineWithFrameworks(logger, tt.frameworks...)
			assert.Error(t, err)
		})
	}
}

func TestEngine_AMP_CIViCLevelsThroughAggregation(t *testing.T) {
	logger, _ := test.NewNullLogger()
	router := workflow.NewRouter(logger)
	agg := evidence.NewAggregator(router, logger)
	engine := newTestEngine(t)

	tests := []struct {
		level    string
		code     string
		expected domain.Tier
		rules    []string
	}{
		{"C", domain.CodeCIViCLevelC, TierIID, []string{"AMP_IID_PRECLINICAL"}},
		{"D", domain.CodeCIViCLevelD, TierIID, []string{"AMP_IID_PRECLINICAL"}},
		{"E", domain.CodeCIViCLevelE, TierIII, nil},
	}

	for _, a := range []domain.AnalysisType{domain.TUMOR_NORMAL, domain.TUMOR_ONLY} {
		cfg, err := router.Configure(a, "")
		require.NoError(t, err)

		for _, tt := range tests {
			t.Run(string(a)+"/"+tt.level, func(t *testing.T) {
				lookups := []domain.RawLookup{
					{Source: domain.CIVIC, Status: domain.LOOKUP_FOUND, Payload: domain.CIViCData{EvidenceLevel: tt.level}},
				}

				// Act
				items := agg.Aggregate(kras, lookups, cfg)
				result, err := engine.Evaluate(kras, items, domain.AMP_ACMG)

				// Assert
				require.NoError(t, err)
				require.Len(t, items, 1)
				assert.Equal(t, tt.code, items[0].Code)
				assert.Equal(t, tt.expected, result.TierAssigned)
				assert.ElementsMatch(t, tt.rules, result.RulesInvoked)
			})
		}
	}
}
