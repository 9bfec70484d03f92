package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestAnalysisTypeConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    AnalysisType
		expected string
		valid    bool
	}{
		{"Tumor normal", TUMOR_NORMAL, "TUMOR_NORMAL", true},
		{"Tumor only", TUMOR_ONLY, "TUMOR_ONLY", true},
		{"Unknown", AnalysisType("GERMLINE"), "GERMLINE", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value.String() != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.value.String())
			}
			if tt.value.IsValid() != tt.valid {
				t.Errorf("Expected IsValid %v for %s", tt.valid, tt.value)
			}
		})
	}
}

func TestEvidenceSourceConstants(t *testing.T) {
	for _, source := range AllEvidenceSources() {
		if !source.IsValid() {
			t.Errorf("Expected %s to be valid", source)
		}
	}
	if len(AllEvidenceSources()) != 8 {
		t.Errorf("Expected 8 evidence sources, got %d", len(AllEvidenceSources()))
	}
	if EvidenceSource("PUBMED").IsValid() {
		t.Errorf("Expected PUBMED to be invalid")
	}
}

func TestRuleStrengthRank(t *testing.T) {
	tests := []struct {
		name     string
		value    RuleStrength
		expected int
	}{
		{"Very Strong", VERY_STRONG, 4},
		{"Strong", STRONG, 3},
		{"Moderate", MODERATE, 2},
		{"Supporting", SUPPORTING, 1},
		{"Empty", RuleStrength(""), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value.Rank() != tt.expected {
				t.Errorf("Expected rank %d, got %d", tt.expected, tt.value.Rank())
			}
		})
	}
}

func TestParseAnalysisType(t *testing.T) {
	a, err := ParseAnalysisType("TUMOR_ONLY")
	if err != nil || a != TUMOR_ONLY {
		t.Errorf("Expected TUMOR_ONLY, got %s (%v)", a, err)
	}

	_, err = ParseAnalysisType("tumor_only")
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestParseFrameworks(t *testing.T) {
	frameworks, err := ParseFrameworks([]string{"CGC_VICC", "AMP_ACMG"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(frameworks) != 2 || frameworks[0] != CGC_VICC || frameworks[1] != AMP_ACMG {
		t.Errorf("Expected [CGC_VICC AMP_ACMG], got %v", frameworks)
	}

	if _, err := ParseFrameworks([]string{"AMP_ACMG", "ESCAT"}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected configuration error for ESCAT, got %v", err)
	}
}

func TestVariantContextValidate(t *testing.T) {
	tests := []struct {
		name    string
		variant VariantContext
		field   string
	}{
		{"Valid", VariantContext{VariantID: "v1", TumorVAF: 0.3, NormalVAF: Float64(0)}, ""},
		{"Missing id", VariantContext{TumorVAF: 0.3}, "variant_id"},
		{"NaN tumor VAF", VariantContext{VariantID: "v1", TumorVAF: math.NaN()}, "tumor_vaf"},
		{"Tumor VAF above one", VariantContext{VariantID: "v1", TumorVAF: 1.2}, "tumor_vaf"},
		{"Negative normal VAF", VariantContext{VariantID: "v1", TumorVAF: 0.3, NormalVAF: Float64(-0.1)}, "normal_vaf"},
		{"Population AF above one", VariantContext{VariantID: "v1", TumorVAF: 0.3, PopulationAF: Float64(3)}, "population_af"},
		{"Negative depth", VariantContext{VariantID: "v1", TumorVAF: 0.3, TumorDepth: -5}, "tumor_depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.variant.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, validationErr.Field)
			}
		})
	}
}

func TestPathwayConfigIsReadOnly(t *testing.T) {
	weights := map[EvidenceSource]float64{ONCOKB: 1.0, GNOMAD: 0.2}
	priority := []EvidenceSource{ONCOKB, GNOMAD}
	cfg := NewPathwayConfig(PathwaySpec{
		AnalysisType:  TUMOR_NORMAL,
		Priority:      priority,
		Weights:       weights,
		VAFThresholds: map[string]float64{ThresholdMinTumorVAF: 0.05},
	})

	// Mutating the construction inputs must not leak into the config.
	weights[ONCOKB] = 0
	priority[0] = GNOMAD
	if cfg.Weight(ONCOKB) != 1.0 {
		t.Errorf("Expected ONCOKB weight 1.0, got %v", cfg.Weight(ONCOKB))
	}
	if cfg.Priority()[0] != ONCOKB {
		t.Errorf("Expected ONCOKB first, got %v", cfg.Priority())
	}

	// Mutating accessor results must not leak either.
	cfg.Weights()[GNOMAD] = 5
	cfg.Priority()[1] = CIVIC
	cfg.VAFThresholds()[ThresholdMinTumorVAF] = 0.9
	if cfg.Weight(GNOMAD) != 0.2 || cfg.PriorityIndex(GNOMAD) != 1 {
		t.Errorf("Accessor results must be copies")
	}
	if v, ok := cfg.Threshold(ThresholdMinTumorVAF); !ok || v != 0.05 {
		t.Errorf("Expected min_tumor_vaf 0.05, got %v", v)
	}
	if cfg.Weight(DBNSFP) != 0 {
		t.Errorf("Expected unknown source to weigh 0")
	}
}

func TestPathwayConfigMarshalJSON(t *testing.T) {
	cfg := NewPathwayConfig(PathwaySpec{
		AnalysisType:           TUMOR_ONLY,
		TumorType:              "Melanoma",
		Priority:               []EvidenceSource{ONCOKB},
		Weights:                map[EvidenceSource]float64{ONCOKB: 1.0},
		VAFThresholds:          map[string]float64{ThresholdMinTumorVAF: 0.1, ThresholdMaxPopulationAF: 0.001},
		UsePopulationFiltering: true,
	})

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if decoded["analysis_type"] != "TUMOR_ONLY" || decoded["tumor_type"] != "Melanoma" {
		t.Errorf("Unexpected JSON: %s", data)
	}
	names, _ := decoded["threshold_names"].([]interface{})
	if len(names) != 2 || names[0] != ThresholdMaxPopulationAF {
		t.Errorf("Expected sorted threshold names, got %v", names)
	}
}

func TestEvidenceClone(t *testing.T) {
	e := Evidence{Source: ONCOKB, Detail: map[string]string{"tumor_type": "Melanoma"}}
	c := e.Clone()
	c.Detail["tumor_type"] = "NSCLC"
	if e.Detail["tumor_type"] != "Melanoma" {
		t.Errorf("Clone must not share the detail map")
	}
}
