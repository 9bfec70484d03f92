package domain

import (
	"math"
	"strings"
)

// VariantContext carries the per-variant observations the router and the tiering
// frameworks need. VAFs are fractions in [0,1]. A nil NormalVAF means no matched
// normal was sequenced; a nil PopulationAF means the variant is absent from the
// population databases.
type VariantContext struct {
	VariantID    string   `json:"variant_id" yaml:"variant_id"`
	GeneSymbol   string   `json:"gene_symbol" yaml:"gene_symbol"`
	HGVS         string   `json:"hgvs,omitempty" yaml:"hgvs,omitempty"`
	Consequence  string   `json:"consequence,omitempty" yaml:"consequence,omitempty"`
	IsHotspot    bool     `json:"is_hotspot" yaml:"is_hotspot"`
	TumorVAF     float64  `json:"tumor_vaf" yaml:"tumor_vaf"`
	NormalVAF    *float64 `json:"normal_vaf,omitempty" yaml:"normal_vaf,omitempty"`
	PopulationAF *float64 `json:"population_af,omitempty" yaml:"population_af,omitempty"`
	TumorDepth   int      `json:"tumor_depth,omitempty" yaml:"tumor_depth,omitempty"`
}

// Validate checks the fields every pathway needs. Pathway-specific requirements
// (a normal VAF for paired analysis) are enforced by the router's filter.
func (v VariantContext) Validate() error {
	if strings.TrimSpace(v.VariantID) == "" {
		return NewValidationError("variant_id", "variant id is required", v.VariantID)
	}
	if math.IsNaN(v.TumorVAF) || v.TumorVAF < 0 || v.TumorVAF > 1 {
		return NewValidationError("tumor_vaf", "tumor VAF must be a fraction in [0,1]", v.TumorVAF)
	}
	if v.NormalVAF != nil && (math.IsNaN(*v.NormalVAF) || *v.NormalVAF < 0 || *v.NormalVAF > 1) {
		return NewValidationError("normal_vaf", "normal VAF must be a fraction in [0,1]", *v.NormalVAF)
	}
	if v.PopulationAF != nil && (math.IsNaN(*v.PopulationAF) || *v.PopulationAF < 0 || *v.PopulationAF > 1) {
		return NewValidationError("population_af", "population AF must be a fraction in [0,1]", *v.PopulationAF)
	}
	if v.TumorDepth < 0 {
		return NewValidationError("tumor_depth", "tumor depth cannot be negative", v.TumorDepth)
	}
	return nil
}

// Float64 returns a pointer to f, for filling optional VAF fields.
func Float64(f float64) *float64 {
	return &f
}
