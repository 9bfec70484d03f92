// Package workflow builds pathway configurations for paired tumor-normal and
// tumor-only analyses and applies the pathway's variant pre-filter and weights.
package workflow

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/somatic-tier-classifier/internal/domain"
)

// Clonality breakpoints on tumor VAF.
const (
	clonalVAF    = 0.4
	subclonalVAF = 0.2
)

// Router produces immutable PathwayConfig values and answers filter and weighting
// questions against them. It holds no per-call state.
type Router struct {
	logger *logrus.Logger
}

// NewRouter creates a new workflow router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{logger: logger}
}

// Configure returns the built-in pathway for analysisType. tumorType is carried for
// tumor-type-specific evidence matching and may be empty.
func (r *Router) Configure(analysisType domain.AnalysisType, tumorType string) (domain.PathwayConfig, error) {
	var spec domain.PathwaySpec
	switch analysisType {
	case domain.TUMOR_NORMAL:
		spec = tumorNormalProfile()
	case domain.TUMOR_ONLY:
		spec = tumorOnlyProfile()
	default:
		return domain.PathwayConfig{}, domain.NewConfigurationError(analysisType, "", "unknown analysis type")
	}
	spec.TumorType = tumorType

	r.logger.WithFields(logrus.Fields{
		"analysis_type": analysisType,
		"tumor_type":    tumorType,
	}).Debug("Configured analysis pathway")

	return domain.NewPathwayConfig(spec), nil
}

func clinicalWeights() map[domain.EvidenceSource]float64 {
	return map[domain.EvidenceSource]float64{
		domain.ONCOKB:             1.0,
		domain.FDA_APPROVED:       1.0,
		domain.CIVIC:              0.9,
		domain.CLINVAR:            0.8,
		domain.COSMIC_HOTSPOT:     0.8,
		domain.CANCER_GENE_CENSUS: 0.7,
		domain.DBNSFP:             0.5,
	}
}

// tumorNormalProfile weights population databases low: the matched normal already
// controls for germline variants.
func tumorNormalProfile() domain.PathwaySpec {
	weights := clinicalWeights()
	weights[domain.GNOMAD] = 0.2
	return domain.PathwaySpec{
		AnalysisType: domain.TUMOR_NORMAL,
		Priority: []domain.EvidenceSource{
			domain.ONCOKB,
			domain.FDA_APPROVED,
			domain.CIVIC,
			domain.CLINVAR,
			domain.COSMIC_HOTSPOT,
			domain.CANCER_GENE_CENSUS,
			domain.DBNSFP,
			domain.GNOMAD,
		},
		Weights: weights,
		VAFThresholds: map[string]float64{
			domain.ThresholdMinTumorVAF:  0.05,
			domain.ThresholdMaxNormalVAF: 0.02,
		},
		RequireNormalComparison: true,
	}
}

// tumorOnlyProfile makes gnomAD the primary germline filter. Clinical sources still
// rank first.
func tumorOnlyProfile() domain.PathwaySpec {
	weights := clinicalWeights()
	weights[domain.GNOMAD] = 0.7
	return domain.PathwaySpec{
		AnalysisType: domain.TUMOR_ONLY,
		Priority: []domain.EvidenceSource{
			domain.ONCOKB,
			domain.FDA_APPROVED,
			domain.GNOMAD,
			domain.CIVIC,
			domain.CLINVAR,
			domain.COSMIC_HOTSPOT,
			domain.CANCER_GENE_CENSUS,
			domain.DBNSFP,
		},
		Weights: weights,
		VAFThresholds: map[string]float64{
			domain.ThresholdMinTumorVAF:     0.10,
			domain.ThresholdMaxPopulationAF: 0.001,
		},
		UsePopulationFiltering: true,
	}
}

// PriorityOrder returns the pathway's evidence sources, highest priority first.
func (r *Router) PriorityOrder(cfg domain.PathwayConfig) []domain.EvidenceSource {
	return cfg.Priority()
}

// Weight returns the pathway weight for source, or 0.0 for a source the pathway
// does not know.
func (r *Router) Weight(cfg domain.PathwayConfig, source domain.EvidenceSource) float64 {
	return cfg.Weight(source)
}

// VAFThreshold returns a named threshold. Unknown names are never defaulted.
func (r *Router) VAFThreshold(cfg domain.PathwayConfig, name string) (float64, error) {
	v, ok := cfg.Threshold(name)
	if !ok {
		return 0, domain.NewConfigurationError(cfg.AnalysisType(), name, "unknown VAF threshold")
	}
	return v, nil
}

// ShouldFilter reports whether the variant should be dropped before evaluation.
func (r *Router) ShouldFilter(cfg domain.PathwayConfig, tumorVAF float64, normalVAF, populationAF *float64, isHotspot bool) bool {
	return r.Decide(cfg, tumorVAF, normalVAF, populationAF, isHotspot).Filtered
}

// Decide applies the pathway's pre-filter and explains the outcome. Required-field
// checks come first and are not overridden by hotspot status; magnitude checks are
// skipped for hotspots. A missing population AF means the variant is absent from
// the population databases and never filters.
func (r *Router) Decide(cfg domain.PathwayConfig, tumorVAF float64, normalVAF, populationAF *float64, isHotspot bool) domain.FilterDecision {
	if math.IsNaN(tumorVAF) || tumorVAF < 0 {
		return filtered("tumor VAF missing or invalid")
	}
	if cfg.RequireNormalComparison() && (normalVAF == nil || math.IsNaN(*normalVAF)) {
		return filtered("normal VAF required for paired analysis")
	}
	if isHotspot {
		return domain.FilterDecision{Reason: "hotspot overrides frequency filtering"}
	}

	if minTumor, ok := cfg.Threshold(domain.ThresholdMinTumorVAF); ok && tumorVAF < minTumor {
		return filtered(fmt.Sprintf("tumor VAF %.4g below min_tumor_vaf %.4g", tumorVAF, minTumor))
	}

	switch cfg.AnalysisType() {
	case domain.TUMOR_NORMAL:
		if maxNormal, ok := cfg.Threshold(domain.ThresholdMaxNormalVAF); ok && normalVAF != nil && *normalVAF > maxNormal {
			return filtered(fmt.Sprintf("normal VAF %.4g exceeds max_normal_vaf %.4g", *normalVAF, maxNormal))
		}
	case domain.TUMOR_ONLY:
		if maxPop, ok := cfg.Threshold(domain.ThresholdMaxPopulationAF); ok && populationAF != nil && *populationAF > maxPop {
			return filtered(fmt.Sprintf("population AF %.4g exceeds max_population_af %.4g", *populationAF, maxPop))
		}
	}

	return domain.FilterDecision{}
}

// DecideVariant is Decide over a VariantContext.
func (r *Router) DecideVariant(cfg domain.PathwayConfig, variant domain.VariantContext) domain.FilterDecision {
	decision := r.Decide(cfg, variant.TumorVAF, variant.NormalVAF, variant.PopulationAF, variant.IsHotspot)
	if decision.Filtered {
		r.logger.WithFields(logrus.Fields{
			"variant_id":    variant.VariantID,
			"analysis_type": cfg.AnalysisType(),
			"reason":        decision.Reason,
		}).Debug("Variant filtered by pathway")
	}
	return decision
}

func filtered(reason string) domain.FilterDecision {
	return domain.FilterDecision{Filtered: true, Reason: reason}
}

// ClassifyClonality maps tumor VAF onto clonality. It is metadata, not a filter.
func ClassifyClonality(vaf float64) domain.Clonality {
	switch {
	case vaf >= clonalVAF:
		return domain.CLONAL
	case vaf < subclonalVAF:
		return domain.SUBCLONAL
	default:
		return domain.INDETERMINATE
	}
}

// ClassifyClonality is exposed on the router for callers holding one.
func (r *Router) ClassifyClonality(vaf float64) domain.Clonality {
	return ClassifyClonality(vaf)
}

// AdjustScores returns a new slice where each item's AdjustedScore is RawScore times
// the pathway weight for its source. Absent and malformed items carry zero weight.
// The input is never mutated.
func (r *Router) AdjustScores(cfg domain.PathwayConfig, evidence []domain.Evidence) []domain.Evidence {
	adjusted := make([]domain.Evidence, len(evidence))
	for i, e := range evidence {
		item := e.Clone()
		switch item.Status {
		case domain.EVIDENCE_ABSENT, domain.EVIDENCE_MALFORMED:
			item.PathwayWeight = 0
		default:
			item.PathwayWeight = cfg.Weight(item.Source)
		}
		item.AdjustedScore = item.RawScore * item.PathwayWeight
		adjusted[i] = item
	}
	return adjusted
}
