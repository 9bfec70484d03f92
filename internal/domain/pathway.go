package domain

import (
	"encoding/json"
	"sort"
)

// VAF threshold names used by the built-in pathways.
const (
	ThresholdMinTumorVAF     = "min_tumor_vaf"
	ThresholdMaxNormalVAF    = "max_normal_vaf"
	ThresholdMaxPopulationAF = "max_population_af"
)

// PathwayConfig is the immutable per-analysis-type configuration. All accessors
// return copies, so a config can be shared across goroutines.
type PathwayConfig struct {
	analysisType            AnalysisType
	tumorType               string
	priority                []EvidenceSource
	weights                 map[EvidenceSource]float64
	vafThresholds           map[string]float64
	requireNormalComparison bool
	usePopulationFiltering  bool
}

// PathwaySpec holds the fields for NewPathwayConfig.
type PathwaySpec struct {
	AnalysisType            AnalysisType
	TumorType               string
	Priority                []EvidenceSource
	Weights                 map[EvidenceSource]float64
	VAFThresholds           map[string]float64
	RequireNormalComparison bool
	UsePopulationFiltering  bool
}

// NewPathwayConfig copies spec into a read-only PathwayConfig.
func NewPathwayConfig(spec PathwaySpec) PathwayConfig {
	cfg := PathwayConfig{
		analysisType:            spec.AnalysisType,
		tumorType:               spec.TumorType,
		priority:                append([]EvidenceSource(nil), spec.Priority...),
		weights:                 make(map[EvidenceSource]float64, len(spec.Weights)),
		vafThresholds:           make(map[string]float64, len(spec.VAFThresholds)),
		requireNormalComparison: spec.RequireNormalComparison,
		usePopulationFiltering:  spec.UsePopulationFiltering,
	}
	for k, v := range spec.Weights {
		cfg.weights[k] = v
	}
	for k, v := range spec.VAFThresholds {
		cfg.vafThresholds[k] = v
	}
	return cfg
}

func (c PathwayConfig) AnalysisType() AnalysisType { return c.analysisType }
func (c PathwayConfig) TumorType() string          { return c.tumorType }

func (c PathwayConfig) RequireNormalComparison() bool { return c.requireNormalComparison }
func (c PathwayConfig) UsePopulationFiltering() bool  { return c.usePopulationFiltering }

// Priority returns the evidence sources, highest priority first.
func (c PathwayConfig) Priority() []EvidenceSource {
	return append([]EvidenceSource(nil), c.priority...)
}

// Weights returns a copy of the per-source weights.
func (c PathwayConfig) Weights() map[EvidenceSource]float64 {
	out := make(map[EvidenceSource]float64, len(c.weights))
	for k, v := range c.weights {
		out[k] = v
	}
	return out
}

// VAFThresholds returns a copy of the named thresholds.
func (c PathwayConfig) VAFThresholds() map[string]float64 {
	out := make(map[string]float64, len(c.vafThresholds))
	for k, v := range c.vafThresholds {
		out[k] = v
	}
	return out
}

// Weight returns the weight for source; unknown sources weigh 0.
func (c PathwayConfig) Weight(source EvidenceSource) float64 {
	return c.weights[source]
}

// Threshold looks up a named VAF threshold.
func (c PathwayConfig) Threshold(name string) (float64, bool) {
	v, ok := c.vafThresholds[name]
	return v, ok
}

// PriorityIndex returns the position of source in the priority list, or -1.
func (c PathwayConfig) PriorityIndex(source EvidenceSource) int {
	for i, s := range c.priority {
		if s == source {
			return i
		}
	}
	return -1
}

// IsZero reports whether the config was never built.
func (c PathwayConfig) IsZero() bool {
	return c.analysisType == ""
}

type pathwayJSON struct {
	AnalysisType            AnalysisType               `json:"analysis_type"`
	TumorType               string                     `json:"tumor_type,omitempty"`
	Priority                []EvidenceSource           `json:"priority"`
	Weights                 map[EvidenceSource]float64 `json:"weights"`
	VAFThresholds           map[string]float64         `json:"vaf_thresholds"`
	ThresholdNames          []string                   `json:"threshold_names"`
	RequireNormalComparison bool                       `json:"require_normal_comparison"`
	UsePopulationFiltering  bool                       `json:"use_population_filtering"`
}

// MarshalJSON renders the config for API and tool responses.
func (c PathwayConfig) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(c.vafThresholds))
	for name := range c.vafThresholds {
		names = append(names, name)
	}
	sort.Strings(names)
	return json.Marshal(pathwayJSON{
		AnalysisType:            c.analysisType,
		TumorType:               c.tumorType,
		Priority:                c.Priority(),
		Weights:                 c.Weights(),
		VAFThresholds:           c.VAFThresholds(),
		ThresholdNames:          names,
		RequireNormalComparison: c.requireNormalComparison,
		UsePopulationFiltering:  c.usePopulationFiltering,
	})
}
