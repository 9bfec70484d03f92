// Package evidence normalizes per-source knowledge-base payloads into the ordered,
// pathway-weighted evidence set for one variant.
package evidence

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/somatic-tier-classifier/internal/domain"
	"github.com/somatic-tier-classifier/internal/workflow"
)

// Aggregator turns raw lookups into Evidence. One bad source never aborts the
// aggregation: it becomes a MALFORMED item with a diagnostic and a logged warning.
type Aggregator struct {
	router *workflow.Router
	logger *logrus.Logger
}

// NewAggregator creates a new evidence aggregator. Weighting is delegated to router.
func NewAggregator(router *workflow.Router, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		router: router,
		logger: logger,
	}
}

// Aggregate normalizes lookups, orders them by the pathway priority (ties keep the
// supplied order, unknown sources go last) and applies the pathway weights.
// Neither lookups nor their payloads are mutated.
func (a *Aggregator) Aggregate(variant domain.VariantContext, lookups []domain.RawLookup, cfg domain.PathwayConfig) []domain.Evidence {
	items := make([]domain.Evidence, 0, len(lookups))
	for _, lookup := range lookups {
		items = append(items, a.normalize(variant, lookup, cfg))
	}

	rank := func(source domain.EvidenceSource) int {
		if idx := cfg.PriorityIndex(source); idx >= 0 {
			return idx
		}
		return len(cfg.Priority())
	}
	sort.SliceStable(items, func(i, j int) bool {
		return rank(items[i].Source) < rank(items[j].Source)
	})

	weighted := a.router.AdjustScores(cfg, items)

	a.logger.WithFields(logrus.Fields{
		"variant_id":    variant.VariantID,
		"analysis_type": cfg.AnalysisType(),
		"lookups":       len(lookups),
		"usable":        countUsable(weighted),
	}).Debug("Aggregated evidence")

	return weighted
}

func (a *Aggregator) normalize(variant domain.VariantContext, lookup domain.RawLookup, cfg domain.PathwayConfig) domain.Evidence {
	base := domain.Evidence{
		Source:    lookup.Source,
		KBVersion: lookup.KBVersion,
	}

	status := lookup.Status
	if status == "" {
		status = domain.LOOKUP_FOUND
		if lookup.Payload == nil {
			status = domain.LOOKUP_NOT_FOUND
		}
	}

	switch status {
	case domain.LOOKUP_NOT_FOUND:
		base.Code = domain.AbsentCode(lookup.Source)
		base.Direction = domain.NEUTRAL
		base.Status = domain.EVIDENCE_ABSENT
		return base
	case domain.LOOKUP_ERROR:
		reason := lookup.Error
		if reason == "" {
			reason = "lookup failed"
		}
		return a.malformed(variant, base, reason)
	case domain.LOOKUP_FOUND:
	default:
		return a.malformed(variant, base, fmt.Sprintf("unknown lookup status %q", lookup.Status))
	}

	normalizer, ok := normalizers[lookup.Source]
	if !ok {
		return a.malformed(variant, base, "unknown evidence source")
	}

	n, err := normalizer(variant, cfg, lookup.Payload)
	if err != nil {
		return a.malformed(variant, base, err.Error())
	}

	base.Code = n.code
	base.Direction = n.direction
	base.Strength = n.strength
	base.RawScore = n.raw
	base.Detail = n.detail
	base.Status = domain.EVIDENCE_FOUND
	return base
}

// malformed records an EvidenceNormalizationWarning as a zero-score item.
func (a *Aggregator) malformed(variant domain.VariantContext, base domain.Evidence, diagnostic string) domain.Evidence {
	a.logger.WithFields(logrus.Fields{
		"variant_id": variant.VariantID,
		"source":     base.Source,
		"diagnostic": diagnostic,
	}).Warn("Evidence could not be normalized")

	base.Code = domain.MalformedCode(base.Source)
	base.Direction = domain.NEUTRAL
	base.Status = domain.EVIDENCE_MALFORMED
	base.Diagnostic = diagnostic
	return base
}

func countUsable(evidence []domain.Evidence) int {
	n := 0
	for _, e := range evidence {
		if e.Usable() {
			n++
		}
	}
	return n
}
