package tiering

import (
	"fmt"
	"math"
	"strings"

	"github.com/somatic-tier-classifier/internal/domain"
)

// ClinGen/CGC/VICC oncogenicity classes (Horak et al. 2022).
const (
	VICCOncogenic       domain.Tier = "ONCOGENIC"
	VICCLikelyOncogenic domain.Tier = "LIKELY_ONCOGENIC"
	VICCUncertain       domain.Tier = "VUS"
	VICCLikelyBenign    domain.Tier = "LIKELY_BENIGN"
	VICCBenign          domain.Tier = "BENIGN"
)

// criterion is one SOP evidence code with its point value. A criterion listed in
// excludedBy does not count when that stronger criterion is met.
type criterion struct {
	id          string
	points      int
	description string
	excludedBy  string
	applies     func(in RuleInput) ([]domain.Evidence, bool)
}

var nullConsequences = map[string]bool{
	"stop_gained":             true,
	"frameshift_variant":      true,
	"splice_donor_variant":    true,
	"splice_acceptor_variant": true,
	"start_lost":              true,
}

func fromEvidence(m matcher) func(in RuleInput) ([]domain.Evidence, bool) {
	return func(in RuleInput) ([]domain.Evidence, bool) {
		matched := in.matching(m)
		return matched, len(matched) > 0
	}
}

func isTumorSuppressor(e domain.Evidence) bool {
	if e.Code != domain.CodeCGCTier1 && e.Code != domain.CodeCGCTier2 {
		return false
	}
	for _, role := range strings.Split(e.Detail["roles"], ",") {
		if strings.EqualFold(strings.TrimSpace(role), "TSG") {
			return true
		}
	}
	return false
}

var viccCriteria = []criterion{
	{
		id: "OVS1", points: 8,
		description: "null variant in a tumor suppressor gene",
		applies: func(in RuleInput) ([]domain.Evidence, bool) {
			if !nullConsequences[strings.ToLower(in.Variant.Consequence)] {
				return nil, false
			}
			matched := in.matching(isTumorSuppressor)
			return matched, len(matched) > 0
		},
	},
	{
		id: "OS2", points: 4,
		description: "well-established curated oncogenic effect",
		applies: fromEvidence(anyOf(
			codes(domain.CodeOncoKBOncogenic, domain.CodeOncoKBLevel1, domain.CodeOncoKBLevel2,
				domain.CodeOncoKBLevelR1, domain.CodeOncoKBLevel3A, domain.CodeOncoKBLevel3B, domain.CodeOncoKBLevel4),
			codeAtLeast(domain.CodeClinVarPathogenic, domain.STRONG),
		)),
	},
	{
		id: "OS2_M", points: 2, excludedBy: "OS2",
		description: "curated likely oncogenic effect",
		applies: fromEvidence(anyOf(
			codes(domain.CodeOncoKBLikelyOncogenic),
			codeAtLeast(domain.CodeClinVarLikelyPathogenic, domain.MODERATE),
		)),
	},
	{
		id: "OS3", points: 4,
		description: "hotspot with at least 50 somatic samples",
		applies:     fromEvidence(codes(domain.CodeCOSMICHotspotHigh)),
	},
	{
		id: "OM3", points: 2,
		description: "hotspot with 10 to 49 somatic samples",
		applies:     fromEvidence(codes(domain.CodeCOSMICHotspotModerate)),
	},
	{
		id: "OP3", points: 1,
		description: "observed in somatic hotspot tables",
		applies:     fromEvidence(codes(domain.CodeCOSMICHotspotLow)),
	},
	{
		id: "OP4", points: 1,
		description: "absent from population databases",
		applies:     fromEvidence(codes(domain.CodeGnomADAbsent)),
	},
	{
		id: "OP1", points: 1,
		description: "computational evidence supports a damaging effect",
		applies:     fromEvidence(codes(domain.CodeDbNSFPDeleterious)),
	},
	{
		id: "SBVS1", points: -8,
		description: "minor allele frequency above 5% in the population",
		applies:     fromEvidence(codes(domain.CodeGnomADCommon)),
	},
	{
		id: "SBS1", points: -4,
		description: "minor allele frequency above 1% in the population",
		applies:     fromEvidence(codes(domain.CodeGnomADPolymorphic)),
	},
	{
		id: "SBS2", points: -4,
		description: "well-established curated absence of oncogenic effect",
		applies: fromEvidence(anyOf(
			codes(domain.CodeOncoKBNeutral),
			codeAtLeast(domain.CodeClinVarBenign, domain.STRONG),
		)),
	},
	{
		id: "SBP1", points: -1,
		description: "computational evidence suggests no impact",
		applies:     fromEvidence(codes(domain.CodeDbNSFPBenign)),
	},
	{
		id: "SBP2", points: -1,
		description: "synonymous variant",
		applies: func(in RuleInput) ([]domain.Evidence, bool) {
			return nil, strings.EqualFold(in.Variant.Consequence, "synonymous_variant")
		},
	},
}

type criterionHit struct {
	id       string
	points   int
	evidence []domain.Evidence
}

// viccTally scores every criterion once, in SOP order.
func viccTally(in RuleInput) (int, []criterionHit) {
	met := make(map[string]bool, len(viccCriteria))
	var hits []criterionHit
	total := 0
	for _, c := range viccCriteria {
		if c.excludedBy != "" && met[c.excludedBy] {
			continue
		}
		evidence, ok := c.applies(in)
		if !ok {
			continue
		}
		met[c.id] = true
		total += c.points
		hits = append(hits, criterionHit{id: c.id, points: c.points, evidence: evidence})
	}
	return total, hits
}

// pointRule fires when the tally falls in [lo, hi]. Only criteria pointing the same
// way as the class contribute evidence to the trace.
func pointRule(id string, tier domain.Tier, base float64, lo, hi int, description string) Rule {
	return Rule{
		ID:          id,
		Tier:        tier,
		Description: description,
		Evaluate: func(in RuleInput) (RuleOutcome, bool) {
			total, hits := viccTally(in)
			if total < lo || total > hi {
				return RuleOutcome{}, false
			}

			oncogenic := lo > 0
			var evidence []domain.Evidence
			parts := make([]string, 0, len(hits))
			for _, h := range hits {
				parts = append(parts, fmt.Sprintf("%s(%+d)", h.id, h.points))
				if (h.points > 0) == oncogenic {
					evidence = append(evidence, h.evidence...)
				}
			}
			return RuleOutcome{
				Candidate:     tier,
				Base:          base,
				Justification: fmt.Sprintf("%s: %d points from %s", description, total, strings.Join(parts, ", ")),
				Evidence:      dedupeEvidence(evidence),
			}, true
		},
	}
}

// dedupeEvidence drops repeated items that satisfied more than one criterion.
func dedupeEvidence(evidence []domain.Evidence) []domain.Evidence {
	seen := make(map[string]bool, len(evidence))
	var out []domain.Evidence
	for _, e := range evidence {
		key := string(e.Source) + "|" + e.Code
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

func viccFramework() Framework {
	return Framework{
		ID:               domain.CGC_VICC,
		Name:             "ClinGen/CGC/VICC oncogenicity SOP",
		Severity:         []domain.Tier{VICCOncogenic, VICCLikelyOncogenic, VICCLikelyBenign, VICCBenign},
		Unclassified:     VICCUncertain,
		MinAdjustedScore: 0.5,
		Rules: []Rule{
			pointRule("VICC_ONCOGENIC", VICCOncogenic, 0.9, 10, math.MaxInt,
				"Oncogenic at 10 or more points"),
			pointRule("VICC_LIKELY_ONCOGENIC", VICCLikelyOncogenic, 0.7, 6, 9,
				"Likely oncogenic at 6 to 9 points"),
			pointRule("VICC_LIKELY_BENIGN", VICCLikelyBenign, 0.7, -6, -1,
				"Likely benign at -1 to -6 points"),
			pointRule("VICC_BENIGN", VICCBenign, 0.9, math.MinInt, -7,
				"Benign at -7 or fewer points"),
		},
	}
}
