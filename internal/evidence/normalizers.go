package evidence

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/somatic-tier-classifier/internal/domain"
)

// normalized is the (code, strength, direction, raw score) a source payload maps to.
type normalized struct {
	code      string
	direction domain.EvidenceDirection
	strength  domain.RuleStrength
	raw       float64
	detail    map[string]string
}

type normalizerFunc func(variant domain.VariantContext, cfg domain.PathwayConfig, payload any) (normalized, error)

// typed adapts a normalizer over a concrete payload type.
func typed[T any](fn func(domain.VariantContext, domain.PathwayConfig, T) (normalized, error)) normalizerFunc {
	return func(variant domain.VariantContext, cfg domain.PathwayConfig, payload any) (normalized, error) {
		data, err := decodePayload[T](payload)
		if err != nil {
			return normalized{}, err
		}
		return fn(variant, cfg, data)
	}
}

var normalizers = map[domain.EvidenceSource]normalizerFunc{
	domain.ONCOKB:             typed(normalizeOncoKB),
	domain.FDA_APPROVED:       typed(normalizeFDA),
	domain.CIVIC:              typed(normalizeCIViC),
	domain.CLINVAR:            typed(normalizeClinVar),
	domain.GNOMAD:             typed(normalizeGnomAD),
	domain.COSMIC_HOTSPOT:     typed(normalizeCOSMIC),
	domain.CANCER_GENE_CENSUS: typed(normalizeCGC),
	domain.DBNSFP:             typed(normalizeDbNSFP),
}

func pathogenic(code string, strength domain.RuleStrength, raw float64) normalized {
	return normalized{code: code, direction: domain.SUPPORTS_PATHOGENIC, strength: strength, raw: raw}
}

func benign(code string, strength domain.RuleStrength, raw float64) normalized {
	return normalized{code: code, direction: domain.SUPPORTS_BENIGN, strength: strength, raw: raw}
}

func neutral(code string) normalized {
	return normalized{code: code, direction: domain.NEUTRAL}
}

func (n normalized) with(key, value string) normalized {
	if value == "" {
		return n
	}
	if n.detail == nil {
		n.detail = make(map[string]string)
	}
	n.detail[key] = value
	return n
}

// tumorTypeMatches treats an unconfigured tumor type, an unreported one, and the
// pan-cancer labels as matching anything.
func tumorTypeMatches(configured, reported string) bool {
	configured = strings.TrimSpace(configured)
	reported = strings.TrimSpace(reported)
	if configured == "" || reported == "" {
		return true
	}
	switch strings.ToLower(reported) {
	case "all tumors", "all solid tumors", "pan-cancer", "pan cancer":
		return true
	}
	return strings.EqualFold(configured, reported)
}

type levelEntry struct {
	code     string
	strength domain.RuleStrength
	raw      float64
}

var oncokbLevels = map[string]levelEntry{
	"1":  {domain.CodeOncoKBLevel1, domain.VERY_STRONG, 10},
	"2":  {domain.CodeOncoKBLevel2, domain.STRONG, 9},
	"R1": {domain.CodeOncoKBLevelR1, domain.STRONG, 8},
	"3A": {domain.CodeOncoKBLevel3A, domain.MODERATE, 7},
	"3B": {domain.CodeOncoKBLevel3B, domain.MODERATE, 6},
	"4":  {domain.CodeOncoKBLevel4, domain.SUPPORTING, 4},
}

// normalizeOncoKB prefers the therapeutic level over the oncogenicity call.
// Level 1 and 2 calls made for another tumor type are demoted to 3B.
func normalizeOncoKB(_ domain.VariantContext, cfg domain.PathwayConfig, d domain.OncoKBData) (normalized, error) {
	level := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(d.HighestLevel)), "LEVEL_")
	if level != "" {
		entry, ok := oncokbLevels[level]
		if !ok {
			return normalized{}, fmt.Errorf("unknown OncoKB level %q", d.HighestLevel)
		}
		n := pathogenic(entry.code, entry.strength, entry.raw)
		if (level == "1" || level == "2") && !tumorTypeMatches(cfg.TumorType(), d.TumorType) {
			demoted := oncokbLevels["3B"]
			n = pathogenic(demoted.code, demoted.strength, demoted.raw).with("demoted_from", entry.code)
		}
		return n.with("tumor_type", d.TumorType).
			with("oncogenicity", d.Oncogenicity).
			with("drugs", strings.Join(d.Drugs, ",")), nil
	}

	var n normalized
	switch strings.ToLower(strings.TrimSpace(d.Oncogenicity)) {
	case "oncogenic":
		n = pathogenic(domain.CodeOncoKBOncogenic, domain.STRONG, 6)
	case "likely oncogenic":
		n = pathogenic(domain.CodeOncoKBLikelyOncogenic, domain.MODERATE, 4)
	case "neutral":
		n = benign(domain.CodeOncoKBNeutral, domain.STRONG, 5)
	case "likely neutral":
		n = benign(domain.CodeOncoKBLikelyNeutral, domain.MODERATE, 3)
	case "", "unknown", "inconclusive":
		n = neutral(domain.CodeOncoKBUnknown)
	default:
		return normalized{}, fmt.Errorf("unrecognized OncoKB oncogenicity %q", d.Oncogenicity)
	}
	return n.with("mutation_effect", d.MutationEffect), nil
}

func normalizeFDA(_ domain.VariantContext, cfg domain.PathwayConfig, d domain.FDAApprovalData) (normalized, error) {
	if !d.Approved {
		return neutral(domain.CodeFDANotApproved).with("drug", d.Drug), nil
	}
	if strings.TrimSpace(d.Drug) == "" {
		return normalized{}, errors.New("FDA approval without a drug name")
	}

	var n normalized
	if tumorTypeMatches(cfg.TumorType(), d.TumorType) {
		n = pathogenic(domain.CodeFDASameTumor, domain.VERY_STRONG, 10)
	} else {
		n = pathogenic(domain.CodeFDAOtherTumor, domain.STRONG, 7)
	}
	return n.with("drug", d.Drug).with("tumor_type", d.TumorType).with("approval_ref", d.ApprovalRef), nil
}

var civicLevels = map[string]levelEntry{
	"A": {domain.CodeCIViCLevelA, domain.VERY_STRONG, 9},
	"B": {domain.CodeCIViCLevelB, domain.STRONG, 7},
	"C": {domain.CodeCIViCLevelC, domain.MODERATE, 5},
	"D": {domain.CodeCIViCLevelD, domain.SUPPORTING, 3},
	"E": {domain.CodeCIViCLevelE, domain.SUPPORTING, 1},
}

func normalizeCIViC(_ domain.VariantContext, _ domain.PathwayConfig, d domain.CIViCData) (normalized, error) {
	entry, ok := civicLevels[strings.ToUpper(strings.TrimSpace(d.EvidenceLevel))]
	if !ok {
		return normalized{}, fmt.Errorf("unknown CIViC evidence level %q", d.EvidenceLevel)
	}

	n := pathogenic(entry.code, entry.strength, entry.raw)
	if strings.EqualFold(strings.TrimSpace(d.EvidenceDirection), "Does Not Support") {
		n = neutral(domain.CodeCIViCNotSupports).with("level", entry.code)
	}
	return n.with("evidence_type", d.EvidenceType).
		with("significance", d.Significance).
		with("tumor_type", d.TumorType).
		with("evidence_id", d.EvidenceID), nil
}

// clinvarStars maps a ClinVar review status onto its gold-star rating.
func clinvarStars(reviewStatus string) int {
	switch strings.ToLower(strings.TrimSpace(reviewStatus)) {
	case "practice guideline":
		return 4
	case "reviewed by expert panel":
		return 3
	case "criteria provided, multiple submitters, no conflicts":
		return 2
	case "criteria provided, single submitter",
		"criteria provided, conflicting classifications",
		"criteria provided, conflicting interpretations":
		return 1
	default:
		return 0
	}
}

func normalizeClinVar(_ domain.VariantContext, _ domain.PathwayConfig, d domain.ClinVarData) (normalized, error) {
	stars := clinvarStars(d.ReviewStatus)
	reviewed := stars >= 2

	var n normalized
	switch strings.ToLower(strings.TrimSpace(d.ClinicalSignificance)) {
	case "pathogenic", "pathogenic/likely pathogenic":
		if reviewed {
			n = pathogenic(domain.CodeClinVarPathogenic, domain.STRONG, 8)
		} else {
			n = pathogenic(domain.CodeClinVarPathogenic, domain.SUPPORTING, 3)
		}
	case "likely pathogenic":
		if reviewed {
			n = pathogenic(domain.CodeClinVarLikelyPathogenic, domain.MODERATE, 6)
		} else {
			n = pathogenic(domain.CodeClinVarLikelyPathogenic, domain.SUPPORTING, 3)
		}
	case "benign", "benign/likely benign":
		if reviewed {
			n = benign(domain.CodeClinVarBenign, domain.STRONG, 8)
		} else {
			n = benign(domain.CodeClinVarBenign, domain.SUPPORTING, 3)
		}
	case "likely benign":
		if reviewed {
			n = benign(domain.CodeClinVarLikelyBenign, domain.MODERATE, 6)
		} else {
			n = benign(domain.CodeClinVarLikelyBenign, domain.SUPPORTING, 3)
		}
	case "uncertain significance",
		"conflicting classifications of pathogenicity",
		"conflicting interpretations of pathogenicity":
		n = neutral(domain.CodeClinVarUncertain)
	default:
		return normalized{}, fmt.Errorf("unrecognized ClinVar significance %q", d.ClinicalSignificance)
	}
	return n.with("stars", strconv.Itoa(stars)).
		with("review_status", d.ReviewStatus).
		with("variation_id", d.VariationID), nil
}

// gnomAD allele-frequency ceilings.
const (
	gnomadCommonAF      = 0.05
	gnomadPolymorphicAF = 0.01
	gnomadRareAF        = 0.001
)

func normalizeGnomAD(_ domain.VariantContext, _ domain.PathwayConfig, d domain.PopulationData) (normalized, error) {
	af := d.AlleleFrequency
	if math.IsNaN(af) || af < 0 || af > 1 {
		return normalized{}, fmt.Errorf("allele frequency %v outside [0,1]", af)
	}
	if d.AlleleCount < 0 || d.AlleleNumber < 0 || d.HomozygoteCount < 0 {
		return normalized{}, errors.New("negative allele counts")
	}

	var n normalized
	switch {
	case af > gnomadCommonAF:
		n = benign(domain.CodeGnomADCommon, domain.VERY_STRONG, 10)
	case af > gnomadPolymorphicAF:
		n = benign(domain.CodeGnomADPolymorphic, domain.STRONG, 7)
	case af > gnomadRareAF:
		n = benign(domain.CodeGnomADLowFrequency, domain.SUPPORTING, 3)
	case af > 0 && (d.AlleleCount > 0 || d.AlleleNumber == 0):
		// Frequency-only payloads carry no counts; AC 0 over a called AN is absence.
		n = pathogenic(domain.CodeGnomADRare, domain.SUPPORTING, 2)
	default:
		n = pathogenic(domain.CodeGnomADAbsent, domain.MODERATE, 4)
	}
	return n.with("allele_frequency", strconv.FormatFloat(af, 'g', -1, 64)), nil
}

func normalizeCOSMIC(_ domain.VariantContext, _ domain.PathwayConfig, d domain.SomaticData) (normalized, error) {
	if d.SampleCount < 0 {
		return normalized{}, fmt.Errorf("negative COSMIC sample count %d", d.SampleCount)
	}

	var n normalized
	switch {
	case d.SampleCount >= 50:
		n = pathogenic(domain.CodeCOSMICHotspotHigh, domain.STRONG, 8)
	case d.SampleCount >= 10:
		n = pathogenic(domain.CodeCOSMICHotspotModerate, domain.MODERATE, 6)
	case d.SampleCount >= 1:
		n = pathogenic(domain.CodeCOSMICHotspotLow, domain.SUPPORTING, 2)
	default:
		n = neutral(domain.CodeCOSMICNotObserved)
	}
	return n.with("sample_count", strconv.Itoa(d.SampleCount)).with("cosmic_id", d.CosmicID), nil
}

func normalizeCGC(variant domain.VariantContext, _ domain.PathwayConfig, d domain.CancerGeneCensusData) (normalized, error) {
	if d.GeneSymbol != "" && variant.GeneSymbol != "" && !strings.EqualFold(d.GeneSymbol, variant.GeneSymbol) {
		return normalized{}, fmt.Errorf("census entry for %s does not match variant gene %s", d.GeneSymbol, variant.GeneSymbol)
	}

	var n normalized
	switch d.Tier {
	case 1:
		n = pathogenic(domain.CodeCGCTier1, domain.MODERATE, 5)
	case 2:
		n = pathogenic(domain.CodeCGCTier2, domain.SUPPORTING, 3)
	case 0:
		n = neutral(domain.CodeCGCNotListed)
	default:
		return normalized{}, fmt.Errorf("unknown Cancer Gene Census tier %d", d.Tier)
	}
	return n.with("roles", strings.Join(d.Roles, ",")), nil
}

// predictor is one dbNSFP in-silico score with its valid range and call thresholds.
type predictor struct {
	name             string
	score            *float64
	min, max         float64
	deleterious      func(float64) bool
	benignPrediction func(float64) bool
}

func dbnsfpPredictors(d domain.ComputationalData) []predictor {
	return []predictor{
		{"sift", d.SIFTScore, 0, 1, func(s float64) bool { return s < 0.05 }, func(s float64) bool { return s >= 0.05 }},
		{"polyphen", d.PolyPhenScore, 0, 1, func(s float64) bool { return s >= 0.909 }, func(s float64) bool { return s < 0.447 }},
		{"cadd", d.CADDScore, 0, 99, func(s float64) bool { return s >= 20 }, func(s float64) bool { return s < 10 }},
		{"revel", d.REVELScore, 0, 1, func(s float64) bool { return s >= 0.644 }, func(s float64) bool { return s <= 0.290 }},
		{"gerp", d.GERPScore, -12.3, 6.17, func(s float64) bool { return s >= 2 }, func(s float64) bool { return s < 0 }},
	}
}

func normalizeDbNSFP(_ domain.VariantContext, _ domain.PathwayConfig, d domain.ComputationalData) (normalized, error) {
	var deleterious, tolerated int
	for _, p := range dbnsfpPredictors(d) {
		if p.score == nil {
			continue
		}
		s := *p.score
		if math.IsNaN(s) || s < p.min || s > p.max {
			return normalized{}, fmt.Errorf("%s score %v outside [%v,%v]", p.name, s, p.min, p.max)
		}
		switch {
		case p.deleterious(s):
			deleterious++
		case p.benignPrediction(s):
			tolerated++
		}
	}

	var n normalized
	switch {
	case deleterious >= 3:
		n = pathogenic(domain.CodeDbNSFPDeleterious, domain.SUPPORTING, 3)
	case tolerated >= 3:
		n = benign(domain.CodeDbNSFPBenign, domain.SUPPORTING, 3)
	default:
		n = neutral(domain.CodeDbNSFPMixed)
	}
	return n.with("deleterious_votes", strconv.Itoa(deleterious)).
		with("benign_votes", strconv.Itoa(tolerated)), nil
}
