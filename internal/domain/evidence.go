package domain

import (
	"time"
)

// LookupStatus is the outcome of querying one knowledge base for one variant.
type LookupStatus string

const (
	LOOKUP_FOUND     LookupStatus = "FOUND"
	LOOKUP_NOT_FOUND LookupStatus = "NOT_FOUND"
	LOOKUP_ERROR     LookupStatus = "ERROR"
)

// RawLookup is one source's already-fetched payload. Payload is either the typed
// struct for the source (value or pointer), or raw JSON / a decoded JSON object that
// the aggregator decodes into a fresh typed copy.
type RawLookup struct {
	Source    EvidenceSource `json:"source" yaml:"source"`
	Status    LookupStatus   `json:"status" yaml:"status"`
	Payload   any            `json:"payload,omitempty" yaml:"payload,omitempty"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	KBVersion string         `json:"kb_version,omitempty" yaml:"kb_version,omitempty"`
}

// Evidence is one normalized, pathway-weighted observation from a knowledge base.
// AdjustedScore is always RawScore * PathwayWeight.
type Evidence struct {
	Source        EvidenceSource    `json:"source"`
	Code          string            `json:"code"`
	Direction     EvidenceDirection `json:"direction"`
	Strength      RuleStrength      `json:"strength,omitempty"`
	RawScore      float64           `json:"raw_score"`
	AdjustedScore float64           `json:"adjusted_score"`
	PathwayWeight float64           `json:"pathway_weight"`
	Status        EvidenceStatus    `json:"status"`
	Diagnostic    string            `json:"diagnostic,omitempty"`
	Detail        map[string]string `json:"detail,omitempty"`
	KBVersion     string            `json:"kb_version,omitempty"`
}

// Usable reports whether the item carries a normalized payload.
func (e Evidence) Usable() bool {
	return e.Status == EVIDENCE_FOUND
}

// Clone returns a deep copy so callers never share Detail maps.
func (e Evidence) Clone() Evidence {
	if e.Detail != nil {
		detail := make(map[string]string, len(e.Detail))
		for k, v := range e.Detail {
			detail[k] = v
		}
		e.Detail = detail
	}
	return e
}

// Evidence codes emitted by the normalizers and matched by the tiering frameworks.
const (
	CodeOncoKBLevel1          = "ONCOKB_LEVEL_1"
	CodeOncoKBLevel2          = "ONCOKB_LEVEL_2"
	CodeOncoKBLevelR1         = "ONCOKB_LEVEL_R1"
	CodeOncoKBLevel3A         = "ONCOKB_LEVEL_3A"
	CodeOncoKBLevel3B         = "ONCOKB_LEVEL_3B"
	CodeOncoKBLevel4          = "ONCOKB_LEVEL_4"
	CodeOncoKBOncogenic       = "ONCOKB_ONCOGENIC"
	CodeOncoKBLikelyOncogenic = "ONCOKB_LIKELY_ONCOGENIC"
	CodeOncoKBNeutral         = "ONCOKB_NEUTRAL"
	CodeOncoKBLikelyNeutral   = "ONCOKB_LIKELY_NEUTRAL"
	CodeOncoKBUnknown         = "ONCOKB_UNKNOWN"

	CodeFDASameTumor   = "FDA_SAME_TUMOR"
	CodeFDAOtherTumor  = "FDA_OTHER_TUMOR"
	CodeFDANotApproved = "FDA_NOT_APPROVED"

	CodeCIViCLevelA      = "CIVIC_LEVEL_A"
	CodeCIViCLevelB      = "CIVIC_LEVEL_B"
	CodeCIViCLevelC      = "CIVIC_LEVEL_C"
	CodeCIViCLevelD      = "CIVIC_LEVEL_D"
	CodeCIViCLevelE      = "CIVIC_LEVEL_E"
	CodeCIViCNotSupports = "CIVIC_DOES_NOT_SUPPORT"

	CodeClinVarPathogenic       = "CLINVAR_PATHOGENIC"
	CodeClinVarLikelyPathogenic = "CLINVAR_LIKELY_PATHOGENIC"
	CodeClinVarBenign           = "CLINVAR_BENIGN"
	CodeClinVarLikelyBenign     = "CLINVAR_LIKELY_BENIGN"
	CodeClinVarUncertain        = "CLINVAR_UNCERTAIN"

	CodeGnomADCommon       = "GNOMAD_COMMON"
	CodeGnomADPolymorphic  = "GNOMAD_POLYMORPHIC"
	CodeGnomADLowFrequency = "GNOMAD_LOW_FREQUENCY"
	CodeGnomADRare         = "GNOMAD_RARE"
	CodeGnomADAbsent       = "GNOMAD_ABSENT"

	CodeCOSMICHotspotHigh     = "COSMIC_HOTSPOT_HIGH"
	CodeCOSMICHotspotModerate = "COSMIC_HOTSPOT_MODERATE"
	CodeCOSMICHotspotLow      = "COSMIC_HOTSPOT_LOW"
	CodeCOSMICNotObserved     = "COSMIC_NOT_OBSERVED"

	CodeCGCTier1     = "CGC_TIER_1"
	CodeCGCTier2     = "CGC_TIER_2"
	CodeCGCNotListed = "CGC_NOT_LISTED"

	CodeDbNSFPDeleterious = "DBNSFP_DELETERIOUS"
	CodeDbNSFPBenign      = "DBNSFP_BENIGN"
	CodeDbNSFPMixed       = "DBNSFP_MIXED"
)

// AbsentCode and MalformedCode name the placeholder items for a source.
func AbsentCode(source EvidenceSource) string    { return string(source) + "_NOT_FOUND" }
func MalformedCode(source EvidenceSource) string { return string(source) + "_MALFORMED" }

// OncoKBData is an OncoKB annotation for one variant.
type OncoKBData struct {
	GeneSymbol     string   `json:"gene_symbol"`
	Alteration     string   `json:"alteration"`
	Oncogenicity   string   `json:"oncogenicity"`
	MutationEffect string   `json:"mutation_effect,omitempty"`
	HighestLevel   string   `json:"highest_level,omitempty"` // LEVEL_1 .. LEVEL_4, LEVEL_R1
	TumorType      string   `json:"tumor_type,omitempty"`
	Drugs          []string `json:"drugs,omitempty"`
}

// FDAApprovalData represents an FDA drug label or companion diagnostic lookup
type FDAApprovalData struct {
	Approved    bool   `json:"approved"`
	Drug        string `json:"drug"`
	TumorType   string `json:"tumor_type"`
	Indication  string `json:"indication,omitempty"`
	ApprovalRef string `json:"approval_ref,omitempty"`
}

// CIViCData is the strongest CIViC evidence item for the variant.
type CIViCData struct {
	EvidenceID        string   `json:"evidence_id,omitempty"`
	EvidenceLevel     string   `json:"evidence_level"`     // A, B, C, D, E
	EvidenceType      string   `json:"evidence_type"`      // Predictive, Diagnostic, Prognostic, Oncogenic
	EvidenceDirection string   `json:"evidence_direction"` // Supports, Does Not Support
	Significance      string   `json:"significance,omitempty"`
	TumorType         string   `json:"tumor_type,omitempty"`
	Therapies         []string `json:"therapies,omitempty"`
}

// ClinVarData represents data from ClinVar database
type ClinVarData struct {
	VariationID          string              `json:"variation_id"`
	ClinicalSignificance string              `json:"clinical_significance"`
	ReviewStatus         string              `json:"review_status"`
	Submissions          []ClinVarSubmission `json:"submissions,omitempty"`
	LastEvaluated        time.Time           `json:"last_evaluated,omitempty"`
	Conditions           []string            `json:"conditions,omitempty"`
}

// ClinVarSubmission represents a single ClinVar submission
type ClinVarSubmission struct {
	Submitter            string    `json:"submitter"`
	ClinicalSignificance string    `json:"clinical_significance"`
	ReviewStatus         string    `json:"review_status"`
	SubmissionDate       time.Time `json:"submission_date"`
	Condition            string    `json:"condition"`
}

// PopulationData represents population frequency data from gnomAD
type PopulationData struct {
	AlleleFrequency       float64            `json:"allele_frequency"`
	AlleleCount           int                `json:"allele_count"`
	AlleleNumber          int                `json:"allele_number"`
	PopulationFrequencies map[string]float64 `json:"population_frequencies,omitempty"`
	HomozygoteCount       int                `json:"homozygote_count"`
}

// SomaticData represents somatic variant data from the COSMIC hotspot tables
type SomaticData struct {
	CosmicID      string   `json:"cosmic_id"`
	TumorTypes    []string `json:"tumor_types,omitempty"`
	SampleCount   int      `json:"sample_count"`
	MutationCount int      `json:"mutation_count"`
	Pathogenicity string   `json:"pathogenicity,omitempty"`
}

// CancerGeneCensusData is the Cancer Gene Census entry for the variant's gene.
// Tier 0 means the gene is not listed.
type CancerGeneCensusData struct {
	GeneSymbol string   `json:"gene_symbol"`
	Tier       int      `json:"tier"`
	Roles      []string `json:"roles,omitempty"` // oncogene, TSG, fusion
	Hallmark   bool     `json:"hallmark,omitempty"`
}

// ComputationalData represents dbNSFP in-silico predictor scores. A nil score was
// not reported by dbNSFP.
type ComputationalData struct {
	SIFTScore     *float64 `json:"sift_score,omitempty"`
	PolyPhenScore *float64 `json:"polyphen_score,omitempty"`
	CADDScore     *float64 `json:"cadd_score,omitempty"`
	REVELScore    *float64 `json:"revel_score,omitempty"`
	GERPScore     *float64 `json:"gerp_score,omitempty"`
}
