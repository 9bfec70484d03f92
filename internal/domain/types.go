// Package domain contains core business entities and types for somatic variant tiering
// following AMP/ASCO/CAP, CGC/VICC and OncoKB-style clinical frameworks.
//
// References:
//   - Li et al. (2017) Standards and Guidelines for the Interpretation and Reporting of
//     Sequence Variants in Cancer. J Mol Diagn. 19(1):4-23. doi: 10.1016/j.jmoldx.2016.10.002
//   - Horak et al. (2022) Standards for the classification of pathogenicity of somatic
//     variants in cancer (oncogenicity). Genet Med. 24(5):986-998.
package domain

import (
	"errors"
)

// AnalysisType is the sequencing design of a case. It is selected once per case and
// never changes for the lifetime of an analysis run.
type AnalysisType string

const (
	TUMOR_NORMAL AnalysisType = "TUMOR_NORMAL"
	TUMOR_ONLY   AnalysisType = "TUMOR_ONLY"
)

// EvidenceSource identifies a knowledge base. It is used as a map key everywhere.
type EvidenceSource string

const (
	ONCOKB             EvidenceSource = "ONCOKB"
	FDA_APPROVED       EvidenceSource = "FDA_APPROVED"
	CIVIC              EvidenceSource = "CIVIC"
	CLINVAR            EvidenceSource = "CLINVAR"
	COSMIC_HOTSPOT     EvidenceSource = "COSMIC_HOTSPOT"
	CANCER_GENE_CENSUS EvidenceSource = "CANCER_GENE_CENSUS"
	DBNSFP             EvidenceSource = "DBNSFP"
	GNOMAD             EvidenceSource = "GNOMAD"
)

// AllEvidenceSources lists every known source in declaration order.
func AllEvidenceSources() []EvidenceSource {
	return []EvidenceSource{
		ONCOKB, FDA_APPROVED, CIVIC, CLINVAR, COSMIC_HOTSPOT, CANCER_GENE_CENSUS, DBNSFP, GNOMAD,
	}
}

// RuleStrength represents the strength of a single piece of evidence
type RuleStrength string

const (
	VERY_STRONG RuleStrength = "VERY_STRONG"
	STRONG      RuleStrength = "STRONG"
	MODERATE    RuleStrength = "MODERATE"
	SUPPORTING  RuleStrength = "SUPPORTING"
)

// EvidenceDirection says which way a piece of evidence points.
type EvidenceDirection string

const (
	SUPPORTS_PATHOGENIC EvidenceDirection = "SUPPORTS_PATHOGENIC"
	SUPPORTS_BENIGN     EvidenceDirection = "SUPPORTS_BENIGN"
	NEUTRAL             EvidenceDirection = "NEUTRAL"
)

// EvidenceStatus distinguishes a normalized payload from a source that was queried
// and returned nothing, and from a payload that could not be normalized.
// A source that was never queried has no Evidence item at all.
type EvidenceStatus string

const (
	EVIDENCE_FOUND     EvidenceStatus = "FOUND"
	EVIDENCE_ABSENT    EvidenceStatus = "ABSENT"
	EVIDENCE_MALFORMED EvidenceStatus = "MALFORMED"
)

// GuidelineFramework names a published rule set mapping evidence to tiers.
type GuidelineFramework string

const (
	AMP_ACMG     GuidelineFramework = "AMP_ACMG"
	CGC_VICC     GuidelineFramework = "CGC_VICC"
	ONCOKB_STYLE GuidelineFramework = "ONCOKB_STYLE"
)

// AllFrameworks lists the built-in frameworks in their canonical order.
func AllFrameworks() []GuidelineFramework {
	return []GuidelineFramework{AMP_ACMG, CGC_VICC, ONCOKB_STYLE}
}

// Tier is a guideline-specific clinical significance category.
type Tier string

// Clonality is contextual metadata derived from tumor VAF.
type Clonality string

const (
	CLONAL        Clonality = "clonal"
	SUBCLONAL     Clonality = "subclonal"
	INDETERMINATE Clonality = "indeterminate"
)

// Validation errors for clinical data integrity
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidAnalysisType   = errors.New("invalid analysis type")
	ErrInvalidSource         = errors.New("invalid evidence source")
	ErrInvalidFramework      = errors.New("invalid guideline framework")
	ErrInvalidRuleStrength   = errors.New("invalid rule strength")
	ErrInvalidVariantContext = errors.New("invalid variant context")
)

// IsValid reports whether the analysis type is one of the supported designs.
func (a AnalysisType) IsValid() bool {
	switch a {
	case TUMOR_NORMAL, TUMOR_ONLY:
		return true
	default:
		return false
	}
}

func (a AnalysisType) String() string {
	return string(a)
}

// IsValid validates the evidence source identifier.
func (s EvidenceSource) IsValid() bool {
	switch s {
	case ONCOKB, FDA_APPROVED, CIVIC, CLINVAR, COSMIC_HOTSPOT, CANCER_GENE_CENSUS, DBNSFP, GNOMAD:
		return true
	default:
		return false
	}
}

func (s EvidenceSource) String() string {
	return string(s)
}

// IsValid validates the rule strength.
func (rs RuleStrength) IsValid() bool {
	switch rs {
	case VERY_STRONG, STRONG, MODERATE, SUPPORTING:
		return true
	default:
		return false
	}
}

func (rs RuleStrength) String() string {
	return string(rs)
}

// Rank orders strengths so that VERY_STRONG > STRONG > MODERATE > SUPPORTING.
// Unknown or empty strengths rank lowest.
func (rs RuleStrength) Rank() int {
	switch rs {
	case VERY_STRONG:
		return 4
	case STRONG:
		return 3
	case MODERATE:
		return 2
	case SUPPORTING:
		return 1
	default:
		return 0
	}
}

// IsValid validates the framework identifier.
func (f GuidelineFramework) IsValid() bool {
	switch f {
	case AMP_ACMG, CGC_VICC, ONCOKB_STYLE:
		return true
	default:
		return false
	}
}

func (f GuidelineFramework) String() string {
	return string(f)
}

func (t Tier) String() string {
	return string(t)
}

// ParseAnalysisType converts user input into an AnalysisType.
func ParseAnalysisType(s string) (AnalysisType, error) {
	a := AnalysisType(s)
	if !a.IsValid() {
		return "", NewConfigurationError(a, "", "unknown analysis type")
	}
	return a, nil
}

// ParseFrameworks converts framework names, failing on the first unknown one.
func ParseFrameworks(names []string) ([]GuidelineFramework, error) {
	frameworks := make([]GuidelineFramework, 0, len(names))
	for _, name := range names {
		f := GuidelineFramework(name)
		if !f.IsValid() {
			return nil, &ConfigurationError{Name: name, Reason: "unknown guideline framework"}
		}
		frameworks = append(frameworks, f)
	}
	return frameworks, nil
}
