package tiering

import (
	"github.com/somatic-tier-classifier/internal/domain"
)

// AMP/ASCO/CAP somatic tiers (Li et al. 2017). Tier III, unknown clinical
// significance, is the unclassified value.
const (
	TierIA  domain.Tier = "TIER_IA"
	TierIB  domain.Tier = "TIER_IB"
	TierIIC domain.Tier = "TIER_IIC"
	TierIID domain.Tier = "TIER_IID"
	TierIII domain.Tier = "TIER_III"
	TierIV  domain.Tier = "TIER_IV"
)

func ampFramework() Framework {
	return Framework{
		ID:               domain.AMP_ACMG,
		Name:             "AMP/ASCO/CAP somatic variant tiers",
		Severity:         []domain.Tier{TierIA, TierIB, TierIIC, TierIID, TierIV},
		Unclassified:     TierIII,
		MinAdjustedScore: 1.0,
		Rules: []Rule{
			evidenceRule("AMP_IA_FDA_SAME_TUMOR", TierIA, 0.95,
				"FDA-approved therapy for this tumor type",
				codes(domain.CodeFDASameTumor)),
			evidenceRule("AMP_IA_ONCOKB_LEVEL_1", TierIA, 0.95,
				"OncoKB level 1 biomarker",
				codes(domain.CodeOncoKBLevel1)),
			evidenceRule("AMP_IA_GUIDELINE", TierIA, 0.9,
				"Standard-care biomarker in professional guidelines",
				codes(domain.CodeOncoKBLevel2)),
			evidenceRule("AMP_IA_RESISTANCE", TierIA, 0.85,
				"Standard-care biomarker of resistance",
				codes(domain.CodeOncoKBLevelR1)),
			evidenceRule("AMP_IB_WELL_POWERED", TierIB, 0.85,
				"Well-powered studies with expert consensus",
				codes(domain.CodeCIViCLevelA)),
			evidenceRule("AMP_IIC_OFF_LABEL", TierIIC, 0.75,
				"FDA-approved therapy in another tumor type or investigational therapy",
				codes(domain.CodeFDAOtherTumor, domain.CodeOncoKBLevel3A, domain.CodeOncoKBLevel3B)),
			evidenceRule("AMP_IIC_CLINICAL_EVIDENCE", TierIIC, 0.7,
				"Clinical evidence from multiple small studies",
				codes(domain.CodeCIViCLevelB)),
			// CIViC level E (inferential) scores below MinAdjustedScore and never reaches a rule.
			evidenceRule("AMP_IID_PRECLINICAL", TierIID, 0.6,
				"Preclinical trials or case reports without consensus",
				codes(domain.CodeOncoKBLevel4, domain.CodeCIViCLevelC, domain.CodeCIViCLevelD)),
			evidenceRule("AMP_IV_POPULATION", TierIV, 0.9,
				"Observed at significant allele frequency in the general population",
				codes(domain.CodeGnomADCommon, domain.CodeGnomADPolymorphic)),
			evidenceRule("AMP_IV_CURATED_BENIGN", TierIV, 0.8,
				"Curated as benign or neutral",
				codeAtLeast(domain.CodeClinVarBenign, domain.STRONG),
				codes(domain.CodeOncoKBNeutral)),
		},
	}
}
