package tiering

import (
	"github.com/somatic-tier-classifier/internal/domain"
)

// OncoKB-style therapeutic levels followed by biological calls.
const (
	OncoKBLevel1        domain.Tier = "LEVEL_1"
	OncoKBLevelR1       domain.Tier = "LEVEL_R1"
	OncoKBLevel2        domain.Tier = "LEVEL_2"
	OncoKBLevel3A       domain.Tier = "LEVEL_3A"
	OncoKBLevel3B       domain.Tier = "LEVEL_3B"
	OncoKBLevel4        domain.Tier = "LEVEL_4"
	OncoKBOncogenic     domain.Tier = "ONCOGENIC"
	OncoKBLikelyNeutral domain.Tier = "LIKELY_NEUTRAL"
	OncoKBUnknown       domain.Tier = "UNKNOWN"
)

func oncokbFramework() Framework {
	return Framework{
		ID:   domain.ONCOKB_STYLE,
		Name: "OncoKB-style therapeutic levels",
		Severity: []domain.Tier{
			OncoKBLevel1, OncoKBLevelR1, OncoKBLevel2, OncoKBLevel3A,
			OncoKBLevel3B, OncoKBLevel4, OncoKBOncogenic, OncoKBLikelyNeutral,
		},
		Unclassified:     OncoKBUnknown,
		MinAdjustedScore: 1.0,
		Rules: []Rule{
			evidenceRule("OKB_LEVEL_1", OncoKBLevel1, 0.95,
				"FDA-recognized biomarker predictive of response in this indication",
				codes(domain.CodeFDASameTumor, domain.CodeOncoKBLevel1)),
			evidenceRule("OKB_LEVEL_R1", OncoKBLevelR1, 0.9,
				"Standard-care biomarker predictive of resistance",
				codes(domain.CodeOncoKBLevelR1)),
			evidenceRule("OKB_LEVEL_2", OncoKBLevel2, 0.9,
				"Standard-care biomarker recommended by professional guidelines",
				codes(domain.CodeOncoKBLevel2)),
			evidenceRule("OKB_LEVEL_3A", OncoKBLevel3A, 0.8,
				"Compelling clinical evidence supports the biomarker",
				codes(domain.CodeOncoKBLevel3A, domain.CodeCIViCLevelA, domain.CodeCIViCLevelB)),
			evidenceRule("OKB_LEVEL_3B", OncoKBLevel3B, 0.75,
				"Standard-care or investigational biomarker in another indication",
				codes(domain.CodeOncoKBLevel3B, domain.CodeFDAOtherTumor)),
			evidenceRule("OKB_LEVEL_4", OncoKBLevel4, 0.6,
				"Compelling biological evidence supports the biomarker",
				codes(domain.CodeOncoKBLevel4, domain.CodeCIViCLevelC, domain.CodeCIViCLevelD)),
			evidenceRule("OKB_ONCOGENIC", OncoKBOncogenic, 0.7,
				"Curated or recurrent oncogenic alteration",
				codes(domain.CodeOncoKBOncogenic, domain.CodeOncoKBLikelyOncogenic, domain.CodeCOSMICHotspotHigh),
				codeAtLeast(domain.CodeClinVarPathogenic, domain.STRONG)),
			evidenceRule("OKB_LIKELY_NEUTRAL", OncoKBLikelyNeutral, 0.7,
				"Curated as neutral or common in the population",
				codes(domain.CodeOncoKBNeutral, domain.CodeOncoKBLikelyNeutral, domain.CodeGnomADCommon)),
		},
	}
}
