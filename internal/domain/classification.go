package domain

import (
	"time"
)

// RuleTrace records why one rule fired: the tier it proposed, the confidence it
// contributed, and the evidence items that satisfied it.
type RuleTrace struct {
	RuleID          string     `json:"rule_id"`
	Candidate       Tier       `json:"candidate"`
	ConfidenceDelta float64    `json:"confidence_delta"`
	Justification   string     `json:"justification"`
	Evidence        []Evidence `json:"evidence"`
}

// TierResult is the outcome of evaluating one variant under one framework.
// It is never mutated after the engine returns it.
type TierResult struct {
	VariantID         string               `json:"variant_id"`
	Framework         GuidelineFramework   `json:"framework"`
	TierAssigned      Tier                 `json:"tier_assigned"`
	ConfidenceScore   float64              `json:"confidence_score"`
	RulesInvoked      []string             `json:"rules_invoked"`
	RuleEvidence      map[string]RuleTrace `json:"rule_evidence"`
	AnalysisType      AnalysisType         `json:"analysis_type,omitempty"`
	Clonality         Clonality            `json:"clonality,omitempty"`
	KBVersionSnapshot string               `json:"kb_version_snapshot,omitempty"`
	EvaluatedAt       time.Time            `json:"evaluated_at"`
}

// Classified reports whether any rule fired.
func (r TierResult) Classified() bool {
	return len(r.RulesInvoked) > 0
}

// TierRecord is a persisted TierResult. Every save gets a new ID, so re-running a
// variant appends history rather than overwriting it.
type TierRecord struct {
	ID        string     `json:"id"`
	RequestID string     `json:"request_id,omitempty"`
	Result    TierResult `json:"result"`
	CreatedAt time.Time  `json:"created_at"`
}

// RuleDescription is the reporting view of one framework rule.
type RuleDescription struct {
	ID          string `json:"id"`
	Tier        Tier   `json:"tier"`
	Description string `json:"description"`
}

// FrameworkDescription is the reporting view of a framework.
type FrameworkDescription struct {
	ID               GuidelineFramework `json:"id"`
	Name             string             `json:"name"`
	Severity         []Tier             `json:"severity"`
	Unclassified     Tier               `json:"unclassified"`
	MinAdjustedScore float64            `json:"min_adjusted_score"`
	Rules            []RuleDescription  `json:"rules"`
}

// FilterDecision is the router's verdict on a variant, with the reason for audit.
type FilterDecision struct {
	Filtered bool   `json:"filtered"`
	Reason   string `json:"reason,omitempty"`
}

// CaseResult is the full outcome of classifying one case.
type CaseResult struct {
	CaseID    string         `json:"case_id,omitempty"`
	VariantID string         `json:"variant_id"`
	Pathway   PathwayConfig  `json:"pathway"`
	Filter    FilterDecision `json:"filter"`
	Evidence  []Evidence     `json:"evidence"`
	Results   []TierResult   `json:"results"`
	RecordIDs []string       `json:"record_ids,omitempty"`
}
