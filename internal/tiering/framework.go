package tiering

import (
	"errors"
	"fmt"
	"strings"

	"github.com/somatic-tier-classifier/internal/domain"
)

// RuleInput is what a rule sees: the variant and the evidence usable under the
// framework (FOUND and at or above MinAdjustedScore), in priority order.
type RuleInput struct {
	Variant  domain.VariantContext
	Evidence []domain.Evidence
}

// RuleOutcome is a fired rule's contribution.
type RuleOutcome struct {
	Candidate     domain.Tier
	Base          float64
	Justification string
	Evidence      []domain.Evidence
}

// Rule is a named predicate over a RuleInput. Tier is the candidate the rule
// declares, used for reporting and definition checks.
type Rule struct {
	ID          string
	Tier        domain.Tier
	Description string
	Evaluate    func(in RuleInput) (RuleOutcome, bool)
}

// Framework is a guideline rule set as data. Severity lists tiers from most to
// least severe; Unclassified is the terminal value when no rule fires and is never
// part of Severity.
type Framework struct {
	ID               domain.GuidelineFramework
	Name             string
	Severity         []domain.Tier
	Unclassified     domain.Tier
	MinAdjustedScore float64
	Rules            []Rule
}

// severityRank returns the tier's position in the ordering, or -1.
func (f *Framework) severityRank(tier domain.Tier) int {
	for i, t := range f.Severity {
		if t == tier {
			return i
		}
	}
	return -1
}

// validate rejects framework definitions the evaluation loop cannot honor.
func (f *Framework) validate() error {
	if f.ID == "" {
		return errors.New("framework id is required")
	}
	if len(f.Severity) == 0 {
		return fmt.Errorf("framework %s declares no severity ordering", f.ID)
	}
	seen := make(map[domain.Tier]bool, len(f.Severity))
	for _, t := range f.Severity {
		if seen[t] {
			return fmt.Errorf("framework %s lists tier %s twice", f.ID, t)
		}
		seen[t] = true
	}
	if f.Unclassified == "" || seen[f.Unclassified] {
		return fmt.Errorf("framework %s unclassified tier %q must be set and outside the severity ordering", f.ID, f.Unclassified)
	}

	ids := make(map[string]bool, len(f.Rules))
	for _, r := range f.Rules {
		if r.ID == "" || r.Evaluate == nil {
			return fmt.Errorf("framework %s has a rule without id or predicate", f.ID)
		}
		if ids[r.ID] {
			return fmt.Errorf("framework %s defines rule %s twice", f.ID, r.ID)
		}
		ids[r.ID] = true
		if !seen[r.Tier] {
			return fmt.Errorf("framework %s rule %s declares tier %s outside the severity ordering", f.ID, r.ID, r.Tier)
		}
	}
	return nil
}

func (f *Framework) describe() domain.FrameworkDescription {
	rules := make([]domain.RuleDescription, len(f.Rules))
	for i, r := range f.Rules {
		rules[i] = domain.RuleDescription{ID: r.ID, Tier: r.Tier, Description: r.Description}
	}
	return domain.FrameworkDescription{
		ID:               f.ID,
		Name:             f.Name,
		Severity:         append([]domain.Tier(nil), f.Severity...),
		Unclassified:     f.Unclassified,
		MinAdjustedScore: f.MinAdjustedScore,
		Rules:            rules,
	}
}

// matcher selects evidence items.
type matcher func(domain.Evidence) bool

func codes(cs ...string) matcher {
	return func(e domain.Evidence) bool {
		for _, c := range cs {
			if e.Code == c {
				return true
			}
		}
		return false
	}
}

// codeAtLeast matches code only when normalized at floor strength or stronger.
func codeAtLeast(code string, floor domain.RuleStrength) matcher {
	return func(e domain.Evidence) bool {
		return e.Code == code && e.Strength.Rank() >= floor.Rank()
	}
}

func anyOf(ms ...matcher) matcher {
	return func(e domain.Evidence) bool {
		for _, m := range ms {
			if m(e) {
				return true
			}
		}
		return false
	}
}

// matching returns the input evidence accepted by m, in priority order.
func (in RuleInput) matching(m matcher) []domain.Evidence {
	var out []domain.Evidence
	for _, e := range in.Evidence {
		if m(e) {
			out = append(out, e)
		}
	}
	return out
}

// evidenceRule fires when any usable item matches, proposing tier.
func evidenceRule(id string, tier domain.Tier, base float64, description string, ms ...matcher) Rule {
	m := anyOf(ms...)
	return Rule{
		ID:          id,
		Tier:        tier,
		Description: description,
		Evaluate: func(in RuleInput) (RuleOutcome, bool) {
			matched := in.matching(m)
			if len(matched) == 0 {
				return RuleOutcome{}, false
			}
			return RuleOutcome{
				Candidate:     tier,
				Base:          base,
				Justification: fmt.Sprintf("%s (%s)", description, citeEvidence(matched)),
				Evidence:      matched,
			}, true
		},
	}
}

// citeEvidence renders "CODE from SOURCE" pairs in evidence order.
func citeEvidence(evidence []domain.Evidence) string {
	parts := make([]string, len(evidence))
	for i, e := range evidence {
		parts[i] = fmt.Sprintf("%s from %s", e.Code, e.Source)
	}
	return strings.Join(parts, ", ")
}

// builtinFrameworks returns fresh copies of the built-in frameworks, in canonical order.
func builtinFrameworks() []Framework {
	return []Framework{ampFramework(), viccFramework(), oncokbFramework()}
}
