package tiering

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/somatic-tier-classifier/internal/domain"
)

// RunMetadata is copied verbatim into every TierResult of a run.
type RunMetadata struct {
	AnalysisType      domain.AnalysisType
	Clonality         domain.Clonality
	KBVersionSnapshot string
}

func (m RunMetadata) analysisClause() string {
	if m.AnalysisType == "" {
		return ""
	}
	return fmt.Sprintf(" (analysis %s)", m.AnalysisType)
}

// Engine evaluates guideline frameworks over an evidence set. Frameworks are fixed at
// construction and never modified, so one Engine is safe for concurrent use.
type Engine struct {
	logger     *logrus.Logger
	frameworks map[domain.GuidelineFramework]*Framework
	order      []domain.GuidelineFramework
	now        func() time.Time
}

// NewEngine creates an engine with the built-in frameworks
func NewEngine(logger *logrus.Logger) *Engine {
	engine, err := NewEngineWithFrameworks(logger, builtinFrameworks()...)
	if err != nil {
		// Built-in definitions are covered by tests; a failure here is a programming error.
		panic(err)
	}
	return engine
}

// NewEngineWithFrameworks creates an engine over custom framework definitions.
// Definitions are validated up front and copied.
func NewEngineWithFrameworks(logger *logrus.Logger, frameworks ...Framework) (*Engine, error) {
	engine := &Engine{
		logger:     logger,
		frameworks: make(map[domain.GuidelineFramework]*Framework, len(frameworks)),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for i := range frameworks {
		fw := frameworks[i]
		if err := fw.validate(); err != nil {
			return nil, fmt.Errorf("invalid framework definition: %w", err)
		}
		if _, dup := engine.frameworks[fw.ID]; dup {
			return nil, fmt.Errorf("framework %s registered twice", fw.ID)
		}
		fw.Severity = append([]domain.Tier(nil), fw.Severity...)
		fw.Rules = append([]Rule(nil), fw.Rules...)
		engine.frameworks[fw.ID] = &fw
		engine.order = append(engine.order, fw.ID)
	}
	return engine, nil
}

// Frameworks lists the registered frameworks in registration order.
func (e *Engine) Frameworks() []domain.GuidelineFramework {
	return append([]domain.GuidelineFramework(nil), e.order...)
}

// Describe returns the reporting view of a framework.
func (e *Engine) Describe(framework domain.GuidelineFramework) (domain.FrameworkDescription, error) {
	fw, err := e.lookup(framework)
	if err != nil {
		return domain.FrameworkDescription{}, err
	}
	return fw.describe(), nil
}

// Evaluate runs one framework over the evidence set.
func (e *Engine) Evaluate(variant domain.VariantContext, evidence []domain.Evidence, framework domain.GuidelineFramework) (domain.TierResult, error) {
	return e.evaluate(variant, evidence, framework, RunMetadata{})
}

// EvaluateAll runs each framework independently, in the order given.
func (e *Engine) EvaluateAll(variant domain.VariantContext, evidence []domain.Evidence, frameworks []domain.GuidelineFramework) ([]domain.TierResult, error) {
	return e.EvaluateRun(variant, evidence, frameworks, RunMetadata{})
}

// EvaluateRun is EvaluateAll with run metadata stamped onto every result. The first
// fatal error aborts the run.
func (e *Engine) EvaluateRun(variant domain.VariantContext, evidence []domain.Evidence, frameworks []domain.GuidelineFramework, meta RunMetadata) ([]domain.TierResult, error) {
	results := make([]domain.TierResult, 0, len(frameworks))
	for _, fw := range frameworks {
		result, err := e.evaluate(variant, evidence, fw, meta)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (e *Engine) lookup(framework domain.GuidelineFramework) (*Framework, error) {
	fw, ok := e.frameworks[framework]
	if !ok {
		return nil, domain.NewConfigurationError("", string(framework), "unknown guideline framework")
	}
	return fw, nil
}

func (e *Engine) evaluate(variant domain.VariantContext, evidence []domain.Evidence, framework domain.GuidelineFramework, meta RunMetadata) (domain.TierResult, error) {
	fw, err := e.lookup(framework)
	if err != nil {
		return domain.TierResult{}, fmt.Errorf("evaluate variant %s%s: %w", variant.VariantID, meta.analysisClause(), err)
	}

	ev := newEvaluation(fw, variant)
	if err := ev.bind(evidence); err != nil {
		return domain.TierResult{}, e.wrap(ev, meta, err)
	}
	if err := ev.evaluateRules(); err != nil {
		return domain.TierResult{}, e.wrap(ev, meta, err)
	}
	result, err := ev.finalize(meta, e.now())
	if err != nil {
		return domain.TierResult{}, e.wrap(ev, meta, err)
	}

	e.logger.WithFields(logrus.Fields{
		"variant_id":          variant.VariantID,
		"framework":           fw.ID,
		"usable":              len(ev.input.Evidence),
		"rules_invoked":       len(result.RulesInvoked),
		"tier_assigned":       result.TierAssigned,
		"confidence":          result.ConfidenceScore,
		"analysis_type":       meta.AnalysisType,
		"kb_version_snapshot": meta.KBVersionSnapshot,
	}).Debug("Framework evaluated")

	return result, nil
}

func (e *Engine) wrap(ev *evaluation, meta RunMetadata, err error) error {
	e.logger.WithError(err).WithFields(logrus.Fields{
		"variant_id": ev.variant.VariantID,
		"framework":  ev.fw.ID,
	}).Error("Framework evaluation aborted")
	return fmt.Errorf("evaluate %s for variant %s%s: %w", ev.fw.ID, ev.variant.VariantID, meta.analysisClause(), err)
}

type evalState int

const (
	stateInit evalState = iota
	stateEvidenceBound
	stateRulesEvaluated
	stateTierFinalized
)

// evaluation is the per-(variant, framework) state. It is never shared.
type evaluation struct {
	state      evalState
	fw         *Framework
	variant    domain.VariantContext
	input      RuleInput
	invoked    []string
	traces     map[string]domain.RuleTrace
	tier       domain.Tier
	rank       int
	confidence float64
}

func newEvaluation(fw *Framework, variant domain.VariantContext) *evaluation {
	return &evaluation{
		state:   stateInit,
		fw:      fw,
		variant: variant,
		traces:  make(map[string]domain.RuleTrace),
		tier:    fw.Unclassified,
		rank:    -1,
	}
}

func (ev *evaluation) advance(from, to evalState) error {
	if ev.state != from {
		return fmt.Errorf("evaluation in state %d, expected %d", ev.state, from)
	}
	ev.state = to
	return nil
}

// bind keeps the evidence this framework may use, as private copies.
func (ev *evaluation) bind(evidence []domain.Evidence) error {
	if err := ev.advance(stateInit, stateEvidenceBound); err != nil {
		return err
	}
	usable := make([]domain.Evidence, 0, len(evidence))
	for _, item := range evidence {
		if item.Usable() && item.AdjustedScore >= ev.fw.MinAdjustedScore {
			usable = append(usable, item.Clone())
		}
	}
	ev.input = RuleInput{Variant: ev.variant, Evidence: usable}
	return nil
}

func (ev *evaluation) evaluateRules() error {
	if err := ev.advance(stateEvidenceBound, stateRulesEvaluated); err != nil {
		return err
	}
	for _, rule := range ev.fw.Rules {
		outcome, fired := rule.Evaluate(ev.input)
		if !fired {
			continue
		}
		candidate := outcome.Candidate
		if candidate == "" {
			candidate = rule.Tier
		}
		rank := ev.fw.severityRank(candidate)
		if rank < 0 {
			return ev.violation(candidate, fmt.Sprintf("rule %s proposed a tier outside the severity ordering", rule.ID))
		}

		delta := ruleDelta(outcome)
		ev.invoked = append(ev.invoked, rule.ID)
		ev.traces[rule.ID] = domain.RuleTrace{
			RuleID:          rule.ID,
			Candidate:       candidate,
			ConfidenceDelta: delta,
			Justification:   outcome.Justification,
			Evidence:        cloneEvidence(outcome.Evidence),
		}

		if ev.rank < 0 || rank < ev.rank {
			ev.rank = rank
			ev.tier = candidate
		}
		if delta > ev.confidence {
			ev.confidence = delta
		}
	}
	return nil
}

func (ev *evaluation) finalize(meta RunMetadata, at time.Time) (domain.TierResult, error) {
	if err := ev.advance(stateRulesEvaluated, stateTierFinalized); err != nil {
		return domain.TierResult{}, err
	}
	if len(ev.invoked) == 0 {
		if ev.tier != ev.fw.Unclassified {
			return domain.TierResult{}, ev.violation(ev.tier, "tier assigned with no supporting rules")
		}
		ev.confidence = 0
	} else if ev.tier == ev.fw.Unclassified {
		return domain.TierResult{}, ev.violation(ev.tier, "rules fired but no tier was assigned")
	}

	return domain.TierResult{
		VariantID:         ev.variant.VariantID,
		Framework:         ev.fw.ID,
		TierAssigned:      ev.tier,
		ConfidenceScore:   ev.confidence,
		RulesInvoked:      append([]string{}, ev.invoked...),
		RuleEvidence:      ev.traces,
		AnalysisType:      meta.AnalysisType,
		Clonality:         meta.Clonality,
		KBVersionSnapshot: meta.KBVersionSnapshot,
		EvaluatedAt:       at,
	}, nil
}

func (ev *evaluation) violation(tier domain.Tier, reason string) error {
	return &domain.RuleEvaluationInvariantViolation{
		Framework: ev.fw.ID,
		VariantID: ev.variant.VariantID,
		Tier:      tier,
		Reason:    reason,
	}
}

// ruleDelta scales the rule's base confidence by the strongest pathway weight among
// its evidence. Rules that fire on variant data alone keep their base.
func ruleDelta(outcome RuleOutcome) float64 {
	weight := 1.0
	if len(outcome.Evidence) > 0 {
		weight = 0
		for _, e := range outcome.Evidence {
			weight = math.Max(weight, e.PathwayWeight)
		}
	}
	return clip(outcome.Base * weight)
}

func clip(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func cloneEvidence(evidence []domain.Evidence) []domain.Evidence {
	out := make([]domain.Evidence, len(evidence))
	for i, e := range evidence {
		out[i] = e.Clone()
	}
	return out
}
