package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/somatic-tier-classifier/internal/domain"
	"github.com/somatic-tier-classifier/internal/evidence"
	"github.com/somatic-tier-classifier/internal/tiering"
	"github.com/somatic-tier-classifier/internal/workflow"
)

// LookupCollector gathers knowledge-base lookups for a variant.
type LookupCollector interface {
	Collect(ctx context.Context, variant domain.VariantContext) ([]domain.RawLookup, error)
}

// Options wires the optional parts of a Pipeline.
type Options struct {
	// Collector is used only for cases that carry no lookups.
	Collector LookupCollector

	// Store may be nil to disable persistence.
	Store domain.ResultStore

	Defaults domain.AnalysisConfig
	Workers  int
}

// Pipeline classifies cases end to end: pathway selection and pre-filter,
// evidence aggregation, tier evaluation and optional persistence.
type Pipeline struct {
	logger     *logrus.Logger
	router     *workflow.Router
	aggregator *evidence.Aggregator
	engine     *tiering.Engine
	collector  LookupCollector
	store      domain.ResultStore

	defaultAnalysis   domain.AnalysisType
	defaultTumorType  string
	defaultFrameworks []domain.GuidelineFramework
	kbVersionSnapshot string
	workers           int
}

// NewPipeline creates a pipeline. Defaults must name a valid analysis type and
// known frameworks.
func NewPipeline(
	logger *logrus.Logger,
	router *workflow.Router,
	aggregator *evidence.Aggregator,
	engine *tiering.Engine,
	opts Options,
) (*Pipeline, error) {
	analysisType := domain.TUMOR_NORMAL
	if opts.Defaults.DefaultAnalysisType != "" {
		parsed, err := domain.ParseAnalysisType(opts.Defaults.DefaultAnalysisType)
		if err != nil {
			return nil, fmt.Errorf("default analysis type: %w", err)
		}
		analysisType = parsed
	}

	frameworks := engine.Frameworks()
	if len(opts.Defaults.Frameworks) > 0 {
		parsed, err := domain.ParseFrameworks(opts.Defaults.Frameworks)
		if err != nil {
			return nil, fmt.Errorf("default frameworks: %w", err)
		}
		frameworks = parsed
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pipeline{
		logger:            logger,
		router:            router,
		aggregator:        aggregator,
		engine:            engine,
		collector:         opts.Collector,
		store:             opts.Store,
		defaultAnalysis:   analysisType,
		defaultTumorType:  opts.Defaults.DefaultTumorType,
		defaultFrameworks: frameworks,
		kbVersionSnapshot: opts.Defaults.KBVersionSnapshot,
		workers:           workers,
	}, nil
}

// Engine exposes the tiering engine for framework listings.
func (p *Pipeline) Engine() *tiering.Engine {
	return p.engine
}

// Router exposes the workflow router for pathway descriptions.
func (p *Pipeline) Router() *workflow.Router {
	return p.router
}

// Store returns the configured result store, or nil.
func (p *Pipeline) Store() domain.ResultStore {
	return p.store
}

// Classify runs one case. A variant removed by the pathway pre-filter yields a
// result with Filter set and no tier results.
func (p *Pipeline) Classify(ctx context.Context, c Case) (*domain.CaseResult, error) {
	startTime := time.Now()

	if err := validateVariant(c.Variant); err != nil {
		return nil, fmt.Errorf("invalid case %s: %w", c.label(), err)
	}
	analysisType, frameworks, err := p.resolve(c)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", c.label(), err)
	}
	tumorType := c.TumorType
	if tumorType == "" {
		tumorType = p.defaultTumorType
	}

	// Step 1: Select the pathway and apply its pre-filter
	cfg, err := p.router.Configure(analysisType, tumorType)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", c.label(), err)
	}

	result := &domain.CaseResult{
		CaseID:    c.CaseID,
		VariantID: c.Variant.VariantID,
		Pathway:   cfg,
		Filter:    p.router.DecideVariant(cfg, c.Variant),
		Evidence:  []domain.Evidence{},
		Results:   []domain.TierResult{},
	}
	if result.Filter.Filtered {
		p.logger.WithFields(logrus.Fields{
			"case_id":    c.CaseID,
			"variant_id": c.Variant.VariantID,
			"reason":     result.Filter.Reason,
		}).Info("Variant filtered before tiering")
		return result, nil
	}

	// Step 2: Gather lookups when the case did not bring its own
	lookups := c.Lookups
	if len(lookups) == 0 && p.collector != nil {
		lookups, err = p.collector.Collect(ctx, c.Variant)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.label(), err)
		}
	}

	// Step 3: Normalize and weight evidence
	result.Evidence = p.aggregator.Aggregate(c.Variant, lookups, cfg)

	// Step 4: Evaluate every requested framework
	meta := tiering.RunMetadata{
		AnalysisType:      analysisType,
		Clonality:         p.router.ClassifyClonality(c.Variant.TumorVAF),
		KBVersionSnapshot: p.snapshotTag(c, lookups),
	}
	results, err := p.engine.EvaluateRun(c.Variant, result.Evidence, frameworks, meta)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", c.label(), err)
	}
	result.Results = results

	// Step 5: Persist every framework's result, or none
	if p.store != nil {
		requestID := c.CaseID
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ids, err := p.store.SaveAll(ctx, results, requestID)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.label(), err)
		}
		result.RecordIDs = ids
	}

	fields := logrus.Fields{
		"case_id":         c.CaseID,
		"variant_id":      c.Variant.VariantID,
		"analysis_type":   analysisType,
		"evidence_items":  len(result.Evidence),
		"processing_time": time.Since(startTime),
	}
	for _, r := range results {
		fields[strings.ToLower(string(r.Framework))] = r.TierAssigned
	}
	p.logger.WithFields(fields).Info("Case classification completed")

	return result, nil
}

func (p *Pipeline) resolve(c Case) (domain.AnalysisType, []domain.GuidelineFramework, error) {
	analysisType := p.defaultAnalysis
	if c.AnalysisType != "" {
		if !c.AnalysisType.IsValid() {
			return "", nil, domain.NewConfigurationError(c.AnalysisType, "", "unknown analysis type")
		}
		analysisType = c.AnalysisType
	}

	frameworks := p.defaultFrameworks
	if len(c.Frameworks) > 0 {
		for _, f := range c.Frameworks {
			if !f.IsValid() {
				return "", nil, domain.NewConfigurationError("", string(f), "unknown guideline framework")
			}
		}
		frameworks = c.Frameworks
	}
	return analysisType, frameworks, nil
}

// snapshotTag picks the case's tag, then the configured one, then a tag built
// from the knowledge-base versions reported by the lookups.
func (p *Pipeline) snapshotTag(c Case, lookups []domain.RawLookup) string {
	if c.KBVersionSnapshot != "" {
		return c.KBVersionSnapshot
	}
	if p.kbVersionSnapshot != "" {
		return p.kbVersionSnapshot
	}
	var parts []string
	for _, l := range lookups {
		if l.KBVersion != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", l.Source, l.KBVersion))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// BatchItem is one case's outcome within a batch.
type BatchItem struct {
	CaseID string             `json:"case_id,omitempty"`
	Result *domain.CaseResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// ClassifyBatch classifies cases concurrently, at most Workers at a time. Items
// keep the input order. A failing case does not stop the others; cancellation of
// ctx is checked before each case starts and fails the batch.
func (p *Pipeline) ClassifyBatch(ctx context.Context, cases []Case) ([]BatchItem, error) {
	items := make([]BatchItem, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, c := range cases {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i].CaseID = c.CaseID
			result, err := p.Classify(gctx, c)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				items[i].Error = err.Error()
				p.logger.WithError(err).WithField("case_id", c.CaseID).Warn("Case classification failed")
				return nil
			}
			items[i].Result = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch classification aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch classification aborted: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"cases":   len(cases),
		"workers": p.workers,
		"failed":  countFailed(items),
	}).Info("Batch classification completed")
	return items, nil
}

func countFailed(items []BatchItem) int {
	n := 0
	for _, item := range items {
		if item.Error != "" {
			n++
		}
	}
	return n
}
