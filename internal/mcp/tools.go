package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/somatic-tier-classifier/internal/domain"
	"github.com/somatic-tier-classifier/internal/service"
)

const (
	toolClassify        = "classify_variant_tier"
	toolDescribePathway = "describe_pathway"
	toolListFrameworks  = "list_frameworks"
	toolHistory         = "get_tier_history"
)

// ClassifyTierParams defines parameters for the classify_variant_tier tool
type ClassifyTierParams struct {
	CaseID            string                `json:"case_id,omitempty" jsonschema:"caller supplied identifier stored with the result"`
	AnalysisType      string                `json:"analysis_type,omitempty" jsonschema:"TUMOR_ONLY or TUMOR_NORMAL"`
	TumorType         string                `json:"tumor_type,omitempty" jsonschema:"tumor type used to match therapy evidence"`
	Variant           domain.VariantContext `json:"variant"`
	Lookups           []domain.RawLookup    `json:"lookups,omitempty" jsonschema:"knowledge base lookups; when empty the configured knowledge bases are queried"`
	Frameworks        []string              `json:"frameworks,omitempty" jsonschema:"AMP_ACMG, CGC_VICC and/or ONCOKB_STYLE"`
	KBVersionSnapshot string                `json:"kb_version_snapshot,omitempty"`
}

// DescribePathwayParams defines parameters for the describe_pathway tool
type DescribePathwayParams struct {
	AnalysisType string `json:"analysis_type" jsonschema:"TUMOR_ONLY or TUMOR_NORMAL"`
	TumorType    string `json:"tumor_type,omitempty"`
}

// ListFrameworksParams defines parameters for the list_frameworks tool
type ListFrameworksParams struct {
	Framework string `json:"framework,omitempty" jsonschema:"restrict the listing to one framework"`
}

// TierHistoryParams defines parameters for the get_tier_history tool
type TierHistoryParams struct {
	VariantID string `json:"variant_id"`
	Framework string `json:"framework,omitempty"`
}

func (p ClassifyTierParams) toCase() service.Case {
	c := service.Case{
		CaseID:            p.CaseID,
		AnalysisType:      domain.AnalysisType(p.AnalysisType),
		TumorType:         p.TumorType,
		Variant:           p.Variant,
		Lookups:           p.Lookups,
		KBVersionSnapshot: p.KBVersionSnapshot,
	}
	for _, f := range p.Frameworks {
		c.Frameworks = append(c.Frameworks, domain.GuidelineFramework(f))
	}
	return c
}

// handleClassifyVariantTier handles the classify_variant_tier tool invocation
func (s *Server) handleClassifyVariantTier(ctx context.Context, req *mcp.CallToolRequest, params ClassifyTierParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolClassify).Info("Tool invoked")

	if params.Variant.VariantID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("variant.variant_id is required")), nil, nil
	}

	result, err := s.pipeline.Classify(ctx, params.toCase())
	if err != nil {
		return s.createErrorResult("Classification failed", err), nil, nil
	}

	return s.jsonResult(summarize(result), result)
}

// handleDescribePathway handles the describe_pathway tool invocation
func (s *Server) handleDescribePathway(ctx context.Context, req *mcp.CallToolRequest, params DescribePathwayParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolDescribePathway).Info("Tool invoked")

	analysisType, err := domain.ParseAnalysisType(params.AnalysisType)
	if err != nil {
		return s.createErrorResult("Invalid analysis type", err), nil, nil
	}
	cfg, err := s.pipeline.Router().Configure(analysisType, params.TumorType)
	if err != nil {
		return s.createErrorResult("Invalid pathway request", err), nil, nil
	}

	summary := fmt.Sprintf("%s pathway, priority %s", analysisType, joinSources(cfg.Priority()))
	return s.jsonResult(summary, cfg)
}

// handleListFrameworks handles the list_frameworks tool invocation
func (s *Server) handleListFrameworks(ctx context.Context, req *mcp.CallToolRequest, params ListFrameworksParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolListFrameworks).Info("Tool invoked")

	engine := s.pipeline.Engine()
	frameworks := engine.Frameworks()
	if params.Framework != "" {
		frameworks = []domain.GuidelineFramework{domain.GuidelineFramework(params.Framework)}
	}

	descriptions := make([]domain.FrameworkDescription, 0, len(frameworks))
	names := make([]string, 0, len(frameworks))
	for _, f := range frameworks {
		d, err := engine.Describe(f)
		if err != nil {
			return s.createErrorResult("Unknown framework", err), nil, nil
		}
		descriptions = append(descriptions, d)
		names = append(names, string(d.ID))
	}

	return s.jsonResult("Frameworks: "+strings.Join(names, ", "), descriptions)
}

// handleTierHistory handles the get_tier_history tool invocation
func (s *Server) handleTierHistory(ctx context.Context, req *mcp.CallToolRequest, params TierHistoryParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolHistory).Info("Tool invoked")

	if params.VariantID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("variant_id is required")), nil, nil
	}
	framework := domain.GuidelineFramework(params.Framework)
	if framework != "" && !framework.IsValid() {
		return s.createErrorResult("Unknown framework", fmt.Errorf("%q", params.Framework)), nil, nil
	}

	records, err := s.pipeline.Store().History(ctx, params.VariantID, framework)
	if err != nil {
		return s.createErrorResult("Failed to load history", err), nil, nil
	}

	summary := fmt.Sprintf("%d stored result(s) for %s", len(records), params.VariantID)
	return s.jsonResult(summary, records)
}

// jsonResult returns a one-line summary followed by the JSON payload.
func (s *Server) jsonResult(summary string, payload any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}, payload, nil
}

// createErrorResult creates an error result for tool execution
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
		s.logger.WithError(err).Warn(message)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}

func summarize(result *domain.CaseResult) string {
	if result.Filter.Filtered {
		return fmt.Sprintf("%s filtered: %s", result.VariantID, result.Filter.Reason)
	}
	parts := make([]string, 0, len(result.Results))
	for _, r := range result.Results {
		parts = append(parts, fmt.Sprintf("%s %s (confidence %.2f)", r.Framework, r.TierAssigned, r.ConfidenceScore))
	}
	return fmt.Sprintf("%s: %s", result.VariantID, strings.Join(parts, "; "))
}

func joinSources(sources []domain.EvidenceSource) string {
	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = string(src)
	}
	return strings.Join(names, " > ")
}
