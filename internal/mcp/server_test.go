package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somatic-tier-classifier/internal/domain"
	"github.com/somatic-tier-classifier/internal/evidence"
	"github.com/somatic-tier-classifier/internal/service"
	"github.com/somatic-tier-classifier/internal/store"
	"github.com/somatic-tier-classifier/internal/tiering"
	"github.com/somatic-tier-classifier/internal/workflow"
)

func newTestServer(t *testing.T, withStore bool) *Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	router := workflow.NewRouter(logger)

	var opts service.Options
	if withStore {
		results, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "results.db"))
		require.NoError(t, err)
		t.Cleanup(func() { results.Close() })
		opts.Store = results
	}

	pipeline, err := service.NewPipeline(logger, router, evidence.NewAggregator(router, logger), tiering.NewEngine(logger), opts)
	require.NoError(t, err)
	return NewServer(domain.MCPConfig{}, pipeline, logger)
}

func brafParams() ClassifyTierParams {
	return ClassifyTierParams{
		CaseID:       "mcp-1",
		AnalysisType: "TUMOR_NORMAL",
		TumorType:    "Melanoma",
		Frameworks:   []string{"AMP_ACMG"},
		Variant: domain.VariantContext{
			VariantID:  "chr7:140753336:A:T",
			GeneSymbol: "BRAF",
			HGVS:       "p.V600E",
			IsHotspot:  true,
			TumorVAF:   0.45,
			NormalVAF:  domain.Float64(0),
		},
		Lookups: []domain.RawLookup{{
			Source:    domain.FDA_APPROVED,
			Status:    domain.LOOKUP_FOUND,
			Payload:   map[string]any{"approved": true, "drug": "dabrafenib", "tumor_type": "Melanoma"},
			KBVersion: "2024-05",
		}},
	}
}

func text(t *testing.T, res *mcp.CallToolResult, i int) string {
	t.Helper()
	require.Greater(t, len(res.Content), i)
	tc, ok := res.Content[i].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t, false)

	assert.NotNil(t, server.mcpServer)
	assert.Equal(t, "tier-classifier", server.config.ServerName)
	assert.Equal(t, "1.0.0", server.config.ServerVersion)
}

func TestClassifyVariantTier(t *testing.T) {
	server := newTestServer(t, true)

	// Act
	res, out, err := server.handleClassifyVariantTier(context.Background(), nil, brafParams())

	// Assert
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res, 0))
	assert.Equal(t, "chr7:140753336:A:T: AMP_ACMG TIER_IA (confidence 0.95)", text(t, res, 0))
	assert.Contains(t, text(t, res, 1), `"tier_assigned": "TIER_IA"`)

	result, ok := out.(*domain.CaseResult)
	require.True(t, ok)
	assert.Len(t, result.RecordIDs, 1)

	res, out, err = server.handleTierHistory(context.Background(), nil, TierHistoryParams{VariantID: "chr7:140753336:A:T"})
	require.NoError(t, err)
	require.False(t, res.IsError)
	records := out.([]domain.TierRecord)
	require.Len(t, records, 1)
	assert.Equal(t, "mcp-1", records[0].RequestID)
}

func TestClassifyVariantTier_Errors(t *testing.T) {
	server := newTestServer(t, false)

	tests := []struct {
		name   string
		mutate func(p *ClassifyTierParams)
		want   string
	}{
		{"missing variant id", func(p *ClassifyTierParams) { p.Variant.VariantID = "" }, "variant.variant_id is required"},
		{"bad vaf", func(p *ClassifyTierParams) { p.Variant.TumorVAF = 2 }, "tumor VAF"},
		{"unknown framework", func(p *ClassifyTierParams) { p.Frameworks = []string{"ESMO"} }, "Classification failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := brafParams()
			tt.mutate(&params)

			res, out, err := server.handleClassifyVariantTier(context.Background(), nil, params)

			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Nil(t, out)
			assert.Contains(t, text(t, res, 0), tt.want)
		})
	}
}

func TestClassifyVariantTier_Filtered(t *testing.T) {
	server := newTestServer(t, false)
	params := brafParams()
	params.Variant.IsHotspot = false
	params.Variant.NormalVAF = domain.Float64(0.4)

	res, _, err := server.handleClassifyVariantTier(context.Background(), nil, params)

	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, text(t, res, 0), "filtered")
}

func TestDescribePathway(t *testing.T) {
	server := newTestServer(t, false)

	res, out, err := server.handleDescribePathway(context.Background(), nil, DescribePathwayParams{AnalysisType: "TUMOR_ONLY"})

	require.NoError(t, err)
	require.False(t, res.IsError)
	cfg := out.(domain.PathwayConfig)
	assert.Equal(t, domain.TUMOR_ONLY, cfg.AnalysisType())
	assert.Contains(t, text(t, res, 0), "TUMOR_ONLY pathway, priority ONCOKB > FDA_APPROVED > GNOMAD")

	res, _, err = server.handleDescribePathway(context.Background(), nil, DescribePathwayParams{AnalysisType: "GERMLINE"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListFrameworks(t *testing.T) {
	server := newTestServer(t, false)

	res, out, err := server.handleListFrameworks(context.Background(), nil, ListFrameworksParams{})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Len(t, out.([]domain.FrameworkDescription), 3)

	res, out, err = server.handleListFrameworks(context.Background(), nil, ListFrameworksParams{Framework: "CGC_VICC"})
	require.NoError(t, err)
	descriptions := out.([]domain.FrameworkDescription)
	require.Len(t, descriptions, 1)
	assert.Equal(t, domain.CGC_VICC, descriptions[0].ID)

	res, _, err = server.handleListFrameworks(context.Background(), nil, ListFrameworksParams{Framework: "ESMO"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestTierHistory_Validation(t *testing.T) {
	server := newTestServer(t, true)

	res, _, err := server.handleTierHistory(context.Background(), nil, TierHistoryParams{})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, _, err = server.handleTierHistory(context.Background(), nil, TierHistoryParams{VariantID: "x", Framework: "ESMO"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
