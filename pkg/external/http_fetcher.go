package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/somatic-tier-classifier/internal/domain"
)

// HTTPFetcher GETs one knowledge base's JSON payload from a templated URL.
type HTTPFetcher struct {
	source      domain.EvidenceSource
	urlTemplate string
	apiKey      string
	kbVersion   string
	httpClient  *http.Client
	rateLimit   *rate.Limiter
}

// NewHTTPFetcher creates a fetcher for source. The URL template may use the
// {gene}, {hgvs} and {variant_id} placeholders; values are query-escaped.
func NewHTTPFetcher(source domain.EvidenceSource, config domain.KnowledgeBaseAPI) (*HTTPFetcher, error) {
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidSource, source)
	}
	if config.URLTemplate == "" {
		return nil, fmt.Errorf("url_template is required for %s", source)
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &HTTPFetcher{
		source:      source,
		urlTemplate: config.URLTemplate,
		apiKey:      config.APIKey,
		kbVersion:   config.KBVersion,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(limit, 1),
	}, nil
}

func (h *HTTPFetcher) Source() domain.EvidenceSource {
	return h.source
}

// Fetch returns the response body as raw JSON. A 404 maps to domain.ErrNotFound.
func (h *HTTPFetcher) Fetch(ctx context.Context, variant domain.VariantContext) (json.RawMessage, string, error) {
	// Rate limiting
	if err := h.rateLimit.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limit wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.buildURL(variant), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", fmt.Errorf("%s has no record for %s: %w", h.source, variant.VariantID, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%s API returned status %d", h.source, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	if !json.Valid(body) {
		return nil, "", fmt.Errorf("%s API returned invalid JSON", h.source)
	}

	version := resp.Header.Get("X-KB-Version")
	if version == "" {
		version = h.kbVersion
	}
	return json.RawMessage(body), version, nil
}

func (h *HTTPFetcher) buildURL(variant domain.VariantContext) string {
	return strings.NewReplacer(
		"{gene}", url.QueryEscape(variant.GeneSymbol),
		"{hgvs}", url.QueryEscape(variant.HGVS),
		"{variant_id}", url.QueryEscape(variant.VariantID),
	).Replace(h.urlTemplate)
}
