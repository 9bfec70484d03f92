package domain

import (
	"context"
	"encoding/json"
	"io"
)

// ResultStore persists tier results keyed by (variant, framework). Saves are
// append-only; Latest returns ErrNotFound when nothing was stored. SaveAll stores
// every result or none of them.
type ResultStore interface {
	Save(ctx context.Context, result TierResult, requestID string) (string, error)
	SaveAll(ctx context.Context, results []TierResult, requestID string) ([]string, error)
	Latest(ctx context.Context, variantID string, framework GuidelineFramework) (*TierRecord, error)
	History(ctx context.Context, variantID string, framework GuidelineFramework) ([]TierRecord, error)
	Count(ctx context.Context) (int, error)
	ExportJSON(ctx context.Context, w io.Writer) error
	Close() error
}

// EvidenceFetcher retrieves one knowledge base's payload for a variant.
// Returning ErrNotFound means the source was queried and holds nothing for it.
type EvidenceFetcher interface {
	Source() EvidenceSource
	Fetch(ctx context.Context, variant VariantContext) (json.RawMessage, string, error)
}

// PayloadCache caches raw knowledge-base payloads by key.
type PayloadCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
