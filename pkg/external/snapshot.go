package external

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/somatic-tier-classifier/internal/domain"
	"github.com/somatic-tier-classifier/pkg/hgvs"
)

// Snapshot is a frozen export of knowledge-base payloads. Payloads are keyed by
// source, then by variant id or by "GENE:p.change". Protein changes may be written
// in either one- or three-letter form.
//
//	{
//	  "kb_version": "2024-06",
//	  "versions": {"ONCOKB": "v4.19"},
//	  "sources": {"ONCOKB": {"chr12:25245350:C:T": {...}}}
//	}
type Snapshot struct {
	KBVersion string                                               `json:"kb_version"`
	Versions  map[domain.EvidenceSource]string                     `json:"versions,omitempty"`
	Sources   map[domain.EvidenceSource]map[string]json.RawMessage `json:"sources"`
}

// LoadSnapshot reads and validates a snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes snapshot JSON, rejecting unknown sources.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	for source, entries := range snap.Sources {
		if !source.IsValid() {
			return nil, fmt.Errorf("%w in snapshot: %s", domain.ErrInvalidSource, source)
		}
		addProteinAliases(entries)
	}
	return &snap, nil
}

// Version returns the knowledge-base version recorded for source.
func (s *Snapshot) Version(source domain.EvidenceSource) string {
	if v, ok := s.Versions[source]; ok && v != "" {
		return v
	}
	return s.KBVersion
}

// Fetchers returns one fetcher per source present in the snapshot, in the
// canonical source order.
func (s *Snapshot) Fetchers() []domain.EvidenceFetcher {
	var fetchers []domain.EvidenceFetcher
	for _, source := range domain.AllEvidenceSources() {
		if _, ok := s.Sources[source]; ok {
			fetchers = append(fetchers, &SnapshotFetcher{snapshot: s, source: source})
		}
	}
	return fetchers
}

// SnapshotFetcher serves one source out of a Snapshot.
type SnapshotFetcher struct {
	snapshot *Snapshot
	source   domain.EvidenceSource
}

func (f *SnapshotFetcher) Source() domain.EvidenceSource {
	return f.source
}

func (f *SnapshotFetcher) Fetch(ctx context.Context, variant domain.VariantContext) (json.RawMessage, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	entries := f.snapshot.Sources[f.source]
	for _, key := range snapshotKeys(variant) {
		if payload, ok := entries[key]; ok {
			return payload, f.snapshot.Version(f.source), nil
		}
	}
	return nil, "", fmt.Errorf("%s snapshot has no record for %s: %w", f.source, variant.VariantID, domain.ErrNotFound)
}

func snapshotKeys(variant domain.VariantContext) []string {
	keys := []string{variant.VariantID}
	if key, ok := hgvs.VariantKey(variant.GeneSymbol, variant.HGVS); ok {
		keys = append(keys, key)
	} else if variant.GeneSymbol != "" && variant.HGVS != "" {
		keys = append(keys, strings.ToUpper(variant.GeneSymbol)+":"+variant.HGVS)
	}
	return keys
}

// addProteinAliases indexes "GENE:p.Val600Glu" entries under their normalized
// "GENE:p.V600E" form as well.
func addProteinAliases(entries map[string]json.RawMessage) {
	for key, payload := range entries {
		gene, change, found := strings.Cut(key, ":")
		if !found {
			continue
		}
		alias, ok := hgvs.VariantKey(gene, change)
		if !ok || alias == key {
			continue
		}
		if _, exists := entries[alias]; !exists {
			entries[alias] = payload
		}
	}
}
