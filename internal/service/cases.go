package service

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/somatic-tier-classifier/internal/domain"
	"github.com/somatic-tier-classifier/pkg/hgvs"
)

// Case is one variant to classify with its analysis context and, optionally,
// knowledge-base lookups fetched elsewhere.
type Case struct {
	CaseID            string                      `json:"case_id,omitempty" yaml:"case_id,omitempty"`
	AnalysisType      domain.AnalysisType         `json:"analysis_type,omitempty" yaml:"analysis_type,omitempty"`
	TumorType         string                      `json:"tumor_type,omitempty" yaml:"tumor_type,omitempty"`
	Variant           domain.VariantContext       `json:"variant" yaml:"variant"`
	Lookups           []domain.RawLookup          `json:"lookups,omitempty" yaml:"lookups,omitempty"`
	Frameworks        []domain.GuidelineFramework `json:"frameworks,omitempty" yaml:"frameworks,omitempty"`
	KBVersionSnapshot string                      `json:"kb_version_snapshot,omitempty" yaml:"kb_version_snapshot,omitempty"`
}

func (c Case) label() string {
	if c.CaseID != "" {
		return c.CaseID
	}
	return c.Variant.VariantID
}

type caseFile struct {
	Cases []Case `yaml:"cases"`
}

// LoadCases reads a YAML (or JSON) case file with a top-level "cases" list.
func LoadCases(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open case file: %w", err)
	}
	defer f.Close()
	return ReadCases(f)
}

// ReadCases decodes a case document from r.
func ReadCases(r io.Reader) ([]Case, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read cases: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("case file is empty")
	}

	var file caseFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode cases: %w", err)
	}
	if len(file.Cases) == 0 {
		return nil, fmt.Errorf("case file contains no cases")
	}

	for i, c := range file.Cases {
		if err := validateVariant(c.Variant); err != nil {
			return nil, fmt.Errorf("case %d (%s): %w", i, c.label(), err)
		}
		for _, l := range c.Lookups {
			if !l.Source.IsValid() {
				return nil, fmt.Errorf("case %d (%s): %w: %s", i, c.label(), domain.ErrInvalidSource, l.Source)
			}
		}
	}
	return file.Cases, nil
}

// validateVariant adds gene-symbol and protein-notation checks to the
// VariantContext's own validation.
func validateVariant(v domain.VariantContext) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if err := hgvs.ValidateGeneSymbol(v.GeneSymbol); err != nil {
		return err
	}
	if hgvs.IsProtein(v.HGVS) {
		if _, err := hgvs.NormalizeProtein(v.HGVS); err != nil {
			return err
		}
	}
	return nil
}
