package hgvs

import (
	"regexp"
	"strings"

	"github.com/somatic-tier-classifier/internal/domain"
)

var (
	// Standard gene symbol pattern (HUGO Gene Nomenclature Committee standards)
	standardGenePattern = regexp.MustCompile(`^[A-Z][A-Z0-9-]*[A-Z0-9]$`)

	singleLetterGenePattern = regexp.MustCompile(`^[A-Z]$`)
)

// ValidateGeneSymbol checks a symbol against HGNC conventions. An empty symbol is
// allowed; not every knowledge base needs one.
func ValidateGeneSymbol(symbol string) error {
	if symbol == "" {
		return nil
	}

	if symbol != strings.ToUpper(symbol) {
		return domain.NewValidationError("gene_symbol",
			"Gene symbol must be in uppercase letters according to HUGO standards",
			symbol)
	}

	if !singleLetterGenePattern.MatchString(symbol) && !standardGenePattern.MatchString(symbol) {
		return domain.NewValidationError("gene_symbol",
			"Gene symbol must follow HUGO nomenclature standards (uppercase letters, numbers, and hyphens only)",
			symbol)
	}

	// Gene symbols should not have consecutive hyphens
	if strings.Contains(symbol, "--") {
		return domain.NewValidationError("gene_symbol",
			"Gene symbol cannot contain consecutive hyphens",
			symbol)
	}

	// HUGO recommends 1-15 characters
	if len(symbol) > 15 {
		return domain.NewValidationError("gene_symbol",
			"Gene symbol should not exceed 15 characters",
			symbol)
	}

	return nil
}

// VariantKey is the "GENE:p.X000Y" key knowledge-base snapshots use. ok is false
// when the variant has no gene or no parseable protein change.
func VariantKey(gene, notation string) (string, bool) {
	gene = strings.ToUpper(strings.TrimSpace(gene))
	if gene == "" || !IsProtein(notation) {
		return "", false
	}
	protein, err := NormalizeProtein(notation)
	if err != nil {
		return "", false
	}
	return gene + ":" + protein, true
}
