// Package hgvs normalizes the protein-level HGVS notation and gene symbols that
// knowledge bases key their records by.
package hgvs

import (
	"regexp"
	"strings"

	"github.com/somatic-tier-classifier/internal/domain"
)

var (
	// NP_004324.2:p.(Val600Glu), p.V600E, V600E, p.R175*, p.K132Nfs*5, p.E746_A750del
	proteinPattern = regexp.MustCompile(`^(?:(NP_\d+\.\d+):)?(?:p\.)?\(?([A-Z](?:[a-z]{2})?)(\d+)(.*?)\)?$`)

	// change after the position: alternate residue, stop, synonymous, frameshift, in-frame edits
	changePattern = regexp.MustCompile(`^((?:[A-Z](?:[a-z]{2})?)|\*|=)?(fs(?:\*|Ter)?(?:\d+|\?)?)?$`)

	rangePattern = regexp.MustCompile(`^_([A-Z](?:[a-z]{2})?)(\d+)(del|dup|ins.*|delins.*)$`)

	// Three-letter to one-letter amino acid codes
	aminoAcidCodes = map[string]string{
		"Ala": "A", "Arg": "R", "Asn": "N", "Asp": "D", "Cys": "C",
		"Gln": "Q", "Glu": "E", "Gly": "G", "His": "H", "Ile": "I",
		"Leu": "L", "Lys": "K", "Met": "M", "Phe": "F", "Pro": "P",
		"Ser": "S", "Thr": "T", "Trp": "W", "Tyr": "Y", "Val": "V",
		"Ter": "*", "Sec": "U", "Pyl": "O",
	}

	oneLetterCodes = "ARNDCQEGHILKMFPSTWYVUO"
)

// NormalizeProtein rewrites a protein change into one-letter form with a "p."
// prefix and no reference sequence or parentheses, so p.Val600Glu, V600E and
// NP_004324.2:p.(Val600Glu) all become p.V600E.
func NormalizeProtein(notation string) (string, error) {
	trimmed := strings.TrimSpace(notation)
	if trimmed == "" {
		return "", domain.NewValidationError("hgvs", "HGVS notation cannot be empty", notation)
	}

	m := proteinPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", domain.NewValidationError("hgvs", "not a protein-level HGVS change", notation)
	}
	ref, ok := residue(m[2])
	if !ok {
		return "", domain.NewValidationError("hgvs", "unknown reference amino acid", notation)
	}
	position, change := m[3], m[4]

	if r := rangePattern.FindStringSubmatch(change); r != nil {
		end, ok := residue(r[1])
		if !ok {
			return "", domain.NewValidationError("hgvs", "unknown amino acid in range", notation)
		}
		edit, err := normalizeInserted(r[3], notation)
		if err != nil {
			return "", err
		}
		return "p." + ref + position + "_" + end + r[2] + edit, nil
	}
	if change == "del" || change == "dup" {
		return "p." + ref + position + change, nil
	}
	if strings.HasPrefix(change, "delins") {
		edit, err := normalizeInserted(change, notation)
		if err != nil {
			return "", err
		}
		return "p." + ref + position + edit, nil
	}

	c := changePattern.FindStringSubmatch(change)
	if c == nil || (c[1] == "" && c[2] == "") {
		return "", domain.NewValidationError("hgvs", "unsupported protein change", notation)
	}
	alt := c[1]
	if alt != "" && alt != "*" && alt != "=" {
		if alt, ok = residue(alt); !ok {
			return "", domain.NewValidationError("hgvs", "unknown alternate amino acid", notation)
		}
	}
	return "p." + ref + position + alt + strings.Replace(c[2], "Ter", "*", 1), nil
}

// IsProtein reports whether notation looks like a protein-level change rather
// than a genomic or coding one.
func IsProtein(notation string) bool {
	n := strings.TrimSpace(notation)
	return strings.HasPrefix(n, "p.") || strings.Contains(n, ":p.")
}

func residue(code string) (string, bool) {
	if len(code) == 1 {
		return code, strings.Contains(oneLetterCodes, code)
	}
	one, ok := aminoAcidCodes[code]
	return one, ok
}

// normalizeInserted converts the residues of an ins/delins tail.
func normalizeInserted(edit, notation string) (string, error) {
	for _, op := range []string{"delins", "ins"} {
		if !strings.HasPrefix(edit, op) {
			continue
		}
		seq := edit[len(op):]
		var out strings.Builder
		for len(seq) > 0 {
			n := 1
			if len(seq) >= 3 && seq[1] >= 'a' && seq[1] <= 'z' {
				n = 3
			}
			one, ok := residue(seq[:n])
			if !ok {
				return "", domain.NewValidationError("hgvs", "unknown inserted amino acid", notation)
			}
			out.WriteString(one)
			seq = seq[n:]
		}
		return op + out.String(), nil
	}
	return edit, nil
}
