package haplotype

import (
	"strings"

	"github.com/pgx-cds-server/internal/domain"
	"github.com/pgx-cds-server/internal/tables"
)

// Scorer derives numeric activity scores from diplotypes using the
// curated allele function tables.
type Scorer struct {
	tables *tables.Tables
}

// NewScorer creates a scorer over the loaded tables.
func NewScorer(t *tables.Tables) *Scorer {
	return &Scorer{tables: t}
}

// Score computes the additive activity score for a diplotype. Unknown
// alleles contribute 0.0 and are listed rather than silently absorbed.
// A CYP2D6 duplication allele (xN suffix) multiplies the base allele's
// score by the copy number; without explicit evidence two copies are
// assumed and recorded.
func (s *Scorer) Score(call *domain.DiplotypeCall, cnv *domain.CNVEvidence) domain.ActivityScore {
	result := domain.ActivityScore{
		Gene:    call.Gene,
		Alleles: []string{call.Allele1, call.Allele2},
		Method:  "additive",
	}

	if call.Gene == geneCYP2D6 && strings.Contains(call.Allele2, "xN") {
		base := call.Allele1
		baseScore, known := s.tables.AlleleScore(call.Gene, base)
		if !known {
			baseScore = 1.0
			result.UnknownAlleles = append(result.UnknownAlleles, base)
		}
		copies := 2
		if cnv != nil && cnv.CopyNumber != nil {
			copies = *cnv.CopyNumber
		} else {
			result.AssumedCopyNumber = copies
		}
		result.Score = baseScore * float64(copies)
		result.Method = "cnv_multiplied"
		return result
	}

	for _, allele := range result.Alleles {
		score, known := s.tables.AlleleScore(call.Gene, allele)
		if !known {
			result.UnknownAlleles = append(result.UnknownAlleles, allele)
			continue
		}
		result.Score += score
	}
	return result
}
