package haplotype

import (
	"fmt"
	"strconv"

	"github.com/pgx-cds-server/internal/domain"
)

const geneCYP2D6 = "CYP2D6"

// defaultDuplicationCopies is assumed when duplication is detected with
// no explicit copy number.
const defaultDuplicationCopies = 3

// adjustForCNV rewrites a CYP2D6 diplotype against copy-number
// evidence. Without evidence the call passes through untouched; the
// unavailable state is surfaced later during phenotype assignment.
func adjustForCNV(call *domain.DiplotypeCall, cnv *domain.CNVEvidence) *domain.DiplotypeCall {
	if !cnv.Available {
		return call
	}

	if cnv.DeletionDetected {
		adjusted := &domain.DiplotypeCall{
			Gene:       call.Gene,
			Diplotype:  "*5/*5",
			Allele1:    "*5",
			Allele2:    "*5",
			Confidence: call.Confidence,
			Metadata:   copyMetadata(call.Metadata),
		}
		adjusted.Metadata["cnv_adjusted"] = "deletion"
		return adjusted
	}

	if cnv.DuplicationDetected {
		copies := defaultDuplicationCopies
		if cnv.CopyNumber != nil {
			copies = *cnv.CopyNumber
		}
		base := call.Allele1
		if base == "*5" {
			base = call.Allele2
		}
		if base == "*5" {
			base = "*1"
		}
		dup := base + "xN"
		adjusted := &domain.DiplotypeCall{
			Gene:       call.Gene,
			Diplotype:  fmt.Sprintf("%s/%s", base, dup),
			Allele1:    base,
			Allele2:    dup,
			Confidence: call.Confidence,
			Metadata:   copyMetadata(call.Metadata),
		}
		adjusted.Metadata["cnv_adjusted"] = "duplication_" + strconv.Itoa(copies)
		return adjusted
	}

	return call
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
