package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pgx-cds-server/internal/domain"
)

// detectCYP2D6CNV scans the extracted CYP2D6 records for structural
// and copy-number signal (INFO SVTYPE and CN tags). Absence of any
// signal yields Available=false, which is distinct from a confirmed
// two-copy state.
func detectCYP2D6CNV(records []domain.VariantRecord, region domain.GeneRegion) domain.CNVEvidence {
	cnv := domain.CNVEvidence{Evidence: []string{}}

	for _, rec := range records {
		end := recordEnd(rec)

		if svtype, ok := rec.Info["SVTYPE"]; ok && (svtype == "DEL" || svtype == "DUP") {
			overlaps := !(end < region.Start || rec.Pos > region.End)
			if overlaps && svtype == "DEL" {
				cnv.DeletionDetected = true
				cnv.Evidence = append(cnv.Evidence,
					fmt.Sprintf("SVTYPE=DEL %s:%d-%d", rec.Chrom, rec.Pos, end))
			}
			if overlaps && svtype == "DUP" {
				cnv.DuplicationDetected = true
				cnv.Evidence = append(cnv.Evidence,
					fmt.Sprintf("SVTYPE=DUP %s:%d-%d", rec.Chrom, rec.Pos, end))
			}
		}

		if raw, ok := rec.Info["CN"]; ok {
			// CN may carry a per-allele list; keep the first unambiguous
			// value seen.
			first := raw
			if idx := strings.IndexByte(raw, ','); idx >= 0 {
				first = raw[:idx]
			}
			if cn, err := strconv.Atoi(strings.TrimSpace(first)); err == nil {
				if cnv.CopyNumber == nil {
					n := cn
					cnv.CopyNumber = &n
				}
				cnv.Evidence = append(cnv.Evidence,
					fmt.Sprintf("INFO/CN=%d at %s:%d", cn, rec.Chrom, rec.Pos))
			}
		}
	}

	if cnv.CopyNumber != nil {
		if *cnv.CopyNumber == 0 {
			cnv.DeletionDetected = true
		}
		if *cnv.CopyNumber > 2 {
			cnv.DuplicationDetected = true
		}
	}

	cnv.Available = len(cnv.Evidence) > 0
	return cnv
}

// recordEnd resolves the inclusive end coordinate, preferring an
// explicit INFO END over the reference allele span.
func recordEnd(rec domain.VariantRecord) int64 {
	if raw, ok := rec.Info["END"]; ok {
		if end, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return end
		}
	}
	return rec.Pos + int64(len(rec.Ref)) - 1
}
