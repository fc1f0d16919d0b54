package vcf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pgx-cds-server/internal/domain"
)

// ParseLine parses a single tab-delimited VCF data line into a
// VariantRecord. Lines are expected to already be normalized, so no
// allele trimming happens here.
func ParseLine(line string) (*domain.VariantRecord, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, fmt.Errorf("expected at least 8 fields, got %d", len(fields))
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid POS %q: %w", fields[1], err)
	}

	rec := &domain.VariantRecord{
		Chrom: strings.TrimPrefix(fields[0], "chr"),
		Pos:   pos,
		Ref:   fields[3],
	}

	if fields[2] != "." {
		rec.RSID = fields[2]
	}
	if fields[4] != "." {
		rec.Alts = strings.Split(fields[4], ",")
	}
	if fields[5] != "." {
		q, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid QUAL %q: %w", fields[5], err)
		}
		rec.Qual = &q
	}
	if fields[6] != "." && fields[6] != "" {
		rec.Filters = strings.Split(fields[6], ";")
	}
	rec.Info = parseInfo(fields[7])

	if g, ok := rec.Info["GENE"]; ok {
		rec.GeneInfo.Gene = g
	}
	if s, ok := rec.Info["STAR"]; ok {
		rec.GeneInfo.Star = s
	}

	return rec, nil
}

func parseInfo(s string) map[string]string {
	info := make(map[string]string)
	if s == "." || s == "" {
		return info
	}
	for _, kv := range strings.Split(s, ";") {
		if kv == "" {
			continue
		}
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			info[kv[:idx]] = kv[idx+1:]
		} else {
			// Flag entries store an empty value.
			info[kv] = ""
		}
	}
	return info
}

// PassesFilter reports whether the record's FILTER column is PASS or
// unset. Records carrying any other filter count against quality.
func PassesFilter(rec *domain.VariantRecord) bool {
	if len(rec.Filters) == 0 {
		return true
	}
	return len(rec.Filters) == 1 && rec.Filters[0] == "PASS"
}

// IsMultiAllelic reports whether the record carries more than one ALT
// allele. Normalization should split these; survivors count against
// quality.
func IsMultiAllelic(rec *domain.VariantRecord) bool {
	return len(rec.Alts) > 1
}
