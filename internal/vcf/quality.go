package vcf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"strings"

	"github.com/pgx-cds-server/internal/domain"
)

// highQualityThreshold is the QUAL value at or above which a record
// counts as high quality.
const highQualityThreshold = 30.0

// AssessQuality streams the normalized VCF at path and computes the
// composite quality score. A file with zero data records after
// normalization is treated as a format failure rather than a clean
// empty result.
func AssessQuality(path string) (*domain.QualityReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open normalized vcf: %w", err)
	}
	defer f.Close()

	var scanner *bufio.Scanner
	magic := make([]byte, 2)
	if n, _ := f.Read(magic); n == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		if _, err := f.Seek(0, 0); err != nil {
			return nil, fmt.Errorf("seek normalized vcf: %w", err)
		}
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("read normalized vcf: %w", err)
		}
		defer gz.Close()
		scanner = bufio.NewScanner(gz)
	} else {
		if _, err := f.Seek(0, 0); err != nil {
			return nil, fmt.Errorf("seek normalized vcf: %w", err)
		}
		scanner = bufio.NewScanner(f)
	}
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var total, highQual, nonPass, multi int
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := ParseLine(line)
		if err != nil {
			return nil, domain.NewFormatValidationError(
				fmt.Sprintf("malformed record in normalized output: %v", err)).WithCause(err)
		}
		total++
		if rec.Qual != nil && *rec.Qual >= highQualityThreshold {
			highQual++
		}
		if !PassesFilter(rec) {
			nonPass++
		}
		if IsMultiAllelic(rec) {
			multi++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan normalized vcf: %w", err)
	}

	if total == 0 {
		return nil, domain.NewFormatValidationError("no variant records remain after normalization")
	}

	report := &domain.QualityReport{
		VariantCount:      total,
		HighQualityRatio:  float64(highQual) / float64(total),
		NonPassRatio:      float64(nonPass) / float64(total),
		MultiallelicRatio: float64(multi) / float64(total),
	}
	report.QualityScore = qualityScore(report)
	return report, nil
}

// qualityScore blends three ratios into a 0-100 score. High-quality
// fraction carries 60 points, PASS fraction 25, bi-allelic fraction 15.
func qualityScore(r *domain.QualityReport) float64 {
	score := r.HighQualityRatio*60 + (1-r.NonPassRatio)*25 + (1-r.MultiallelicRatio)*15
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
