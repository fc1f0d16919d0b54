// Package vcf provides VCF header validation, record parsing, and
// quality assessment for pharmacogenomic input files.
package vcf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pgx-cds-server/internal/domain"
)

// maxHeaderLines bounds the header scan so a malformed file without a
// #CHROM line cannot force a full read.
const maxHeaderLines = 5000

var fileformatRe = regexp.MustCompile(`^##fileformat=(VCFv4\.[12])\s*$`)

// HeaderValidator checks VCF structural validity before any external
// tool touches the file.
type HeaderValidator struct{}

// NewHeaderValidator creates a header validator.
func NewHeaderValidator() *HeaderValidator {
	return &HeaderValidator{}
}

// Validate scans the header of the file at path and returns the file
// format and detected genome build. Plain and gzip-compressed files are
// both accepted; compression is detected from magic bytes, not the
// extension.
func (v *HeaderValidator) Validate(path string) (*domain.ValidationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.NewFormatValidationError(fmt.Sprintf("cannot open file: %v", err)).WithCause(err)
	}
	defer f.Close()

	magic := make([]byte, 2)
	n, err := f.Read(magic)
	if err != nil || n < 2 {
		return nil, domain.NewFormatValidationError("file is empty or truncated")
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("seek vcf file: %w", err)
	}

	var scanner *bufio.Scanner
	if magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, domain.NewFormatValidationError("gzip-compressed file is corrupt").WithCause(err)
		}
		defer gz.Close()
		scanner = bufio.NewScanner(gz)
	} else {
		scanner = bufio.NewScanner(f)
	}
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	result, err := v.scanHeader(scanner)
	if err != nil {
		return nil, err
	}

	if fi, err := f.Stat(); err == nil {
		result.FileSizeMB = float64(fi.Size()) / (1024 * 1024)
	}
	return result, nil
}

func (v *HeaderValidator) scanHeader(scanner *bufio.Scanner) (*domain.ValidationResult, error) {
	result := &domain.ValidationResult{}

	lineNo := 0
	sawColumnHeader := false

	for scanner.Scan() {
		lineNo++
		if lineNo > maxHeaderLines {
			break
		}
		line := scanner.Text()

		if lineNo == 1 {
			m := fileformatRe.FindStringSubmatch(line)
			if m == nil {
				return nil, domain.NewFormatValidationError(
					"first line must be ##fileformat=VCFv4.1 or VCFv4.2")
			}
			result.FileFormat = m[1]
			continue
		}

		if strings.HasPrefix(line, "##") {
			if b, ok := parseReferenceLine(line); ok {
				result.GenomeBuild = b
			}
			continue
		}
		if strings.HasPrefix(line, "#CHROM") {
			if err := validateColumnHeader(line); err != nil {
				return nil, err
			}
			sawColumnHeader = true
			break
		}
		// A data line before #CHROM is structurally invalid.
		return nil, domain.NewFormatValidationError(
			fmt.Sprintf("line %d: data before #CHROM column header", lineNo))
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.NewFormatValidationError("error reading header").WithCause(err)
	}

	if !sawColumnHeader {
		return nil, domain.NewFormatValidationError(
			fmt.Sprintf("no #CHROM column header within first %d lines", maxHeaderLines))
	}
	if result.GenomeBuild == "" {
		return nil, domain.NewFormatValidationError(
			"no ##reference line naming a recognized genome build (GRCh37/hg19 or GRCh38/hg38)")
	}

	result.IsValid = true
	return result, nil
}

// parseReferenceLine resolves a ##reference metadata line to a genome
// build. Matching is substring-based because reference values in the
// wild range from bare assembly names to full FASTA URLs.
func parseReferenceLine(line string) (domain.GenomeBuild, bool) {
	if !strings.HasPrefix(line, "##reference=") {
		return "", false
	}
	value := strings.ToLower(strings.TrimPrefix(line, "##reference="))
	switch {
	case strings.Contains(value, "grch38"), strings.Contains(value, "hg38"):
		return domain.GRCh38, true
	case strings.Contains(value, "grch37"), strings.Contains(value, "hg19"):
		return domain.GRCh37, true
	}
	return "", true
}

var requiredColumns = []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}

func validateColumnHeader(line string) error {
	fields := strings.Split(line, "\t")
	if len(fields) < len(requiredColumns) {
		return domain.NewFormatValidationError(
			fmt.Sprintf("#CHROM header has %d columns, need at least %d", len(fields), len(requiredColumns)))
	}
	for i, want := range requiredColumns {
		if fields[i] != want {
			return domain.NewFormatValidationError(
				fmt.Sprintf("#CHROM header column %d is %q, expected %q", i+1, fields[i], want))
		}
	}
	return nil
}
