package tooling

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Tabix wraps tabix for indexing and region queries against a
// bgzf-compressed VCF.
type Tabix struct {
	runner *Runner
}

// NewTabix creates a tabix wrapper.
func NewTabix(runner *Runner) *Tabix {
	return &Tabix{runner: runner}
}

// Index builds a .tbi index for the given bgzf VCF. An existing index
// is reused; after building, the index file must actually exist.
func (t *Tabix) Index(ctx context.Context, vcfPath string) error {
	indexPath := vcfPath + ".tbi"
	if _, err := os.Stat(indexPath); err == nil {
		return nil
	}
	if _, err := t.runner.Run(ctx, "tabix", "--preset", "vcf", vcfPath); err != nil {
		return fmt.Errorf("tabix index: %w", err)
	}
	if _, err := os.Stat(indexPath); err != nil {
		return fmt.Errorf("tabix index: %s was not created", indexPath)
	}
	return nil
}

// Contigs lists the contig names present in the index. This lets a
// missing contig (region not queryable) be told apart from a queryable
// region that simply contains no variants.
func (t *Tabix) Contigs(ctx context.Context, vcfPath string) (map[string]bool, error) {
	out, err := t.runner.Run(ctx, "tabix", "--list-chroms", vcfPath)
	if err != nil {
		return nil, fmt.Errorf("tabix list chroms: %w", err)
	}
	contigs := make(map[string]bool)
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			contigs[line] = true
		}
	}
	return contigs, nil
}

// Fetch returns the raw data lines overlapping region (samtools-style
// "chrom:start-end"). An empty slice means the region is queryable but
// holds no variants.
func (t *Tabix) Fetch(ctx context.Context, vcfPath, region string) ([]string, error) {
	out, err := t.runner.Run(ctx, "tabix", vcfPath, region)
	if err != nil {
		return nil, fmt.Errorf("tabix fetch %s: %w", region, err)
	}
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
