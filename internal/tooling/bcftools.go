package tooling

import (
	"context"
	"fmt"
	"os"
)

// BCFTools wraps bcftools for normalization and format conversion.
type BCFTools struct {
	runner *Runner
}

// NewBCFTools creates a bcftools wrapper.
func NewBCFTools(runner *Runner) *BCFTools {
	return &BCFTools{runner: runner}
}

// Normalize left-aligns indels and splits multi-allelic records against
// the reference FASTA, writing bgzf-compressed output to outPath.
func (b *BCFTools) Normalize(ctx context.Context, inPath, refFasta, outPath string) error {
	if _, err := os.Stat(refFasta); err != nil {
		return fmt.Errorf("reference fasta %s: %w", refFasta, err)
	}
	_, err := b.runner.Run(ctx, "bcftools",
		"norm",
		"--fasta-ref", refFasta,
		"--multiallelics", "-any",
		"--output-type", "z",
		"--output", outPath,
		inPath,
	)
	if err != nil {
		return fmt.Errorf("bcftools norm: %w", err)
	}
	return nil
}

// Slice writes the records overlapping region into a standalone bgzf
// VCF, preserving the header, for handoff to the star-allele caller.
func (b *BCFTools) Slice(ctx context.Context, inPath, region, outPath string) error {
	_, err := b.runner.Run(ctx, "bcftools",
		"view",
		"--regions", region,
		"--output-type", "z",
		"--output", outPath,
		inPath,
	)
	if err != nil {
		return fmt.Errorf("bcftools view region %s: %w", region, err)
	}
	return nil
}

// Compress rewrites a plain VCF as bgzf so it can be tabix-indexed.
func (b *BCFTools) Compress(ctx context.Context, inPath, outPath string) error {
	_, err := b.runner.Run(ctx, "bcftools",
		"view",
		"--output-type", "z",
		"--output", outPath,
		inPath,
	)
	if err != nil {
		return fmt.Errorf("bcftools view: %w", err)
	}
	return nil
}
