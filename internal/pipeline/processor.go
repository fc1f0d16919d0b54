// Package pipeline harmonizes an uploaded VCF into per-gene variant
// sets: intake, strict validation, liftover, normalization, indexing,
// region extraction, and CYP2D6 copy-number scanning.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pgx-cds-server/internal/domain"
	"github.com/pgx-cds-server/internal/tables"
	"github.com/pgx-cds-server/internal/tooling"
	"github.com/pgx-cds-server/internal/vcf"
)

// Processor runs the file-level half of an analysis request.
type Processor struct {
	logger    *logrus.Logger
	cfg       domain.PipelineConfig
	validator *vcf.HeaderValidator
	runner    *tooling.Runner
	bcftools  *tooling.BCFTools
	tabix     *tooling.Tabix
	crossmap  *tooling.CrossMap
	tables    *tables.Tables
}

// NewProcessor wires a processor from its collaborators.
func NewProcessor(logger *logrus.Logger, cfg domain.PipelineConfig, runner *tooling.Runner, t *tables.Tables) *Processor {
	return &Processor{
		logger:    logger,
		cfg:       cfg,
		validator: vcf.NewHeaderValidator(),
		runner:    runner,
		bcftools:  tooling.NewBCFTools(runner),
		tabix:     tooling.NewTabix(runner),
		crossmap:  tooling.NewCrossMap(runner, cfg.LiftoverChain),
		tables:    t,
	}
}

// Result is the processed, harmonized view of one uploaded file.
// All coordinates are GRCh38. GeneVCFs holds per-gene bgzf slices for
// the star-allele caller.
type Result struct {
	Validation     domain.ValidationResult
	Quality        domain.QualityReport
	NormalizedPath string
	Workdir        string
	GeneVariants   map[string][]domain.VariantRecord
	GeneVCFs       map[string]string
	CYP2D6CNV      domain.CNVEvidence
	Elapsed        time.Duration

	// retain keeps the working directory after the request completes,
	// for debugging failed caller runs.
	retain bool
}

// Cleanup removes the per-request working directory and everything in
// it, unless retention is configured. Safe to call multiple times.
func (r *Result) Cleanup() {
	if r.retain || r.Workdir == "" {
		return
	}
	os.RemoveAll(r.Workdir)
}

// Process runs the full file pipeline on an uploaded stream. On error
// the working directory is already removed.
func (p *Processor) Process(ctx context.Context, upload io.Reader, filename string) (result *Result, err error) {
	workdir, err := p.newWorkdir()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(workdir)
		}
	}()

	start := time.Now()

	uploadPath, err := p.saveUpload(workdir, upload, filename)
	if err != nil {
		return nil, err
	}

	validation, err := p.validator.Validate(uploadPath)
	if err != nil {
		return nil, err
	}

	if err := p.requireTooling(validation.GenomeBuild); err != nil {
		return nil, err
	}

	workPath := uploadPath
	if validation.GenomeBuild == domain.GRCh37 {
		lifted := filepath.Join(workdir, "lifted.grch38.vcf")
		if err := p.crossmap.Lift(ctx, uploadPath, p.cfg.ReferenceFasta, lifted); err != nil {
			return nil, domain.NewFormatValidationError("liftover to GRCh38 failed").WithCause(err)
		}
		workPath = lifted
		validation.GenomeBuild = domain.GRCh38
		validation.Warnings = append(validation.Warnings,
			"Input was GRCh37; coordinates were lifted to GRCh38.")
	}

	normalized := filepath.Join(workdir, "normalized.vcf.gz")
	if _, statErr := os.Stat(p.cfg.ReferenceFasta); statErr == nil {
		if err := p.bcftools.Normalize(ctx, workPath, p.cfg.ReferenceFasta, normalized); err != nil {
			return nil, domain.NewFormatValidationError("normalization failed").WithCause(err)
		}
	} else {
		// Without a reference FASTA indels cannot be left-aligned;
		// convert to bgzf so indexing still works.
		p.logger.WithField("reference", p.cfg.ReferenceFasta).
			Warn("Reference FASTA not found, skipping left-alignment")
		if err := p.bcftools.Compress(ctx, workPath, normalized); err != nil {
			return nil, domain.NewFormatValidationError("compression failed").WithCause(err)
		}
		validation.Warnings = append(validation.Warnings,
			"Reference FASTA unavailable; indel left-alignment was skipped.")
	}

	if err := p.tabix.Index(ctx, normalized); err != nil {
		return nil, domain.NewFormatValidationError("tabix indexing failed").WithCause(err)
	}

	quality, err := vcf.AssessQuality(normalized)
	if err != nil {
		return nil, err
	}
	validation.VariantCount = quality.VariantCount
	validation.QualityScore = quality.QualityScore

	geneVariants, geneVCFs, err := p.extractGeneRegions(ctx, normalized, workdir)
	if err != nil {
		return nil, err
	}

	cnv := detectCYP2D6CNV(geneVariants["CYP2D6"], mustRegion(p.tables, "CYP2D6"))

	return &Result{
		Validation:     *validation,
		Quality:        *quality,
		NormalizedPath: normalized,
		Workdir:        workdir,
		GeneVariants:   geneVariants,
		GeneVCFs:       geneVCFs,
		CYP2D6CNV:      cnv,
		Elapsed:        time.Since(start),
		retain:         p.cfg.RetainNormalized,
	}, nil
}

func (p *Processor) newWorkdir() (string, error) {
	base := p.cfg.TempDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	workdir := filepath.Join(base, "pgx-"+uuid.NewString())
	if err := os.Mkdir(workdir, 0700); err != nil {
		return "", fmt.Errorf("create workdir: %w", err)
	}
	return workdir, nil
}

func (p *Processor) saveUpload(workdir string, upload io.Reader, filename string) (string, error) {
	if !strings.HasSuffix(filename, ".vcf") && !strings.HasSuffix(filename, ".vcf.gz") {
		return "", domain.NewFormatValidationError(
			"invalid file extension, only .vcf and .vcf.gz are accepted")
	}

	safeName := strings.NewReplacer("/", "_", "\\", "_").Replace(filepath.Base(filename))
	target := filepath.Join(workdir, "upload_"+safeName)

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	maxBytes := int64(p.cfg.MaxFileSizeMB) * 1024 * 1024
	if maxBytes <= 0 {
		maxBytes = 100 * 1024 * 1024
	}
	n, err := io.Copy(f, io.LimitReader(upload, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if n > maxBytes {
		return "", domain.NewFormatValidationError(
			fmt.Sprintf("file exceeds %dMB limit", p.cfg.MaxFileSizeMB))
	}
	return target, nil
}

func (p *Processor) requireTooling(build domain.GenomeBuild) error {
	required := []string{"bcftools", "tabix"}
	if build == domain.GRCh37 {
		required = append(required, "crossmap")
		if p.cfg.LiftoverChain == "" {
			return domain.NewToolingUnavailableError(
				"GRCh37 input detected but no liftover chain file is configured")
		}
		if _, err := os.Stat(p.cfg.LiftoverChain); err != nil {
			return domain.NewToolingUnavailableError(
				fmt.Sprintf("liftover chain file not found: %s", p.cfg.LiftoverChain))
		}
		// crossmap vcf takes the reference FASTA as a positional
		// argument, so liftover cannot run without it.
		if p.cfg.ReferenceFasta == "" {
			return domain.NewToolingUnavailableError(
				"GRCh37 input detected but no reference FASTA is configured for liftover")
		}
		if _, err := os.Stat(p.cfg.ReferenceFasta); err != nil {
			return domain.NewToolingUnavailableError(
				fmt.Sprintf("reference FASTA not found: %s", p.cfg.ReferenceFasta))
		}
	}
	return p.runner.Require(required...)
}

// extractGeneRegions fetches every supported gene window. A missing
// contig makes the whole file unusable and fails the request; an empty
// but queryable window is a legitimate wild-type-consistent state.
func (p *Processor) extractGeneRegions(ctx context.Context, normalized, workdir string) (map[string][]domain.VariantRecord, map[string]string, error) {
	contigs, err := p.tabix.Contigs(ctx, normalized)
	if err != nil {
		return nil, nil, domain.NewFormatValidationError("unable to list indexed contigs").WithCause(err)
	}

	geneVariants := make(map[string][]domain.VariantRecord)
	geneVCFs := make(map[string]string)

	for _, region := range p.tables.Regions() {
		contig, ok := resolveContig(contigs, region.Chrom)
		if !ok {
			return nil, nil, domain.NewRegionCoverageError(region.Gene,
				fmt.Sprintf("Contig %q (or %q) is absent from the index.", region.Chrom, "chr"+region.Chrom))
		}

		regionStr := region.Region(contig)
		lines, err := p.tabix.Fetch(ctx, normalized, regionStr)
		if err != nil {
			return nil, nil, domain.NewRegionCoverageError(region.Gene, err.Error()).WithCause(err)
		}

		records := make([]domain.VariantRecord, 0, len(lines))
		for _, line := range lines {
			rec, err := vcf.ParseLine(line)
			if err != nil {
				return nil, nil, domain.NewFormatValidationError(
					fmt.Sprintf("malformed record in %s region: %v", region.Gene, err)).WithCause(err)
			}
			records = append(records, *rec)
		}
		if len(records) == 0 {
			p.logger.WithField("gene", region.Gene).
				Warn("No variants in gene region; consistent with wild type but may indicate low coverage")
		}
		geneVariants[region.Gene] = records

		slicePath := filepath.Join(workdir, strings.ToLower(region.Gene)+".vcf.gz")
		if err := p.bcftools.Slice(ctx, normalized, regionStr, slicePath); err != nil {
			return nil, nil, domain.NewRegionCoverageError(region.Gene, err.Error()).WithCause(err)
		}
		geneVCFs[region.Gene] = slicePath
	}

	return geneVariants, geneVCFs, nil
}

// resolveContig matches a region chromosome against the file's contig
// naming, with and without the chr prefix.
func resolveContig(contigs map[string]bool, chrom string) (string, bool) {
	if contigs[chrom] {
		return chrom, true
	}
	if contigs["chr"+chrom] {
		return "chr" + chrom, true
	}
	return "", false
}

func mustRegion(t *tables.Tables, gene string) domain.GeneRegion {
	r, _ := t.Region(gene)
	return r
}
