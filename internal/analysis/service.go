// Package analysis orchestrates a full pharmacogenomic analysis
// request: drug resolution, file processing, per-gene diplotype
// calling, and guideline classification.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/pgx-cds-server/internal/domain"
	"github.com/pgx-cds-server/internal/drug"
	"github.com/pgx-cds-server/internal/haplotype"
	"github.com/pgx-cds-server/internal/pipeline"
	"github.com/pgx-cds-server/internal/rules"
	"github.com/pgx-cds-server/internal/tables"
)

// Classifier resolves one (gene, drug, phenotype) triple.
type Classifier interface {
	Classify(ctx context.Context, gene, drug, phenotype string) (domain.RiskAssessment, error)
}

// Service runs analysis requests end to end.
type Service struct {
	logger     *logrus.Logger
	cfg        domain.AnalysisConfig
	processor  *pipeline.Processor
	caller     *haplotype.Caller
	scorer     *haplotype.Scorer
	mapper     *haplotype.Mapper
	registry   *drug.Registry
	classifier Classifier
	tables     *tables.Tables

	// sem bounds concurrent gene analyses across all requests served
	// by this process, not per request.
	sem *semaphore.Weighted
}

// NewService wires the analysis service.
func NewService(
	logger *logrus.Logger,
	cfg domain.AnalysisConfig,
	processor *pipeline.Processor,
	caller *haplotype.Caller,
	scorer *haplotype.Scorer,
	mapper *haplotype.Mapper,
	registry *drug.Registry,
	classifier Classifier,
	t *tables.Tables,
) *Service {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Service{
		logger:     logger,
		cfg:        cfg,
		processor:  processor,
		caller:     caller,
		scorer:     scorer,
		mapper:     mapper,
		registry:   registry,
		classifier: classifier,
		tables:     t,
		sem:        semaphore.NewWeighted(maxConcurrent),
	}
}

// geneTask is the work unit for one gene: the drugs whose assessment
// depends on it.
type geneTask struct {
	gene  string
	drugs []string
}

// Analyze processes an uploaded VCF against the requested drugs.
// Unsupported drugs are skipped, not fatal. A caller failure aborts
// only the affected gene; the request fails outright only when no gene
// analysis succeeds at all.
func (s *Service) Analyze(ctx context.Context, upload io.Reader, filename string, requestedDrugs []string) (*domain.AnalysisResult, error) {
	if len(requestedDrugs) == 0 {
		return nil, fmt.Errorf("no drugs requested")
	}

	start := time.Now()
	skipped := []domain.SkippedDrug{}

	tasks, drugSkips := s.resolveDrugs(requestedDrugs)
	skipped = append(skipped, drugSkips...)
	if len(tasks) == 0 {
		return nil, domain.NewUnsupportedDrugError(
			fmt.Sprintf("none of %v", requestedDrugs), s.registry.SupportedDrugs())
	}

	processed, err := s.processor.Process(ctx, upload, filename)
	if err != nil {
		return nil, err
	}
	defer processed.Cleanup()

	analyses, geneSkips, err := s.analyzeGenes(ctx, processed, tasks)
	if err != nil {
		return nil, err
	}
	skipped = append(skipped, geneSkips...)

	result := &domain.AnalysisResult{
		AnalysisID: uuid.NewString(),
		Filename:   filename,
		Validation: processed.Validation,
		Genes:      analyses,
		Skipped:    skipped,
		Summary:    s.summarize(analyses, processed, time.Since(start)),
		CreatedAt:  time.Now().UTC(),
	}

	s.logger.WithFields(logrus.Fields{
		"analysis_id": result.AnalysisID,
		"genes":       len(analyses),
		"skipped":     len(skipped),
		"elapsed":     time.Since(start).String(),
	}).Info("Analysis complete")
	return result, nil
}

// resolveDrugs maps requested drugs onto gene tasks. A drug whose
// genes all lack region support is skipped with UNSUPPORTED_GENE.
func (s *Service) resolveDrugs(requested []string) ([]geneTask, []domain.SkippedDrug) {
	byGene := make(map[string][]string)
	var skipped []domain.SkippedDrug

	for _, name := range requested {
		entry, err := s.registry.Resolve(name)
		if err != nil {
			var pe *domain.PipelineError
			if !errors.As(err, &pe) {
				pe = domain.NewUnsupportedDrugError(name, s.registry.SupportedDrugs())
			}
			skipped = append(skipped, domain.SkippedDrug{
				Drug:    name,
				Reason:  pe.Code,
				Message: pe.Message,
				Action:  pe.Action,
			})
			continue
		}

		supported := false
		for _, gene := range entry.Genes {
			if _, ok := s.tables.Region(gene); !ok {
				continue
			}
			supported = true
			if !contains(byGene[gene], entry.Name) {
				byGene[gene] = append(byGene[gene], entry.Name)
			}
		}
		if !supported {
			pe := domain.NewUnsupportedGeneError(entry.PrimaryGene())
			skipped = append(skipped, domain.SkippedDrug{
				Drug:    name,
				Reason:  pe.Code,
				Message: pe.Message,
				Action:  pe.Action,
			})
		}
	}

	genes := make([]string, 0, len(byGene))
	for gene := range byGene {
		genes = append(genes, gene)
	}
	sort.Strings(genes)

	tasks := make([]geneTask, 0, len(genes))
	for _, gene := range genes {
		tasks = append(tasks, geneTask{gene: gene, drugs: byGene[gene]})
	}
	return tasks, skipped
}

// analyzeGenes fans the gene tasks out under the concurrency cap.
// Per-gene failures are isolated; an error returns only when every
// gene failed.
func (s *Service) analyzeGenes(ctx context.Context, processed *pipeline.Result, tasks []geneTask) ([]domain.GeneAnalysis, []domain.SkippedDrug, error) {
	type geneOutcome struct {
		analysis *domain.GeneAnalysis
		err      error
	}
	outcomes := make([]geneOutcome, len(tasks))

	var wg sync.WaitGroup
	var acquireErr error
	for i, task := range tasks {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}
		wg.Add(1)
		go func(i int, task geneTask) {
			defer wg.Done()
			defer s.sem.Release(1)
			analysis, err := s.analyzeGene(ctx, processed, task)
			outcomes[i] = geneOutcome{analysis: analysis, err: err}
		}(i, task)
	}
	// Launched goroutines read from the request workdir; it must not be
	// cleaned up out from under them even when acquisition is cancelled.
	wg.Wait()
	if acquireErr != nil {
		return nil, nil, acquireErr
	}

	var analyses []domain.GeneAnalysis
	var skipped []domain.SkippedDrug
	var firstErr error

	for i, outcome := range outcomes {
		if outcome.err != nil {
			if firstErr == nil {
				firstErr = outcome.err
			}
			s.logger.WithError(outcome.err).WithField("gene", tasks[i].gene).
				Warn("Gene analysis failed")
			for _, d := range tasks[i].drugs {
				reason := domain.ReasonOf(outcome.err)
				if reason == "" {
					reason = domain.ReasonCallerFailure
				}
				skipped = append(skipped, domain.SkippedDrug{
					Drug:    d,
					Reason:  reason,
					Message: outcome.err.Error(),
					Action:  "Gene-level analysis failed; no result was produced for this drug.",
				})
			}
			continue
		}
		analyses = append(analyses, *outcome.analysis)
	}

	if len(analyses) == 0 && firstErr != nil {
		return nil, nil, firstErr
	}
	return analyses, skipped, nil
}

func (s *Service) analyzeGene(ctx context.Context, processed *pipeline.Result, task geneTask) (*domain.GeneAnalysis, error) {
	start := time.Now()

	var cnv *domain.CNVEvidence
	if task.gene == "CYP2D6" {
		cnv = &processed.CYP2D6CNV
	}

	call, err := s.caller.CallDiplotype(ctx, task.gene, processed.GeneVCFs[task.gene], cnv)
	if err != nil {
		return nil, err
	}
	if task.gene == "CYP2D6" && !processed.CYP2D6CNV.Available {
		warn := domain.NewCNVUnavailableError(task.gene)
		call.Metadata["cnv_available"] = "false"
		call.Metadata["cnv_warning"] = warn.Message
		s.logger.WithField("gene", task.gene).Warn(warn.Message)
	}

	score := s.scorer.Score(call, cnv)
	phenotype := s.mapper.Phenotype(task.gene, call.Diplotype, score.Score)
	alleles := haplotype.StarAlleles(call)

	var drugResults []domain.GeneDrugResult
	var assessments []domain.RiskAssessment
	for _, d := range task.drugs {
		assessment, err := s.classifier.Classify(ctx, task.gene, d, phenotype)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, assessment)
		drugResults = append(drugResults, domain.GeneDrugResult{
			Gene:          task.gene,
			Drug:          d,
			Diplotype:     call.Diplotype,
			Phenotype:     phenotype,
			ActivityScore: score,
			StarAlleles:   alleles,
			Variants:      processed.GeneVariants[task.gene],
			Assessment:    assessment,
			Confidence:    call.Confidence,
		})
	}

	return &domain.GeneAnalysis{
		Gene:             task.gene,
		Diplotype:        call.Diplotype,
		Phenotype:        phenotype,
		ActivityScore:    score,
		StarAlleles:      alleles,
		OverallRisk:      rules.AggregateRisk(assessments),
		DrugResults:      drugResults,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

func (s *Service) summarize(analyses []domain.GeneAnalysis, processed *pipeline.Result, elapsed time.Duration) domain.AnalysisSummary {
	dist := make(map[domain.RiskCategory]int)
	var highRisk []string
	for _, a := range analyses {
		dist[a.OverallRisk]++
		if a.OverallRisk == domain.RiskToxic || a.OverallRisk == domain.RiskIneffective {
			highRisk = append(highRisk, a.Gene)
		}
	}
	return domain.AnalysisSummary{
		TotalGenes:        len(analyses),
		RiskDistribution:  dist,
		HighRiskGenes:     highRisk,
		VariantCount:      processed.Validation.VariantCount,
		GenomeBuild:       processed.Validation.GenomeBuild,
		QualityScore:      processed.Validation.QualityScore,
		ProcessingSeconds: elapsed.Seconds(),
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
