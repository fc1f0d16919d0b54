package domain

import (
	"fmt"
	"time"
)

// Core Enums and Types

// GenomeBuild identifies the reference genome coordinate system of a VCF.
type GenomeBuild string

const (
	GRCh38 GenomeBuild = "GRCh38"
	GRCh37 GenomeBuild = "GRCh37"
)

// RiskCategory represents the clinical risk classification for a drug-gene pair.
type RiskCategory string

const (
	RiskSafe        RiskCategory = "safe"
	RiskAdjust      RiskCategory = "adjust"
	RiskToxic       RiskCategory = "toxic"
	RiskIneffective RiskCategory = "ineffective"
	RiskUnknown     RiskCategory = "unknown"
)

// Severity represents the clinical severity attached to a risk classification.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// EvidenceLevel represents the CPIC guideline evidence level for a rule.
type EvidenceLevel string

const (
	EvidenceLevelA EvidenceLevel = "A"
	EvidenceLevelB EvidenceLevel = "B"
)

// Zygosity of a called star allele.
type Zygosity string

const (
	Homozygous   Zygosity = "homozygous"
	Heterozygous Zygosity = "heterozygous"
)

// Pipeline Value Objects

// GeneRegion is a fixed pharmacogene coordinate window in GRCh38.
// Chrom carries no "chr" prefix; Start/End are 1-based inclusive.
type GeneRegion struct {
	Gene  string `json:"gene"`
	Chrom string `json:"chrom"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

// Region returns the samtools-style region string for this window.
func (r GeneRegion) Region(chrom string) string {
	return fmt.Sprintf("%s:%d-%d", chrom, r.Start, r.End)
}

// GeneInfo carries the gene/star-allele annotation tags surfaced by
// upstream annotation, when present in the INFO column.
type GeneInfo struct {
	Gene string `json:"gene,omitempty"`
	Star string `json:"star,omitempty"`
}

// VariantRecord is a called variant extracted from a gene region.
// Positions are always GRCh38 after harmonization.
type VariantRecord struct {
	RSID     string            `json:"rsid,omitempty"`
	Chrom    string            `json:"chrom"`
	Pos      int64             `json:"pos"`
	Ref      string            `json:"ref"`
	Alts     []string          `json:"alt"`
	Qual     *float64          `json:"qual,omitempty"`
	Filters  []string          `json:"filter"`
	Info     map[string]string `json:"info"`
	GeneInfo GeneInfo          `json:"gene_info"`
}

// CNVEvidence is copy-number signal observed inside a gene window.
// Available is false when no structural/CN tag was seen at all; that is a
// legitimate state distinct from a confirmed normal copy number.
type CNVEvidence struct {
	Available           bool     `json:"available"`
	DeletionDetected    bool     `json:"deletion_detected"`
	DuplicationDetected bool     `json:"duplication_detected"`
	CopyNumber          *int     `json:"copy_number,omitempty"`
	Evidence            []string `json:"evidence"`
}

// DiplotypeCall is the resolved pair of star alleles for one gene.
type DiplotypeCall struct {
	Gene       string            `json:"gene"`
	Diplotype  string            `json:"diplotype"`
	Allele1    string            `json:"allele1"`
	Allele2    string            `json:"allele2"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// StarAllele is one of the two called alleles with its zygosity, as
// surfaced to the downstream consumer.
type StarAllele struct {
	Gene       string   `json:"gene"`
	Allele     string   `json:"allele"`
	Zygosity   Zygosity `json:"zygosity"`
	Confidence float64  `json:"confidence"`
}

// ActivityScore is the numeric function score derived from a diplotype.
type ActivityScore struct {
	Gene    string   `json:"gene"`
	Score   float64  `json:"score"`
	Alleles []string `json:"alleles_considered"`
	// UnknownAlleles lists alleles absent from the function table; they
	// contribute 0.0 by convention and the absence is made visible here.
	UnknownAlleles []string `json:"unknown_alleles,omitempty"`
	// AssumedCopyNumber is set when a duplication score was computed
	// without an explicit copy number from CNV evidence.
	AssumedCopyNumber int    `json:"assumed_copy_number,omitempty"`
	Method            string `json:"calculation_method"`
}

// RiskAssessment is the resolved guideline classification for one
// (gene, drug, phenotype) triple.
type RiskAssessment struct {
	Drug             string        `json:"drug"`
	Gene             string        `json:"gene"`
	RiskCategory     RiskCategory  `json:"risk_category"`
	Severity         Severity      `json:"severity"`
	EvidenceLevel    EvidenceLevel `json:"evidence_level"`
	Recommendation   string        `json:"recommendation"`
	Action           string        `json:"action"`
	Contraindication bool          `json:"contraindication"`
	Citations        []string      `json:"citations"`
}

// QualityReport holds conservative file-quality metrics. These are never
// used to alter genotype calls.
type QualityReport struct {
	VariantCount      int     `json:"variant_count"`
	HighQualityRatio  float64 `json:"high_quality_ratio"`
	NonPassRatio      float64 `json:"non_pass_filter_ratio"`
	MultiallelicRatio float64 `json:"multiallelic_ratio"`
	QualityScore      float64 `json:"quality_score"`
}

// ValidationResult is the outcome of file-level validation, produced once
// per uploaded file.
type ValidationResult struct {
	IsValid      bool        `json:"is_valid"`
	Warnings     []string    `json:"warnings"`
	GenomeBuild  GenomeBuild `json:"genome_build"`
	FileFormat   string      `json:"file_format"`
	VariantCount int         `json:"variant_count"`
	QualityScore float64     `json:"quality_score"`
	FileSizeMB   float64     `json:"file_size_mb"`
}

// Downstream Contract

// GeneDrugResult is the complete per-(gene, drug) contract consumed by
// the explanation/response layers.
type GeneDrugResult struct {
	Gene          string          `json:"gene"`
	Drug          string          `json:"drug"`
	Diplotype     string          `json:"diplotype"`
	Phenotype     string          `json:"phenotype"`
	ActivityScore ActivityScore   `json:"activity_score"`
	StarAlleles   []StarAllele    `json:"star_alleles"`
	Variants      []VariantRecord `json:"variants"`
	Assessment    RiskAssessment  `json:"assessment"`
	Confidence    float64         `json:"confidence"`
}

// GeneAnalysis groups all drug results for a single analyzed gene.
type GeneAnalysis struct {
	Gene             string           `json:"gene"`
	Diplotype        string           `json:"diplotype"`
	Phenotype        string           `json:"phenotype"`
	ActivityScore    ActivityScore    `json:"activity_score"`
	StarAlleles      []StarAllele     `json:"star_alleles"`
	OverallRisk      RiskCategory     `json:"overall_risk"`
	DrugResults      []GeneDrugResult `json:"drug_results"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
}

// SkippedDrug records a requested drug that could not be analyzed, with
// the machine-readable reason.
type SkippedDrug struct {
	Drug    string `json:"drug"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// AnalysisSummary holds per-request aggregate statistics.
type AnalysisSummary struct {
	TotalGenes        int                  `json:"total_genes"`
	RiskDistribution  map[RiskCategory]int `json:"risk_distribution"`
	HighRiskGenes     []string             `json:"high_risk_genes"`
	VariantCount      int                  `json:"variant_count"`
	GenomeBuild       GenomeBuild          `json:"genome_build"`
	QualityScore      float64              `json:"quality_score"`
	ProcessingSeconds float64              `json:"processing_time_seconds"`
}

// AnalysisResult is the full outcome of one analysis request.
type AnalysisResult struct {
	AnalysisID string           `json:"analysis_id"`
	Filename   string           `json:"filename"`
	Validation ValidationResult `json:"validation"`
	Genes      []GeneAnalysis   `json:"gene_analyses"`
	Skipped    []SkippedDrug    `json:"skipped_drugs,omitempty"`
	Summary    AnalysisSummary  `json:"summary"`
	CreatedAt  time.Time        `json:"created_at"`
}
