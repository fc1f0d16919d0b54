// Package haplotype turns external caller output into diplotype calls,
// applies copy-number adjustment, and derives activity scores and
// phenotypes from the curated tables.
package haplotype

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pgx-cds-server/internal/domain"
)

// defaultConfidence replaces missing or out-of-range caller confidence
// values. The substitution is recorded in call metadata.
const defaultConfidence = 0.95

// AlleleCaller produces raw caller output for one gene's VCF slice.
type AlleleCaller interface {
	Call(ctx context.Context, gene, vcfPath string) ([]byte, error)
}

// Caller resolves diplotypes through the external star-allele caller.
// Caller failures propagate as CALLER_FAILURE; no genotype is ever
// substituted.
type Caller struct {
	backend AlleleCaller
	logger  *logrus.Logger
}

// NewCaller creates a diplotype caller over the given backend.
func NewCaller(backend AlleleCaller, logger *logrus.Logger) *Caller {
	return &Caller{backend: backend, logger: logger}
}

type callerOutput struct {
	Genes map[string]callerGene `json:"genes"`
}

type callerGene struct {
	Diplotype  string          `json:"diplotype"`
	Confidence json.RawMessage `json:"confidence"`
}

// CallDiplotype runs the caller for gene on vcfPath and parses the
// output. For CYP2D6 the result is adjusted against CNV evidence.
func (c *Caller) CallDiplotype(ctx context.Context, gene, vcfPath string, cnv *domain.CNVEvidence) (*domain.DiplotypeCall, error) {
	raw, err := c.backend.Call(ctx, gene, vcfPath)
	if err != nil {
		return nil, err
	}

	call, err := parseDiplotype(raw, gene)
	if err != nil {
		return nil, domain.NewCallerFailureError(gene, err.Error()).WithCause(err)
	}

	if gene == geneCYP2D6 && cnv != nil {
		call = adjustForCNV(call, cnv)
	}

	c.logger.WithFields(logrus.Fields{
		"gene":       gene,
		"diplotype":  call.Diplotype,
		"confidence": call.Confidence,
	}).Info("Diplotype resolved")
	return call, nil
}

func parseDiplotype(raw []byte, gene string) (*domain.DiplotypeCall, error) {
	var out callerOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unparseable caller output: %w", err)
	}
	gd, ok := out.Genes[gene]
	if !ok {
		return nil, fmt.Errorf("caller output missing gene data for %s", gene)
	}
	if gd.Diplotype == "" {
		return nil, fmt.Errorf("caller output missing diplotype for %s", gene)
	}

	parts := strings.Split(gd.Diplotype, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid diplotype format %q", gd.Diplotype)
	}
	allele1 := strings.TrimSpace(parts[0])
	allele2 := strings.TrimSpace(parts[1])
	if allele1 == "" || allele2 == "" {
		return nil, fmt.Errorf("invalid diplotype format %q", gd.Diplotype)
	}

	call := &domain.DiplotypeCall{
		Gene:      gene,
		Diplotype: gd.Diplotype,
		Allele1:   allele1,
		Allele2:   allele2,
		Metadata:  map[string]string{},
	}

	call.Confidence = defaultConfidence
	if len(gd.Confidence) > 0 {
		var conf float64
		if err := json.Unmarshal(gd.Confidence, &conf); err == nil && conf >= 0 && conf <= 1 {
			call.Confidence = conf
		} else {
			call.Metadata["confidence_defaulted"] = "true"
		}
	} else {
		call.Metadata["confidence_defaulted"] = "true"
	}

	return call, nil
}

// StarAlleles expands a diplotype call into its two allele records with
// shared zygosity.
func StarAlleles(call *domain.DiplotypeCall) []domain.StarAllele {
	zyg := domain.Heterozygous
	if call.Allele1 == call.Allele2 {
		zyg = domain.Homozygous
	}
	return []domain.StarAllele{
		{Gene: call.Gene, Allele: call.Allele1, Zygosity: zyg, Confidence: call.Confidence},
		{Gene: call.Gene, Allele: call.Allele2, Zygosity: zyg, Confidence: call.Confidence},
	}
}
