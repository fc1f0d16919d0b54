package domain

import (
	"errors"
	"fmt"
)

// Reason codes for pipeline failures. Every failure surfaced to the
// boundary carries one of these, a human-readable message, and a
// suggested remediation action.
const (
	ReasonFormatValidation   = "FORMAT_VALIDATION"
	ReasonToolingUnavailable = "TOOLING_UNAVAILABLE"
	ReasonRegionCoverage     = "REGION_COVERAGE"
	ReasonCallerFailure      = "CALLER_FAILURE"
	ReasonCNVUnavailable     = "CNV_UNAVAILABLE"
	ReasonUnsupportedDrug    = "UNSUPPORTED_DRUG"
	ReasonUnsupportedGene    = "UNSUPPORTED_GENE"
)

// PipelineError is a reason-coded failure with a remediation hint.
type PipelineError struct {
	Code    string `json:"code"`
	Gene    string `json:"gene,omitempty"`
	Drug    string `json:"drug,omitempty"`
	Message string `json:"message"`
	Action  string `json:"action"`
	cause   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Gene != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Gene, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *PipelineError) Unwrap() error {
	return e.cause
}

// WithCause attaches the underlying error and returns the same value.
func (e *PipelineError) WithCause(err error) *PipelineError {
	e.cause = err
	return e
}

// ReasonOf returns the reason code of err, or "" if err is not a
// PipelineError anywhere in its chain.
func ReasonOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsReason reports whether err carries the given reason code.
func IsReason(err error, code string) bool {
	return ReasonOf(err) == code
}

// NewFormatValidationError reports a file that failed strict header or
// format validation.
func NewFormatValidationError(message string) *PipelineError {
	return &PipelineError{
		Code:    ReasonFormatValidation,
		Message: message,
		Action:  "Verify VCF file integrity and format (VCFv4.1 or VCFv4.2) and that the header declares a supported reference build.",
	}
}

// NewToolingUnavailableError reports missing external tooling or a
// missing required resource file.
func NewToolingUnavailableError(message string) *PipelineError {
	return &PipelineError{
		Code:    ReasonToolingUnavailable,
		Message: message,
		Action:  "Install the required external tooling and ensure it is on PATH, and verify configured resource paths exist.",
	}
}

// NewRegionCoverageError reports a gene region that is not queryable in
// the uploaded VCF. This is always fatal for the whole request.
func NewRegionCoverageError(gene, detail string) *PipelineError {
	msg := fmt.Sprintf("Gene region for %s is not queryable in this VCF (missing contig or index).", gene)
	if detail != "" {
		msg = fmt.Sprintf("%s %s", msg, detail)
	}
	return &PipelineError{
		Code:    ReasonRegionCoverage,
		Gene:    gene,
		Message: msg,
		Action:  "Ensure the VCF includes the chromosome/contig for this gene region and is properly indexed.",
	}
}

// NewCallerFailureError reports that the external star-allele caller
// failed or produced unparseable output for a gene. Strict mode: this
// aborts the gene-level analysis, never substitutes a wild-type default.
func NewCallerFailureError(gene, detail string) *PipelineError {
	return &PipelineError{
		Code:    ReasonCallerFailure,
		Gene:    gene,
		Message: fmt.Sprintf("Star allele calling failed for %s: %s", gene, detail),
		Action:  "The external star-allele caller is required for analysis. Ensure it is installed and its container image is available.",
	}
}

// NewCNVUnavailableError reports missing copy-number signal for a gene.
// Not necessarily fatal; callers decide.
func NewCNVUnavailableError(gene string) *PipelineError {
	return &PipelineError{
		Code:    ReasonCNVUnavailable,
		Gene:    gene,
		Message: fmt.Sprintf("CNV information is unavailable for %s.", gene),
		Action:  "Obtain CNV testing or use an analysis method that includes copy-number detection.",
	}
}

// NewUnsupportedDrugError reports a drug with no registry mapping.
func NewUnsupportedDrugError(drug string, supported []string) *PipelineError {
	return &PipelineError{
		Code:    ReasonUnsupportedDrug,
		Drug:    drug,
		Message: fmt.Sprintf("Drug %q is not supported.", drug),
		Action:  fmt.Sprintf("Use one of the supported drugs (%v) or request drug addition.", supported),
	}
}

// NewUnsupportedGeneError reports a gene outside the supported region set.
func NewUnsupportedGeneError(gene string) *PipelineError {
	return &PipelineError{
		Code:    ReasonUnsupportedGene,
		Gene:    gene,
		Message: fmt.Sprintf("Gene %q is not in the supported pharmacogene set.", gene),
		Action:  "Consult the supported gene list; additional genes require new region definitions and allele tables.",
	}
}
