package haplotype

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-cds-server/internal/domain"
)

type fakeBackend struct {
	output []byte
	err    error
	calls  int
}

func (f *fakeBackend) Call(_ context.Context, gene, vcfPath string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func callerJSON(gene, diplotype string, confidence string) []byte {
	if confidence == "" {
		return []byte(fmt.Sprintf(`{"genes":{%q:{"diplotype":%q}}}`, gene, diplotype))
	}
	return []byte(fmt.Sprintf(`{"genes":{%q:{"diplotype":%q,"confidence":%s}}}`, gene, diplotype, confidence))
}

func TestCallDiplotype_Success(t *testing.T) {
	backend := &fakeBackend{output: callerJSON("CYP2C19", "*1/*2", "0.98")}
	caller := NewCaller(backend, testLogger())

	call, err := caller.CallDiplotype(context.Background(), "CYP2C19", "/tmp/slice.vcf.gz", nil)
	require.NoError(t, err)

	assert.Equal(t, "CYP2C19", call.Gene)
	assert.Equal(t, "*1/*2", call.Diplotype)
	assert.Equal(t, "*1", call.Allele1)
	assert.Equal(t, "*2", call.Allele2)
	assert.InDelta(t, 0.98, call.Confidence, 1e-9)
	assert.NotContains(t, call.Metadata, "confidence_defaulted")
	assert.Equal(t, 1, backend.calls)
}

func TestCallDiplotype_BackendErrorPropagates(t *testing.T) {
	wantErr := domain.NewCallerFailureError("CYP2D6", "container exited 1")
	backend := &fakeBackend{err: wantErr}
	caller := NewCaller(backend, testLogger())

	_, err := caller.CallDiplotype(context.Background(), "CYP2D6", "/tmp/slice.vcf.gz", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, wantErr))
	assert.Equal(t, domain.ReasonCallerFailure, domain.ReasonOf(err))
}

func TestCallDiplotype_MalformedOutput(t *testing.T) {
	tests := []struct {
		name   string
		output []byte
	}{
		{"not json", []byte("PHARMCAT CRASHED")},
		{"missing gene", []byte(`{"genes":{"CYP2C9":{"diplotype":"*1/*1"}}}`)},
		{"empty diplotype", callerJSON("CYP2D6", "", "")},
		{"single allele", callerJSON("CYP2D6", "*1", "")},
		{"three alleles", callerJSON("CYP2D6", "*1/*2/*3", "")},
		{"blank allele", callerJSON("CYP2D6", "*1/ ", "")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{output: tc.output}
			caller := NewCaller(backend, testLogger())

			_, err := caller.CallDiplotype(context.Background(), "CYP2D6", "/tmp/slice.vcf.gz", nil)
			require.Error(t, err)
			assert.Equal(t, domain.ReasonCallerFailure, domain.ReasonOf(err))
		})
	}
}

func TestCallDiplotype_ConfidenceDefaulted(t *testing.T) {
	tests := []struct {
		name       string
		confidence string
	}{
		{"absent", ""},
		{"out of range high", "1.5"},
		{"out of range negative", "-0.1"},
		{"wrong type", `"high"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{output: callerJSON("TPMT", "*1/*3A", tc.confidence)}
			caller := NewCaller(backend, testLogger())

			call, err := caller.CallDiplotype(context.Background(), "TPMT", "/tmp/slice.vcf.gz", nil)
			require.NoError(t, err)
			assert.InDelta(t, 0.95, call.Confidence, 1e-9)
			assert.Equal(t, "true", call.Metadata["confidence_defaulted"])
		})
	}
}

func TestCallDiplotype_CNVDeletion(t *testing.T) {
	backend := &fakeBackend{output: callerJSON("CYP2D6", "*1/*2", "0.9")}
	caller := NewCaller(backend, testLogger())
	cnv := &domain.CNVEvidence{Available: true, DeletionDetected: true}

	call, err := caller.CallDiplotype(context.Background(), "CYP2D6", "/tmp/slice.vcf.gz", cnv)
	require.NoError(t, err)

	assert.Equal(t, "*5/*5", call.Diplotype)
	assert.Equal(t, "deletion", call.Metadata["cnv_adjusted"])
	assert.InDelta(t, 0.9, call.Confidence, 1e-9)
}

func TestCallDiplotype_CNVDuplication(t *testing.T) {
	backend := &fakeBackend{output: callerJSON("CYP2D6", "*2/*4", "0.9")}
	caller := NewCaller(backend, testLogger())
	cn := 4
	cnv := &domain.CNVEvidence{Available: true, DuplicationDetected: true, CopyNumber: &cn}

	call, err := caller.CallDiplotype(context.Background(), "CYP2D6", "/tmp/slice.vcf.gz", cnv)
	require.NoError(t, err)

	assert.Equal(t, "*2/*2xN", call.Diplotype)
	assert.Equal(t, "*2", call.Allele1)
	assert.Equal(t, "*2xN", call.Allele2)
	assert.Equal(t, "duplication_4", call.Metadata["cnv_adjusted"])
}

func TestCallDiplotype_CNVUnavailablePassesThrough(t *testing.T) {
	backend := &fakeBackend{output: callerJSON("CYP2D6", "*1/*4", "0.9")}
	caller := NewCaller(backend, testLogger())
	cnv := &domain.CNVEvidence{Available: false}

	call, err := caller.CallDiplotype(context.Background(), "CYP2D6", "/tmp/slice.vcf.gz", cnv)
	require.NoError(t, err)
	assert.Equal(t, "*1/*4", call.Diplotype)
	assert.NotContains(t, call.Metadata, "cnv_adjusted")
}

func TestCallDiplotype_NonCYP2D6IgnoresCNV(t *testing.T) {
	backend := &fakeBackend{output: callerJSON("CYP2C9", "*1/*3", "0.9")}
	caller := NewCaller(backend, testLogger())
	cnv := &domain.CNVEvidence{Available: true, DeletionDetected: true}

	call, err := caller.CallDiplotype(context.Background(), "CYP2C9", "/tmp/slice.vcf.gz", cnv)
	require.NoError(t, err)
	assert.Equal(t, "*1/*3", call.Diplotype)
}

func TestAdjustForCNV_DuplicationBaseSkipsDeletionAllele(t *testing.T) {
	cnv := &domain.CNVEvidence{Available: true, DuplicationDetected: true}
	call := &domain.DiplotypeCall{Gene: "CYP2D6", Diplotype: "*5/*2", Allele1: "*5", Allele2: "*2", Confidence: 0.9}

	adjusted := adjustForCNV(call, cnv)
	assert.Equal(t, "*2/*2xN", adjusted.Diplotype)
	assert.Equal(t, "duplication_3", adjusted.Metadata["cnv_adjusted"])
}

func TestAdjustForCNV_BothDeletionAllelesFallsBackToStar1(t *testing.T) {
	cnv := &domain.CNVEvidence{Available: true, DuplicationDetected: true}
	call := &domain.DiplotypeCall{Gene: "CYP2D6", Diplotype: "*5/*5", Allele1: "*5", Allele2: "*5", Confidence: 0.9}

	adjusted := adjustForCNV(call, cnv)
	assert.Equal(t, "*1/*1xN", adjusted.Diplotype)
}

func TestStarAlleles(t *testing.T) {
	hetero := &domain.DiplotypeCall{Gene: "CYP2D6", Allele1: "*1", Allele2: "*4", Confidence: 0.9}
	alleles := StarAlleles(hetero)
	require.Len(t, alleles, 2)
	assert.Equal(t, domain.Heterozygous, alleles[0].Zygosity)
	assert.Equal(t, "*1", alleles[0].Allele)
	assert.Equal(t, "*4", alleles[1].Allele)

	homo := &domain.DiplotypeCall{Gene: "CYP2D6", Allele1: "*4", Allele2: "*4", Confidence: 0.9}
	alleles = StarAlleles(homo)
	assert.Equal(t, domain.Homozygous, alleles[0].Zygosity)
	assert.Equal(t, domain.Homozygous, alleles[1].Zygosity)
}
