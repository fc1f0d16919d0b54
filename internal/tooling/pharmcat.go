package tooling

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/pgx-cds-server/internal/domain"
)

// PharmCAT invokes the external star-allele caller per gene, behind a
// circuit breaker. There is no fallback path: when the caller cannot
// produce a diplotype the gene analysis fails with CALLER_FAILURE
// rather than defaulting any genotype.
type PharmCAT struct {
	runner     *Runner
	logger     *logrus.Logger
	container  string
	executable string
	breaker    *gobreaker.CircuitBreaker
}

// NewPharmCAT creates the caller wrapper. When executable is non-empty
// it is invoked directly; otherwise docker runs the configured
// container image.
func NewPharmCAT(runner *Runner, logger *logrus.Logger, container, executable string) *PharmCAT {
	p := &PharmCAT{
		runner:     runner,
		logger:     logger,
		container:  container,
		executable: executable,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "PharmCAT",
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	return p
}

// Call runs the caller on the per-gene VCF and returns the result JSON
// it wrote to the per-invocation output directory. An open breaker is
// surfaced as CALLER_FAILURE like any other caller error so the strict
// no-default policy holds.
func (p *PharmCAT) Call(ctx context.Context, gene, vcfPath string) ([]byte, error) {
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.invoke(ctx, gene, vcfPath)
	})
	if err != nil {
		return nil, domain.NewCallerFailureError(gene, err.Error()).WithCause(err)
	}
	return out.([]byte), nil
}

// invoke runs one caller invocation against a fresh output directory
// next to the gene VCF (so the docker mount covers it) and reads the
// JSON result file back. Exit zero with no result file is a failure,
// never an empty call.
func (p *PharmCAT) invoke(ctx context.Context, gene, vcfPath string) ([]byte, error) {
	dir := filepath.Dir(vcfPath)
	outDir, err := os.MkdirTemp(dir, "caller-out-")
	if err != nil {
		return nil, fmt.Errorf("create caller output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if p.executable != "" {
		if _, err := p.runner.Run(ctx, p.executable,
			"--gene", gene,
			"--vcf", vcfPath,
			"--output-dir", outDir,
		); err != nil {
			return nil, err
		}
		return readResult(outDir)
	}

	if p.container == "" {
		return nil, fmt.Errorf("no caller executable or container configured")
	}
	if _, err := p.runner.Run(ctx, "docker",
		"run", "--rm",
		"-v", fmt.Sprintf("%s:/data", dir),
		p.container,
		"--gene", gene,
		"--vcf", filepath.Join("/data", filepath.Base(vcfPath)),
		"--output-dir", filepath.Join("/data", filepath.Base(outDir)),
	); err != nil {
		return nil, err
	}
	return readResult(outDir)
}

// readResult finds the JSON file the caller wrote. With several files
// the lexicographically first is used, keeping retries deterministic.
func readResult(outDir string) ([]byte, error) {
	matches, err := filepath.Glob(filepath.Join(outDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan caller output dir: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("caller wrote no result file in %s", outDir)
	}
	sort.Strings(matches)
	return os.ReadFile(matches[0])
}
