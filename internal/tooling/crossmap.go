package tooling

import (
	"context"
	"fmt"
	"os"
)

// CrossMap wraps CrossMap for GRCh37 to GRCh38 coordinate liftover.
type CrossMap struct {
	runner    *Runner
	chainFile string
}

// NewCrossMap creates a liftover wrapper bound to a chain file.
func NewCrossMap(runner *Runner, chainFile string) *CrossMap {
	return &CrossMap{runner: runner, chainFile: chainFile}
}

// Lift converts the GRCh37 VCF at inPath to GRCh38 coordinates at
// outPath. Unmappable records are dropped into CrossMap's side file and
// do not fail the run.
func (c *CrossMap) Lift(ctx context.Context, inPath, refFasta, outPath string) error {
	if _, err := os.Stat(c.chainFile); err != nil {
		return fmt.Errorf("liftover chain %s: %w", c.chainFile, err)
	}
	_, err := c.runner.Run(ctx, "crossmap", "vcf", c.chainFile, inPath, refFasta, outPath)
	if err != nil {
		return fmt.Errorf("crossmap liftover: %w", err)
	}
	return nil
}
