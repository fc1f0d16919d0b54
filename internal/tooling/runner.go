// Package tooling wraps the external bioinformatics toolchain. Every
// invocation goes through Runner so timeouts, logging, and missing-tool
// detection behave the same for all tools.
package tooling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pgx-cds-server/internal/domain"
)

// Runner executes external commands with a bounded timeout.
type Runner struct {
	logger  *logrus.Logger
	timeout time.Duration
}

// NewRunner creates a runner. timeout applies to every Run call unless
// the caller's context expires first.
func NewRunner(logger *logrus.Logger, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{logger: logger, timeout: timeout}
}

// Require verifies that each named binary is resolvable on PATH.
// Returns a TOOLING_UNAVAILABLE error naming every missing tool.
func (r *Runner) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return domain.NewToolingUnavailableError(
			fmt.Sprintf("required tools not found on PATH: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// Run executes name with args and returns stdout. A non-zero exit
// includes stderr in the error; a deadline hit is reported as a timeout
// so callers can distinguish a slow tool from a broken one.
func (r *Runner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	elapsed := time.Since(start)

	fields := logrus.Fields{
		"tool":     name,
		"args":     strings.Join(args, " "),
		"duration": elapsed.String(),
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			r.logger.WithFields(fields).Warn("External tool timed out")
			return nil, fmt.Errorf("%s timed out after %s", name, r.timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.logger.WithFields(fields).WithField("exit_code", exitErr.ExitCode()).
				Warn("External tool failed")
			return nil, fmt.Errorf("%s exited with code %d: %s",
				name, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		r.logger.WithFields(fields).WithError(err).Warn("External tool could not start")
		return nil, fmt.Errorf("run %s: %w", name, err)
	}

	r.logger.WithFields(fields).Debug("External tool completed")
	return stdout.Bytes(), nil
}
