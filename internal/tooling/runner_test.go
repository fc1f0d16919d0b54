package tooling

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-cds-server/internal/domain"
)

func testRunner(timeout time.Duration) *Runner {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRunner(log, timeout)
}

func TestRequire_AllPresent(t *testing.T) {
	r := testRunner(time.Minute)
	assert.NoError(t, r.Require("sh"))
}

func TestRequire_MissingToolsListed(t *testing.T) {
	r := testRunner(time.Minute)

	err := r.Require("sh", "definitely-not-a-real-tool", "another-missing-tool")
	require.Error(t, err)
	assert.Equal(t, domain.ReasonToolingUnavailable, domain.ReasonOf(err))
	assert.Contains(t, err.Error(), "definitely-not-a-real-tool")
	assert.Contains(t, err.Error(), "another-missing-tool")
	assert.NotContains(t, err.Error(), "sh,")
}

func TestRun_CapturesStdout(t *testing.T) {
	r := testRunner(time.Minute)

	out, err := r.Run(context.Background(), "sh", "-c", "printf hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestRun_NonZeroExitIncludesStderr(t *testing.T) {
	r := testRunner(time.Minute)

	_, err := r.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 3")
	assert.Contains(t, err.Error(), "boom")
}

func TestRun_TimeoutReported(t *testing.T) {
	r := testRunner(100 * time.Millisecond)

	_, err := r.Run(context.Background(), "sh", "-c", "sleep 5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestRun_MissingBinary(t *testing.T) {
	r := testRunner(time.Minute)

	_, err := r.Run(context.Background(), "definitely-not-a-real-tool")
	require.Error(t, err)
}
