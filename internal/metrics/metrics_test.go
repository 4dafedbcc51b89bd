package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors_Counters(t *testing.T) {
	c := New()

	c.ObserveCall("old", "ok", 120*time.Millisecond)
	c.ObserveCall("old", "ok", 80*time.Millisecond)
	c.ObserveCall("new", "error", time.Second)
	c.IncRetry("new")
	c.IncLine("processed")
	c.AddTopology(3, 1)
	c.IncDivergence()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.routerCalls.WithLabelValues("old", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.routerCalls.WithLabelValues("new", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.routerRetries.WithLabelValues("new")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.topology.WithLabelValues("matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.topology.WithLabelValues("mismatched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.divergences))
}

func TestCollectors_WriteTextfile(t *testing.T) {
	c := New()
	c.IncLine("skipped")

	path := filepath.Join(t.TempDir(), "routediff.prom")
	require.NoError(t, c.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `routediff_log_lines_total{outcome="skipped"} 1`)
}
