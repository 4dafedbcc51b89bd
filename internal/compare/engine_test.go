package compare

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/routediff/internal/metrics"
	"github.com/aman-zulfiqar/routediff/internal/models"
)

type captureRecorder struct {
	got []*models.Divergence
	err error
}

func (c *captureRecorder) RecordDivergence(_ context.Context, d *models.Divergence) error {
	c.got = append(c.got, d)
	return c.err
}

func path(amount string, pool ...string) models.Path {
	p := models.Path{Pool: pool, RoadForAddr: []string{"addrA", "addrB"}}
	if amount != "" {
		p.Amount = models.StrPtr(amount)
	}
	return p
}

func quietEngine(rec *captureRecorder) *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	cfg := Config{RunID: "run-1", Logger: logger}
	if rec != nil {
		cfg.Recorder = rec
	}
	return NewEngine(cfg)
}

func TestCompare_IdenticalLists(t *testing.T) {
	paths := []models.Path{
		{
			Amount:      models.StrPtr("1000"),
			Fee:         models.StrPtr("3"),
			Impact:      models.StrPtr("0.002"),
			InUSD:       models.StrPtr("10.5"),
			OutUSD:      models.StrPtr("10.4"),
			Pool:        []string{"P1", "P2"},
			RoadForAddr: []string{"a", "b", "c"},
		},
		{
			Amount:      models.StrPtr("990"),
			Fee:         models.StrPtr("2"),
			Impact:      models.StrPtr("0.003"),
			InUSD:       models.StrPtr("10.5"),
			OutUSD:      models.StrPtr("10.3"),
			Pool:        []string{"P3"},
			RoadForAddr: []string{"a", "c"},
		},
	}

	considered, results := quietEngine(nil).Compare(context.Background(), 0, &models.SwapRequest{}, paths, paths)

	assert.Equal(t, 2, considered)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, r.OldIndex, r.NewIndex)
		assert.True(t, r.PoolEqual)
		assert.True(t, r.RoadAddrEqual)
		for _, d := range []*float64{r.DiffAmount, r.DiffFee, r.DiffImpact, r.DiffInUSD, r.DiffOutUSD} {
			require.NotNil(t, d)
			assert.Zero(t, *d)
		}
	}
	assert.Equal(t, 2, MatchedOld(results))
}

func TestCompare_PoolOrderMatters(t *testing.T) {
	oldPaths := []models.Path{path("100", "A", "B")}
	newPaths := []models.Path{path("100", "B", "A")}

	considered, results := quietEngine(nil).Compare(context.Background(), 0, &models.SwapRequest{}, oldPaths, newPaths)

	assert.Equal(t, 1, considered)
	assert.Empty(t, results)
	assert.Zero(t, MatchedOld(results))
}

func TestCompare_RoadAddrMismatchDropped(t *testing.T) {
	oldPath := path("100", "P1")
	newPath := path("100", "P1")
	newPath.RoadForAddr = []string{"addrA", "addrC"}

	_, results := quietEngine(nil).Compare(context.Background(), 0, &models.SwapRequest{},
		[]models.Path{oldPath}, []models.Path{newPath})
	assert.Empty(t, results)
}

func TestCompare_InfeasiblePathsNeverCompared(t *testing.T) {
	oldPaths := []models.Path{path("", "P1"), path("100", "P1")}
	newPaths := []models.Path{path("", "P1"), path("101", "P1")}

	considered, results := quietEngine(nil).Compare(context.Background(), 0, &models.SwapRequest{}, oldPaths, newPaths)

	assert.Equal(t, 1, considered)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].OldIndex)
	assert.Equal(t, 1, results[0].NewIndex)
	assert.Equal(t, "100", results[0].OldAmount)
	assert.Equal(t, "101", results[0].NewAmount)
}

func TestCompare_CrossProduct(t *testing.T) {
	// two old paths sharing a topology with two new paths yield four results
	oldPaths := []models.Path{path("100", "P1"), path("200", "P1"), path("300", "P9")}
	newPaths := []models.Path{path("100", "P1"), path("200", "P1")}

	considered, results := quietEngine(nil).Compare(context.Background(), 0, &models.SwapRequest{}, oldPaths, newPaths)

	assert.Equal(t, 3, considered)
	assert.Len(t, results, 4)
	assert.Equal(t, 2, MatchedOld(results))
}

func TestCompare_OneHundredVsOneHundredOne(t *testing.T) {
	_, results := quietEngine(nil).Compare(context.Background(), 0, &models.SwapRequest{},
		[]models.Path{path("100", "P1")}, []models.Path{path("101", "P1")})

	require.Len(t, results, 1)
	require.NotNil(t, results[0].DiffAmount)
	assert.InDelta(t, 0.01, *results[0].DiffAmount, 1e-12)
	// fields absent on both sides stay undefined
	assert.Nil(t, results[0].DiffFee)
	assert.Nil(t, results[0].DiffOutUSD)
}

func TestCompare_RecordsDivergenceAboveThreshold(t *testing.T) {
	rec := &captureRecorder{}
	m := metrics.New()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	e := NewEngine(Config{RunID: "run-7", Recorder: rec, Metrics: m, Logger: logger})

	req := &models.SwapRequest{FromToken: "USDT", ToToken: "TRX", InAmount: "1000"}
	oldPaths := []models.Path{path("100", "P1"), path("100", "P2")}
	newPaths := []models.Path{path("105", "P1"), path("100.5", "P2")}

	_, results := e.Compare(context.Background(), 42, req, oldPaths, newPaths)
	require.Len(t, results, 2)

	// only the 5% pair crosses the 1% threshold
	require.Len(t, rec.got, 1)
	d := rec.got[0]
	assert.Equal(t, "run-7", d.RunID)
	assert.Equal(t, uint64(42), d.RecordIndex)
	assert.Equal(t, 0, d.OldIndex)
	assert.Equal(t, 0, d.NewIndex)
	assert.Same(t, req, d.Request)
	assert.InDelta(t, 0.05, d.DiffAmount, 1e-12)
	assert.False(t, d.DetectedAt.IsZero())
	expected := `
# HELP routediff_divergences_total Matched path pairs above the divergence threshold
# TYPE routediff_divergences_total counter
routediff_divergences_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "routediff_divergences_total"))
}

func TestCompare_ThresholdIsExclusive(t *testing.T) {
	rec := &captureRecorder{}
	_, _ = quietEngine(rec).Compare(context.Background(), 0, &models.SwapRequest{},
		[]models.Path{path("100", "P1")}, []models.Path{path("101", "P1")})
	assert.Empty(t, rec.got)
}

func TestCompare_RecorderErrorDoesNotDropResults(t *testing.T) {
	rec := &captureRecorder{err: errors.New("sink down")}
	_, results := quietEngine(rec).Compare(context.Background(), 0, &models.SwapRequest{},
		[]models.Path{path("100", "P1")}, []models.Path{path("150", "P1")})

	assert.Len(t, results, 1)
	assert.Len(t, rec.got, 1)
}

func TestRelDiff(t *testing.T) {
	s := models.StrPtr

	tests := []struct {
		name     string
		old, new *string
		want     *float64
	}{
		{"equal", s("100"), s("100"), ptr(0)},
		{"increase", s("200"), s("250"), ptr(0.25)},
		{"decrease", s("200"), s("150"), ptr(0.25)},
		{"negative old", s("-50"), s("-25"), ptr(0.5)},
		{"large integers", s("123456789012345678901234567890"), s("123456789012345678901234567890"), ptr(0)},
		{"old zero", s("0"), s("5"), nil},
		{"old absent", nil, s("5"), nil},
		{"new absent", s("5"), nil, nil},
		{"old unparseable", s("abc"), s("5"), nil},
		{"new unparseable", s("5"), s("abc"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RelDiff(tt.old, tt.new)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-12)
		})
	}
}

func ptr(f float64) *float64 { return &f }
