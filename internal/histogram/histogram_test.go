package histogram

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/routediff/internal/models"
)

func TestBucket(t *testing.T) {
	tests := []struct {
		value float64
		want  int
	}{
		{0, 0},
		{0.00005, 0},
		{0.0001, 1},
		{0.0005, 1},
		{0.005, 2},
		{0.01, 3},
		{0.015, 3},
		{0.03, 4},
		{0.07, 5},
		{0.1, 6},
		{0.5, 6},
		{1e9, 6},
		{math.Inf(1), 6},
		{math.NaN(), 6},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Bucket(tt.value), "value %v", tt.value)
	}
}

func f(v float64) *float64 { return &v }

func TestAggregator_FoldAndFinalize(t *testing.T) {
	a := NewAggregator()

	a.Fold(3, []models.CompareResult{
		{OldIndex: 0, NewIndex: 0, DiffAmount: f(0.00005), DiffFee: f(0.5)},
		{OldIndex: 0, NewIndex: 1, DiffAmount: f(0.015)},
		{OldIndex: 2, NewIndex: 2, DiffAmount: f(0.03), DiffImpact: nil},
	}, Timing{Old: 100 * time.Millisecond, New: 300 * time.Millisecond})

	a.Fold(1, nil, Timing{Old: 300 * time.Millisecond, New: 100 * time.Millisecond})

	r := a.Finalize()
	assert.Equal(t, uint64(2), r.Records)
	assert.Equal(t, uint64(4), r.Considered)
	assert.Equal(t, uint64(2), r.Matched)
	assert.Equal(t, uint64(2), r.Mismatched)

	amount := r.Field(FieldAmount)
	require.NotNil(t, amount)
	assert.Equal(t, uint64(3), amount.Total)
	assert.Equal(t, [NumBuckets]uint64{1, 0, 0, 1, 1, 0, 0}, amount.Counts)

	fee := r.Field(FieldFee)
	require.NotNil(t, fee)
	assert.Equal(t, uint64(1), fee.Counts[6])
	assert.InDelta(t, 100.0, fee.Percentages[6], 1e-9)

	// no impact sample ever arrived
	impact := r.Field(FieldImpact)
	require.NotNil(t, impact)
	assert.Zero(t, impact.Total)
	assert.Nil(t, impact.Percentages)

	assert.Equal(t, 400*time.Millisecond, r.OldTotal)
	assert.Equal(t, 200*time.Millisecond, r.OldMean)
	assert.Equal(t, 200*time.Millisecond, r.NewMean)
	assert.Zero(t, r.MeanDelta)
}

func TestFinalize_PercentagesSumToHundred(t *testing.T) {
	a := NewAggregator()
	for _, v := range []float64{0.00005, 0.0005, 0.005, 0.015, 0.03, 0.07, 0.5, 0.5, 0.001} {
		a.Update(FieldAmount, v)
	}

	fr := a.Finalize().Field(FieldAmount)
	require.NotNil(t, fr)
	require.Len(t, fr.Percentages, NumBuckets)

	var sum float64
	for _, p := range fr.Percentages {
		sum += p
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
}

func TestUpdate_OneHundredVsOneHundredOne(t *testing.T) {
	a := NewAggregator()
	a.Update(FieldAmount, 0.01)
	assert.Equal(t, uint64(1), a.Finalize().Field(FieldAmount).Counts[3])
}

func TestFinalize_Empty(t *testing.T) {
	r := NewAggregator().Finalize()

	assert.Len(t, r.Fields, len(Fields))
	for _, fr := range r.Fields {
		assert.Nil(t, fr.Percentages)
	}
	assert.Zero(t, r.OldMean)

	var buf bytes.Buffer
	_, err := r.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Amount: diff\n count:0, no samples\n")
	assert.Contains(t, buf.String(), "sum:0, diff:n/a same:n/a\n")
}

func TestReport_WriteTo(t *testing.T) {
	a := NewAggregator()
	a.Fold(2, []models.CompareResult{
		{OldIndex: 0, DiffAmount: f(0.00001)},
		{OldIndex: 0, DiffAmount: f(0.2)},
	}, Timing{Old: time.Second, New: 2 * time.Second})

	var buf bytes.Buffer
	n, err := a.Finalize().WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	out := buf.String()
	assert.Contains(t, out, "Amount: diff\n count:2, diff <0.01%: 50.0000%, 0.01%~0.1%: 0.0000%")
	assert.Contains(t, out, ">10%: 50.0000%\n")
	assert.Contains(t, out, "sum:2, diff:50.0000% same:50.0000%\n")
	assert.Contains(t, out, "mean new-old:1s\n")
}
