package histogram

import (
	"math"
	"time"

	"github.com/aman-zulfiqar/routediff/internal/compare"
	"github.com/aman-zulfiqar/routediff/internal/models"
)

// Field is a quantitative path attribute tracked by the aggregator.
type Field int

const (
	FieldAmount Field = iota
	FieldFee
	FieldImpact
	FieldInUSD
	FieldOutUSD
)

// Fields lists every tracked field in report order.
var Fields = [...]Field{FieldAmount, FieldFee, FieldImpact, FieldInUSD, FieldOutUSD}

func (f Field) String() string {
	switch f {
	case FieldAmount:
		return "Amount"
	case FieldFee:
		return "Fee"
	case FieldImpact:
		return "Impact"
	case FieldInUSD:
		return "InUsd"
	case FieldOutUSD:
		return "OutUsd"
	default:
		return "Unknown"
	}
}

const NumBuckets = 7

// Boundaries are the exclusive upper bounds of each bucket.
var Boundaries = [NumBuckets]float64{0.0001, 0.001, 0.01, 0.02, 0.05, 0.1, math.Inf(1)}

// Bucket returns the first bucket whose upper bound is strictly greater than
// v. Anything that fits nowhere, NaN included, lands in the last bucket.
func Bucket(v float64) int {
	for i, upper := range Boundaries {
		if v < upper {
			return i
		}
	}
	return NumBuckets - 1
}

// Timing is the round-trip duration of the old and new call for one record.
type Timing struct {
	Old time.Duration
	New time.Duration
}

// Aggregator accumulates relative differences for a whole run. It is owned by
// a single replay session and is not safe for concurrent use.
type Aggregator struct {
	counts [len(Fields)][NumBuckets]uint64

	records    uint64
	considered uint64
	matched    uint64

	oldTotal time.Duration
	newTotal time.Duration
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Update adds one sample for field f.
func (a *Aggregator) Update(f Field, v float64) {
	if f < 0 || int(f) >= len(Fields) {
		return
	}
	a.counts[f][Bucket(v)]++
}

// Fold applies the outcome of one compared record: every defined difference
// of every result, the topology counts and the call timings.
func (a *Aggregator) Fold(considered int, results []models.CompareResult, timing Timing) {
	for i := range results {
		r := &results[i]
		a.updateIfDefined(FieldAmount, r.DiffAmount)
		a.updateIfDefined(FieldFee, r.DiffFee)
		a.updateIfDefined(FieldImpact, r.DiffImpact)
		a.updateIfDefined(FieldInUSD, r.DiffInUSD)
		a.updateIfDefined(FieldOutUSD, r.DiffOutUSD)
	}

	a.records++
	a.considered += uint64(considered)
	a.matched += uint64(compare.MatchedOld(results))
	a.oldTotal += timing.Old
	a.newTotal += timing.New
}

func (a *Aggregator) updateIfDefined(f Field, v *float64) {
	if v != nil {
		a.Update(f, *v)
	}
}

// Records returns the number of folded records.
func (a *Aggregator) Records() uint64 {
	return a.records
}

// Finalize converts the counters into a report. The aggregator can keep
// folding afterwards; Finalize does not reset it.
func (a *Aggregator) Finalize() *Report {
	r := &Report{
		Records:    a.records,
		Considered: a.considered,
		Matched:    a.matched,
		Mismatched: a.considered - a.matched,
		OldTotal:   a.oldTotal,
		NewTotal:   a.newTotal,
	}

	for _, f := range Fields {
		fr := FieldReport{Field: f, Counts: a.counts[f]}
		for _, c := range fr.Counts {
			fr.Total += c
		}
		if fr.Total > 0 {
			fr.Percentages = make([]float64, NumBuckets)
			for i, c := range fr.Counts {
				fr.Percentages[i] = float64(c) / float64(fr.Total) * 100
			}
		}
		r.Fields = append(r.Fields, fr)
	}

	if a.records > 0 {
		n := time.Duration(a.records)
		r.OldMean = a.oldTotal / n
		r.NewMean = a.newTotal / n
		r.MeanDelta = r.NewMean - r.OldMean
	}

	return r
}
