package histogram

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// FieldReport is the finalized histogram for one field. Percentages is nil
// when no sample was recorded.
type FieldReport struct {
	Field       Field
	Total       uint64
	Counts      [NumBuckets]uint64
	Percentages []float64
}

// Report is the end-of-run summary.
type Report struct {
	Fields []FieldReport

	Records    uint64
	Considered uint64
	Matched    uint64
	Mismatched uint64

	OldTotal  time.Duration
	NewTotal  time.Duration
	OldMean   time.Duration
	NewMean   time.Duration
	MeanDelta time.Duration
}

// Field returns the report for f, or nil if f is not tracked.
func (r *Report) Field(f Field) *FieldReport {
	for i := range r.Fields {
		if r.Fields[i].Field == f {
			return &r.Fields[i]
		}
	}
	return nil
}

var bucketLabels = [NumBuckets]string{
	"diff <0.01%",
	"0.01%~0.1%",
	"0.1%~1%",
	"1%~2%",
	"2%~5%",
	"5%~10%",
	">10%",
}

// WriteTo renders the report as text.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer

	for _, fr := range r.Fields {
		fmt.Fprintf(&buf, "%s: diff\n", fr.Field)
		fmt.Fprintf(&buf, " count:%d", fr.Total)
		if fr.Percentages == nil {
			buf.WriteString(", no samples\n")
			continue
		}
		for i, label := range bucketLabels {
			fmt.Fprintf(&buf, ", %s: %s%%", label, formatPct(fr.Percentages[i]))
		}
		buf.WriteByte('\n')
	}

	if r.Considered == 0 {
		fmt.Fprintf(&buf, "sum:0, diff:n/a same:n/a\n")
	} else {
		total := float64(r.Considered)
		fmt.Fprintf(&buf, "sum:%d, diff:%s%% same:%s%%\n",
			r.Considered,
			formatPct(float64(r.Mismatched)/total*100),
			formatPct(float64(r.Matched)/total*100),
		)
	}

	fmt.Fprintf(&buf, "records:%d, old total:%s mean:%s, new total:%s mean:%s, mean new-old:%s\n",
		r.Records,
		r.OldTotal, r.OldMean,
		r.NewTotal, r.NewMean,
		r.MeanDelta,
	)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
