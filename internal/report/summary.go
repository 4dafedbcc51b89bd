package report

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/aman-zulfiqar/routediff/internal/histogram"
	"github.com/aman-zulfiqar/routediff/internal/replay"
)

// RunInfo identifies the run a summary belongs to.
type RunInfo struct {
	RunID     string
	OldURL    string
	NewURL    string
	StartedAt time.Time
	Finished  time.Time
	// Interrupted is set when the run ended before the input did.
	Interrupted bool
}

// WriteSummary appends the run header, the histogram report and the line
// counters to w.
func WriteSummary(w io.Writer, info RunInfo, rep *histogram.Report, stats replay.Stats) error {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "=== run %s ===\n", info.RunID)
	fmt.Fprintf(&buf, "old:%s new:%s\n", info.OldURL, info.NewURL)
	fmt.Fprintf(&buf, "started:%s finished:%s", info.StartedAt.UTC().Format(time.RFC3339), info.Finished.UTC().Format(time.RFC3339))
	if info.Interrupted {
		buf.WriteString(" (interrupted)")
	}
	buf.WriteByte('\n')

	if _, err := rep.WriteTo(&buf); err != nil {
		return err
	}

	fmt.Fprintf(&buf, "lines:%d processed:%d skipped:%d parse_errors:%d duplicates:%d call_failures:%d\n\n",
		stats.LinesRead,
		stats.Processed,
		stats.Skipped,
		stats.ParseErrors,
		stats.Duplicates,
		stats.CallFailures,
	)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
