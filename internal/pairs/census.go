package pairs

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/aman-zulfiqar/routediff/internal/logparse"
)

// PairCount is how often one directed token pair was requested.
type PairCount struct {
	Pair  string
	Count uint64
}

// Census counts routing requests per token pair in a log.
type Census struct {
	counts map[string]uint64

	Lines       uint64
	Requests    uint64
	ParseErrors uint64
}

// Count reads every line of r and tallies the pairs of all extractable
// routing requests. Unparseable routing lines are counted, not fatal.
func Count(ctx context.Context, r io.Reader) (*Census, error) {
	c := &Census{counts: make(map[string]uint64)}

	err := logparse.Lines(ctx, r, func(line string) error {
		c.Lines++
		if !logparse.IsSwapRouting(line) {
			return nil
		}
		req, err := logparse.Extract(line)
		if err != nil {
			c.ParseErrors++
			return nil
		}
		c.Requests++
		c.counts[req.Pair()]++
		return nil
	})
	if err != nil {
		return c, fmt.Errorf("count pairs: %w", err)
	}
	return c, nil
}

// Distinct returns the number of different pairs seen.
func (c *Census) Distinct() int {
	return len(c.counts)
}

// Sorted returns the pairs by descending count, ties broken by pair name.
func (c *Census) Sorted() []PairCount {
	out := make([]PairCount, 0, len(c.counts))
	for pair, n := range c.counts {
		out = append(out, PairCount{Pair: pair, Count: n})
	}
	slices.SortFunc(out, func(a, b PairCount) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Pair, b.Pair)
	})
	return out
}

func (c *Census) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "lines:%d requests:%d parse_errors:%d pairs:%d\n", c.Lines, c.Requests, c.ParseErrors, c.Distinct())
	for _, pc := range c.Sorted() {
		fmt.Fprintf(&buf, "%s %d\n", pc.Pair, pc.Count)
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}
