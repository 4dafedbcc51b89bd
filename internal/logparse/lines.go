package logparse

import (
	"bufio"
	"context"
	"errors"
	"io"
)

// maxLineSize bounds a single log line. Router request logs embed whole
// JSON envelopes, so the scanner default of 64KiB is too small.
const maxLineSize = 16 << 20

// ErrStop can be returned from a Lines callback to end iteration early
// without reporting an error.
var ErrStop = errors.New("stop iteration")

// Lines calls fn for every line of r, in order.
func Lines(ctx context.Context, r io.Reader, fn func(line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}
