package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aman-zulfiqar/routediff/internal/models"
	"github.com/aman-zulfiqar/routediff/internal/storage"
)

const detailHeader = "-------------------------Detail-----------------------\n"

// DetailWriter writes one human readable block per divergence.
type DetailWriter struct {
	mu sync.Mutex
	w  io.Writer
}

var _ storage.DivergenceRecorder = (*DetailWriter)(nil)

// NewDetailWriter writes the detail header to w and returns a recorder that
// appends to it.
func NewDetailWriter(w io.Writer) (*DetailWriter, error) {
	if _, err := io.WriteString(w, detailHeader); err != nil {
		return nil, fmt.Errorf("write detail header: %w", err)
	}
	return &DetailWriter{w: w}, nil
}

func (d *DetailWriter) RecordDivergence(_ context.Context, dv *models.Divergence) error {
	origin, err := json.Marshal(dv.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	oldPath, err := json.Marshal(dv.Old)
	if err != nil {
		return fmt.Errorf("marshal old path: %w", err)
	}
	newPath, err := json.Marshal(dv.New)
	if err != nil {
		return fmt.Errorf("marshal new path: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = fmt.Fprintf(d.w, "origin log: %s, differ:%v\nindex:%d path_index:%d new_path_index:%d\nold:%s\nnew:%s\n",
		origin, dv.DiffAmount,
		dv.RecordIndex, dv.OldIndex, dv.NewIndex,
		oldPath, newPath,
	)
	if err != nil {
		return fmt.Errorf("write divergence detail: %w", err)
	}
	return nil
}

// OpenAppend opens path for appending, creating it if needed.
func OpenAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
