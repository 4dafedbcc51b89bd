package storage

import (
	"context"
	"errors"
	"io"

	"github.com/aman-zulfiqar/routediff/internal/models"
)

// DivergenceRecorder receives matched path pairs whose amounts diverge
// beyond the threshold.
type DivergenceRecorder interface {
	// RecordDivergence persists or forwards one divergence record
	RecordDivergence(ctx context.Context, d *models.Divergence) error
}

// DivergenceSink is a recorder backed by an external system.
type DivergenceSink interface {
	DivergenceRecorder

	// Ping checks if the sink is reachable
	Ping(ctx context.Context) error

	// Close releases the sink connection
	io.Closer
}

// Multi fans a divergence out to several recorders. Every recorder is
// attempted; failures are joined.
type Multi []DivergenceRecorder

func (m Multi) RecordDivergence(ctx context.Context, d *models.Divergence) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordDivergence(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
