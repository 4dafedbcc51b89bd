package compare

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/routediff/internal/constants"
	"github.com/aman-zulfiqar/routediff/internal/metrics"
	"github.com/aman-zulfiqar/routediff/internal/models"
	"github.com/aman-zulfiqar/routediff/internal/storage"
)

type Config struct {
	RunID string
	// Threshold is the amount difference above which a matched pair is
	// handed to Recorder. Defaults to constants.DivergenceThreshold.
	Threshold float64
	Recorder  storage.DivergenceRecorder
	Metrics   *metrics.Collectors
	Logger    *logrus.Logger
}

// Engine matches candidate paths between an old and a new router response
// and computes relative differences for every matched pair.
type Engine struct {
	runID     string
	threshold float64
	recorder  storage.DivergenceRecorder
	metrics   *metrics.Collectors
	logger    *logrus.Logger
	now       func() time.Time
}

func NewEngine(cfg Config) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = constants.DivergenceThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Engine{
		runID:     cfg.RunID,
		threshold: cfg.Threshold,
		recorder:  cfg.Recorder,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// Compare runs the full cross product of old and new paths. Only feasible
// paths take part, and only pairs whose pool and road address sequences are
// both equal produce a result. The returned count is the number of feasible
// old paths.
//
// recordIndex identifies the request within the run and is only used to tag
// divergence records.
func (e *Engine) Compare(ctx context.Context, recordIndex uint64, req *models.SwapRequest, oldPaths, newPaths []models.Path) (int, []models.CompareResult) {
	considered := 0
	var results []models.CompareResult

	for i := range oldPaths {
		oldPath := &oldPaths[i]
		if !oldPath.Feasible() {
			continue
		}
		considered++

		for j := range newPaths {
			newPath := &newPaths[j]
			if !newPath.Feasible() {
				continue
			}

			res := models.CompareResult{
				OldIndex:      i,
				NewIndex:      j,
				OldAmount:     *oldPath.Amount,
				NewAmount:     *newPath.Amount,
				PoolEqual:     slices.Equal(oldPath.Pool, newPath.Pool),
				RoadAddrEqual: slices.Equal(oldPath.RoadForAddr, newPath.RoadForAddr),
			}
			if !res.TopologyEqual() {
				continue
			}

			res.DiffAmount = RelDiff(oldPath.Amount, newPath.Amount)
			res.DiffFee = RelDiff(oldPath.Fee, newPath.Fee)
			res.DiffImpact = RelDiff(oldPath.Impact, newPath.Impact)
			res.DiffInUSD = RelDiff(oldPath.InUSD, newPath.InUSD)
			res.DiffOutUSD = RelDiff(oldPath.OutUSD, newPath.OutUSD)
			results = append(results, res)

			if res.DiffAmount != nil && *res.DiffAmount > e.threshold {
				e.recordDivergence(ctx, &models.Divergence{
					RunID:       e.runID,
					RecordIndex: recordIndex,
					OldIndex:    i,
					NewIndex:    j,
					Request:     req,
					Old:         *oldPath,
					New:         *newPath,
					DiffAmount:  *res.DiffAmount,
					DetectedAt:  e.now().UTC(),
				})
			}
		}
	}

	return considered, results
}

func (e *Engine) recordDivergence(ctx context.Context, d *models.Divergence) {
	if e.metrics != nil {
		e.metrics.IncDivergence()
	}
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordDivergence(ctx, d); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"record":    d.RecordIndex,
			"old_index": d.OldIndex,
			"new_index": d.NewIndex,
		}).Warn("failed to record divergence")
	}
}

// RelDiff returns |old-new| / |old|. The result is nil when either value is
// absent or unparseable, or when old is zero.
func RelDiff(oldVal, newVal *string) *float64 {
	if oldVal == nil || newVal == nil {
		return nil
	}
	o, err := decimal.NewFromString(*oldVal)
	if err != nil || o.IsZero() {
		return nil
	}
	n, err := decimal.NewFromString(*newVal)
	if err != nil {
		return nil
	}

	f, _ := o.Sub(n).Abs().Div(o.Abs()).Float64()
	return &f
}

// MatchedOld counts distinct old paths with at least one topology match.
func MatchedOld(results []models.CompareResult) int {
	seen := make(map[int]struct{}, len(results))
	for _, r := range results {
		seen[r.OldIndex] = struct{}{}
	}
	return len(seen)
}
