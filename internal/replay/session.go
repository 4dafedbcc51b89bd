package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/routediff/internal/compare"
	"github.com/aman-zulfiqar/routediff/internal/dedup"
	"github.com/aman-zulfiqar/routediff/internal/histogram"
	"github.com/aman-zulfiqar/routediff/internal/logparse"
	"github.com/aman-zulfiqar/routediff/internal/metrics"
	"github.com/aman-zulfiqar/routediff/internal/models"
)

// RouterCaller looks a request up on both router versions.
type RouterCaller interface {
	CallOld(ctx context.Context, req *models.SwapRequest) (*models.RouterResponse, error)
	CallNew(ctx context.Context, req *models.SwapRequest) (*models.RouterResponse, error)
}

// ResponseRecorder keeps the raw responses of every compared record.
type ResponseRecorder interface {
	LogResponses(index uint64, req *models.SwapRequest, oldResp, newResp *models.RouterResponse) error
}

// Deps contains dependencies required to create a new Session
type Deps struct {
	Router     RouterCaller
	Engine     *compare.Engine
	Aggregator *histogram.Aggregator // a fresh one is created when nil
	Dedup      dedup.Filter          // nil disables pair dedup
	Responses  ResponseRecorder      // optional
	Metrics    *metrics.Collectors
	Logger     *logrus.Logger

	// MaxRecords stops the run after this many compared records, 0 means
	// no limit.
	MaxRecords uint64
	RunID      string
}

// Stats counts what happened to each line of the input.
type Stats struct {
	LinesRead    uint64
	Skipped      uint64 // no routing sentinel
	ParseErrors  uint64
	Duplicates   uint64
	CallFailures uint64
	Processed    uint64
}

// Session replays one log against both routers. It processes one line at a
// time and is not safe for concurrent use.
type Session struct {
	runID      string
	router     RouterCaller
	engine     *compare.Engine
	agg        *histogram.Aggregator
	dedup      dedup.Filter
	responses  ResponseRecorder
	metrics    *metrics.Collectors
	logger     *logrus.Logger
	maxRecords uint64

	stats Stats
	now   func() time.Time
}

func New(d Deps) (*Session, error) {
	if d.Router == nil {
		return nil, errors.New("router caller is required")
	}
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.RunID == "" {
		d.RunID = uuid.NewString()
	}
	if d.Engine == nil {
		d.Engine = compare.NewEngine(compare.Config{RunID: d.RunID, Metrics: d.Metrics, Logger: d.Logger})
	}
	if d.Aggregator == nil {
		d.Aggregator = histogram.NewAggregator()
	}
	if d.Dedup == nil {
		d.Dedup = dedup.Disabled{}
	}

	return &Session{
		runID:      d.RunID,
		router:     d.Router,
		engine:     d.Engine,
		agg:        d.Aggregator,
		dedup:      d.Dedup,
		responses:  d.Responses,
		metrics:    d.Metrics,
		logger:     d.Logger,
		maxRecords: d.MaxRecords,
		now:        time.Now,
	}, nil
}

func (s *Session) RunID() string {
	return s.runID
}

func (s *Session) Stats() Stats {
	return s.stats
}

// Run replays every line of r. The report covers whatever was folded before
// the run ended, so it is returned even when ctx is cancelled.
func (s *Session) Run(ctx context.Context, r io.Reader) (*histogram.Report, error) {
	start := s.now()
	s.logger.WithFields(logrus.Fields{
		"run_id":      s.runID,
		"max_records": s.maxRecords,
	}).Info("replay started")

	err := logparse.Lines(ctx, r, func(line string) error {
		if s.limitReached() {
			return logparse.ErrStop
		}
		return s.ProcessLine(ctx, line)
	})

	report := s.agg.Finalize()

	s.logger.WithFields(logrus.Fields{
		"run_id":        s.runID,
		"lines":         s.stats.LinesRead,
		"processed":     s.stats.Processed,
		"skipped":       s.stats.Skipped,
		"parse_errors":  s.stats.ParseErrors,
		"duplicates":    s.stats.Duplicates,
		"call_failures": s.stats.CallFailures,
		"elapsed":       s.now().Sub(start).Round(time.Millisecond),
	}).Info("replay finished")

	if err != nil {
		return report, fmt.Errorf("replay interrupted: %w", err)
	}
	return report, nil
}

func (s *Session) limitReached() bool {
	return s.maxRecords > 0 && s.stats.Processed >= s.maxRecords
}

// ProcessLine handles a single log line. Only context errors are returned;
// every other failure is logged and counted so the run can go on.
func (s *Session) ProcessLine(ctx context.Context, line string) error {
	s.stats.LinesRead++

	if !logparse.IsSwapRouting(line) {
		s.stats.Skipped++
		s.metrics.IncLine("skipped")
		return nil
	}

	req, err := logparse.Extract(line)
	if err != nil {
		s.stats.ParseErrors++
		s.metrics.IncLine("parse_error")
		s.logger.WithError(err).WithField("line", s.stats.LinesRead).Warn("skipping unparseable log line")
		return nil
	}

	// the pair is marked before the calls, so a pair whose calls fail is not
	// retried on a later line
	seen, err := s.dedup.Seen(ctx, req.Pair())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.WithError(err).WithField("pair", req.Pair()).Warn("dedup lookup failed, processing anyway")
	}
	if seen {
		s.stats.Duplicates++
		s.metrics.IncLine("duplicate")
		return nil
	}

	oldStart := s.now()
	oldResp, err := s.router.CallOld(ctx, req)
	oldDur := s.now().Sub(oldStart)
	if err != nil {
		return s.callFailed(ctx, req, err)
	}

	newStart := s.now()
	newResp, err := s.router.CallNew(ctx, req)
	newDur := s.now().Sub(newStart)
	if err != nil {
		return s.callFailed(ctx, req, err)
	}

	index := s.stats.Processed

	if s.responses != nil {
		if err := s.responses.LogResponses(index, req, oldResp, newResp); err != nil {
			s.logger.WithError(err).Warn("failed to write raw responses")
		}
	}

	if !oldResp.HasData() || !newResp.HasData() {
		s.logger.WithFields(logrus.Fields{
			"pair":     req.Pair(),
			"old_code": oldResp.Code,
			"new_code": newResp.Code,
		}).Debug("router returned no path data")
	}

	considered, results := s.engine.Compare(ctx, index, req, oldResp.Data, newResp.Data)
	s.agg.Fold(considered, results, histogram.Timing{Old: oldDur, New: newDur})

	matched := compare.MatchedOld(results)
	s.metrics.AddTopology(matched, considered-matched)
	s.metrics.IncLine("processed")
	s.stats.Processed++

	s.logger.WithFields(logrus.Fields{
		"index":      index,
		"pair":       req.Pair(),
		"considered": considered,
		"matched":    matched,
		"old_ms":     oldDur.Milliseconds(),
		"new_ms":     newDur.Milliseconds(),
	}).Debug("record compared")

	return nil
}

func (s *Session) callFailed(ctx context.Context, req *models.SwapRequest, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.stats.CallFailures++
	s.metrics.IncLine("call_failed")
	s.logger.WithError(err).WithFields(logrus.Fields{
		"pair":      req.Pair(),
		"in_amount": req.InAmount,
	}).Warn("failed to get router responses, skipping record")
	return nil
}
