package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/routediff/internal/compare"
	"github.com/aman-zulfiqar/routediff/internal/config"
	"github.com/aman-zulfiqar/routediff/internal/dedup"
	"github.com/aman-zulfiqar/routediff/internal/histogram"
	"github.com/aman-zulfiqar/routediff/internal/metrics"
	"github.com/aman-zulfiqar/routediff/internal/replay"
	"github.com/aman-zulfiqar/routediff/internal/report"
	"github.com/aman-zulfiqar/routediff/internal/router"
	"github.com/aman-zulfiqar/routediff/internal/storage"
)

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if runID == "" {
		runID = uuid.NewString()
	}
	log := logger.WithField("run_id", runID)
	m := metrics.New()

	client, err := router.NewClient(router.ClientConfig{
		OldURL:        cfg.OldURL,
		NewURL:        cfg.NewURL,
		Timeout:       cfg.RequestTimeout,
		UseBaseTokens: cfg.UseBaseTokens,
		RateLimitQPS:  cfg.RateLimitQPS,
		Policy:        cfg.RetryPolicy(),
		Metrics:       m,
		Logger:        logger,
	})
	if err != nil {
		return &config.ConfigError{Field: "router", Reason: "cannot build client", Err: err}
	}

	input, err := os.Open(cfg.LogFilePath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer input.Close()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	detailFile, err := report.OpenAppend(cfg.CompareResDetailPath)
	if err != nil {
		return err
	}
	closers = append(closers, detailFile)

	summaryFile, err := report.OpenAppend(cfg.CompareResPath)
	if err != nil {
		return err
	}
	closers = append(closers, summaryFile)

	detail, err := report.NewDetailWriter(detailFile)
	if err != nil {
		return err
	}
	recorders := storage.Multi{detail}

	var rclient *redis.Client
	if (cfg.DedupPairs && cfg.DedupBackend == "redis") || cfg.RedisChannel != "" {
		rclient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rclient.Ping(ctx).Err(); err != nil {
			_ = rclient.Close()
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		closers = append(closers, rclient)
	}

	recorders = append(recorders, openSinks(ctx, cfg, rclient, &closers)...)

	filter, err := newDedupFilter(cfg, rclient)
	if err != nil {
		return err
	}

	responses, err := openResponseLog(cfg, &closers)
	if err != nil {
		return err
	}

	engine := compare.NewEngine(compare.Config{
		RunID:     runID,
		Threshold: cfg.DivergenceThreshold,
		Recorder:  recorders,
		Metrics:   m,
		Logger:    logger,
	})

	deps := replay.Deps{
		Router:     client,
		Engine:     engine,
		Aggregator: histogram.NewAggregator(),
		Dedup:      filter,
		Metrics:    m,
		Logger:     logger,
		MaxRecords: cfg.MaxCount,
		RunID:      runID,
	}
	if responses != nil {
		deps.Responses = responses
	}
	session, err := replay.New(deps)
	if err != nil {
		return err
	}

	started := time.Now()
	rep, runErr := session.Run(ctx, input)
	interrupted := runErr != nil

	info := report.RunInfo{
		RunID:       runID,
		OldURL:      cfg.OldURL,
		NewURL:      cfg.NewURL,
		StartedAt:   started,
		Finished:    time.Now(),
		Interrupted: interrupted,
	}
	if err := report.WriteSummary(summaryFile, info, rep, session.Stats()); err != nil {
		log.WithError(err).Error("failed to write summary")
	}
	if _, err := rep.WriteTo(cmd.OutOrStdout()); err != nil {
		log.WithError(err).Warn("failed to print report")
	}

	if cfg.MetricsPath != "" {
		if err := m.WriteTextfile(cfg.MetricsPath); err != nil {
			log.WithError(err).Warn("failed to write metrics textfile")
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn("replay interrupted, partial report written")
			return nil
		}
		return runErr
	}
	return nil
}

// openSinks connects the optional divergence sinks. A sink that cannot be
// reached is logged and left out; it never stops the replay.
func openSinks(ctx context.Context, cfg *config.Config, rclient *redis.Client, closers *[]io.Closer) []storage.DivergenceRecorder {
	var sinks []storage.DivergenceRecorder

	if cfg.RedisChannel != "" && rclient != nil {
		sinks = append(sinks, storage.NewPubSub(rclient, cfg.RedisChannel, logger))
	}

	if cfg.ClickHouseAddr != "" {
		store, err := storage.NewClickHouseStore(ctx, storage.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Warn("ClickHouse divergence store disabled")
		} else {
			sinks = append(sinks, store)
			*closers = append(*closers, store)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		kp, err := storage.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = kp.Ping(pingCtx)
			cancel()
			if err != nil {
				_ = kp.Close()
			}
		}
		if err != nil {
			logger.WithError(err).Warn("Kafka divergence publisher disabled")
		} else {
			logger.WithFields(logrus.Fields{
				"brokers": cfg.KafkaBrokers,
				"topic":   cfg.KafkaTopic,
			}).Info("publishing divergences to Kafka")
			sinks = append(sinks, kp)
			*closers = append(*closers, kp)
		}
	}

	return sinks
}

func newDedupFilter(cfg *config.Config, rclient *redis.Client) (dedup.Filter, error) {
	if !cfg.DedupPairs {
		return dedup.Disabled{}, nil
	}
	if cfg.DedupBackend == "redis" {
		return dedup.NewRedis(rclient, runID)
	}
	return dedup.NewMemory(), nil
}

func openResponseLog(cfg *config.Config, closers *[]io.Closer) (*report.ResponseLog, error) {
	if cfg.OldResPath == "" && cfg.NewResPath == "" {
		return nil, nil
	}

	var oldW, newW io.Writer
	if cfg.OldResPath != "" {
		f, err := report.OpenAppend(cfg.OldResPath)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, f)
		oldW = f
	}
	if cfg.NewResPath != "" {
		f, err := report.OpenAppend(cfg.NewResPath)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, f)
		newW = f
	}
	return report.NewResponseLog(oldW, newW), nil
}
