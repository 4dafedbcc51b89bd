package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/routediff/internal/config"
	"github.com/aman-zulfiqar/routediff/internal/models"
	"github.com/aman-zulfiqar/routediff/internal/storage"
)

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if cfg.RedisAddr == "" {
		return &config.ConfigError{Field: "redisAddr", Reason: "is required to watch divergences"}
	}

	ctx := cmd.Context()
	rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rclient.Close()
	if err := rclient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ps := storage.NewPubSub(rclient, cfg.RedisChannel, logger)
	out := cmd.OutOrStdout()

	err = ps.Subscribe(ctx, func(d *models.Divergence) {
		if d.Request == nil {
			d.Request = &models.SwapRequest{}
		}
		logger.WithFields(logrus.Fields{
			"run_id": d.RunID,
			"record": d.RecordIndex,
			"pair":   d.Request.Pair(),
			"diff":   d.DiffAmount,
		}).Info("divergence")
		fmt.Fprintf(out, "%s old=%s new=%s diff=%.4f%%\n",
			d.Request.Pair(), derefAmount(d.Old.Amount), derefAmount(d.New.Amount), d.DiffAmount*100)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func derefAmount(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
