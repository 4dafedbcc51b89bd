package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/routediff/internal/mockrouter"
)

func runMockRouter(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	srv := mockrouter.NewServer(mockrouter.Config{
		Addr:      mockAddr,
		Path:      mockPath,
		Skew:      mockSkew,
		FailFirst: mockFailFirst,
		RateLimit: mockRateLimit,
		Logger:    logger,
	})

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithFields(logrus.Fields{
		"addr": mockAddr,
		"path": mockPath,
		"skew": mockSkew,
	}).Info("mock router starting")

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// Wait for server to be fully shut down
	return srv.WaitClosed(context.Background())
}
