package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/routediff/internal/pairs"
)

func runPairs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if err := cfg.ValidateLogFile(); err != nil {
		return err
	}

	f, err := os.Open(cfg.LogFilePath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	census, err := pairs.Count(cmd.Context(), f)
	if err != nil {
		return err
	}

	logger.WithField("pairs", census.Distinct()).Info("token pair census complete")
	_, err = census.WriteTo(cmd.OutOrStdout())
	return err
}
