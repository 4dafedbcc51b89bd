package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/routediff/internal/config"
	"github.com/aman-zulfiqar/routediff/internal/constants"
)

var (
	rootCmd = &cobra.Command{
		Use:   "routediff",
		Short: "Replay logged swap routing requests against two router versions and compare them",
		Long: `routediff reads swap routing requests from service logs, sends each one to an
old and a new router deployment, matches the candidate paths by topology and
reports how far the quoted amounts, fees, impact and USD values drift apart.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			logger.SetLevel(level)
			return nil
		},
	}
	configPath string
	logLevel   string

	replayCmd = &cobra.Command{
		Use:   "replay [config-file]",
		Short: "Replay a routing log against the old and new router and write the comparison report",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runReplay,
	}
	runID string

	pairsCmd = &cobra.Command{
		Use:   "pairs [config-file]",
		Short: "Count the distinct token pairs requested in a routing log",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPairs,
	}

	mockRouterCmd = &cobra.Command{
		Use:   "mockrouter",
		Short: "Serve a deterministic fake routing API for dry runs",
		Args:  cobra.NoArgs,
		RunE:  runMockRouter,
	}
	mockAddr      string
	mockPath      string
	mockSkew      float64
	mockFailFirst int
	mockRateLimit float64

	watchCmd = &cobra.Command{
		Use:   "watch [config-file]",
		Short: "Print divergences published by a running replay on Redis",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML or JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	replayCmd.Flags().StringVar(&runID, "run-id", "", "run identifier; reuse one to share the Redis dedup set between runs")

	mockRouterCmd.Flags().StringVar(&mockAddr, "addr", ":8080", "listen address")
	mockRouterCmd.Flags().StringVar(&mockPath, "path", constants.RouterPath, "routing endpoint path")
	mockRouterCmd.Flags().Float64Var(&mockSkew, "skew", 0, "scale every returned amount by 1+skew")
	mockRouterCmd.Flags().IntVar(&mockFailFirst, "fail-first", 0, "answer the first N routing requests with 503")
	mockRouterCmd.Flags().Float64Var(&mockRateLimit, "rate-limit", 0, "routing requests per second, 0 disables the limiter")

	rootCmd.AddCommand(replayCmd, pairsCmd, mockRouterCmd, watchCmd)
}

// loadConfig prefers the positional config file over --config, so both
// "routediff replay config.yaml" and "routediff replay -c config.yaml" work.
func loadConfig(args []string) (*config.Config, error) {
	path := configPath
	if len(args) > 0 {
		path = args[0]
	}
	return config.Load(path)
}
