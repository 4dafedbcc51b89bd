package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// loadEnv reads .env from the working directory when present
func loadEnv(logger *logrus.Logger) {
	if err := godotenv.Load(".env"); err != nil {
		logger.Debug("no .env file found, using system environment variables")
	} else {
		logger.Info("loaded .env")
	}
}

func main() {
	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Ctrl+C and SIGTERM cancel the run; a replay still writes its partial report
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.WithError(err).Error("routediff failed")
		stop()
		os.Exit(1)
	}
}
