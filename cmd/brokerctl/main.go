package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/david/contract-broker/internal/app"
	"github.com/david/contract-broker/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "brokerctl",
	Short:         "Operate the contract-broker back office",
	Long:          "brokerctl runs ingestion cycles, inspects the run ledger and follow-ups, sends outreach and reports, and mints admin tokens.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "directory holding config.yaml")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(followupsCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(tokenCmd)
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	var paths []string
	if flagConfig != "" {
		paths = append(paths, flagConfig)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, config.NewLogger(cfg.Log), nil
}

// withApp builds the full application for one command and closes it afterwards.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
