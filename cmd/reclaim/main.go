package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/spf13/cobra"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	configPath      string
	verbose         bool
	debug           bool
	metricsTextfile string
	outputFmt       string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, scanner.ErrScanCancelled) || errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "cancelled")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Find and safely remove reclaimable disk space",
	Long: `reclaim finds disk space held by caches, logs, build artifacts and the
leftovers of uninstalled applications, and removes it safely: protected paths
are never touched, data of running applications is skipped, ordinary items go
to the trash and every removal is written to an operation log.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file when done")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "summary", "output format (summary, table, json, yaml)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(orphansCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(sizeCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(whitelistCmd)
	rootCmd.AddCommand(configCmd)
}
