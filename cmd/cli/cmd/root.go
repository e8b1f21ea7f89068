// Package cmd provides the CLI commands for fibre-cost.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"fibre-cost/core/output"
	"fibre-cost/core/ui"
	"fibre-cost/internal/app"
	"fibre-cost/internal/config"
	"fibre-cost/internal/logging"
)

// Version is set at build time
var Version = "0.1.0"

var (
	cfgFile      string
	verbose      bool
	outputFormat string
	noColor      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fibre-cost",
	Short: "Estimate fibre deployment costs",
	Long: `fibre-cost estimates the cost of fibre network deployments.

It runs a deterministic cost engine over a versioned cost catalog, with
advisory risk, timeline and optimization stages backed by a language model
oracle, and records every estimate for review.

Examples:
  fibre-cost estimate --distance 500 --premises 68 --build-type urban
  fibre-cost compare --distance 500 --premises 68 --build-type urban --format json
  fibre-cost audit status <request-id> approved --actor alice
  fibre-cost serve --addr :8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the CLI
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logging.Sync()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fibre-cost/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "cli", "output format (cli, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() error {
	path := cfgFile
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".fibre-cost", "config.json")
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	config.Set(cfg)

	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
	return nil
}

// openApp wires the engine and stores from the loaded configuration
func openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, config.Get(), Version)
}

// newWriter returns a terminal writer honouring --no-color and --verbose
func newWriter(out io.Writer) *ui.Writer {
	w := ui.NewWriter(out, noColor)
	if verbose {
		w.SetVerbosity(2)
	}
	return w
}

func formatter() (output.Formatter, error) {
	return output.New(outputFormat, noColor || os.Getenv("NO_COLOR") != "")
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fibre-cost version %s\n", Version)
	},
}
