// omsweep expands parameter-sweep experiment descriptions into one
// simulation scenario file per combination of sweep arms.
//
// Usage:
//
//	omsweep expand experiment.yaml -o scenarios --seed
//	omsweep inspect experiment.yaml
//	omsweep preview experiment.yaml -n 2
//	omsweep runs
//	omsweep serve    # MCP server (stdio transport)
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vecnet/vecnet.openmalaria/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the state shared by every subcommand.
type app struct {
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "omsweep",
		Short: "Expand experiment descriptions into simulation scenarios",
		Long: `omsweep turns an experiment description (a base scenario template, named
sweeps of parameter arms and optional combination groups) into one scenario
document per final assignment of arms.

Sweeps that no combination group mentions are crossed fully factorially
with everything else.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "Config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		a.expandCmd(),
		a.inspectCmd(),
		a.previewCmd(),
		a.runsCmd(),
		a.serveCmd(),
		a.versionCmd(),
	)
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := cfg.Level()
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if a.verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
