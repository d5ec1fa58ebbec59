package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/vecnet/vecnet.openmalaria/internal/expand"
	"github.com/vecnet/vecnet.openmalaria/internal/experiment"
	"github.com/vecnet/vecnet.openmalaria/internal/manifest"
	omserver "github.com/vecnet/vecnet.openmalaria/internal/server"
	"go.uber.org/zap"
)

func (a *app) load(path string) (*experiment.Experiment, error) {
	return experiment.LoadFile(path,
		experiment.WithLogger(a.logger),
		experiment.WithBaseDir(filepath.Dir(path)),
	)
}

// openStore opens the run manifest. A failure is logged and recording is
// skipped; the returned cleanup is always safe to call.
func (a *app) openStore() (*manifest.Store, func()) {
	st, err := manifest.New(manifest.Config{DataDir: a.cfg.DataDir})
	if err != nil {
		a.logger.Warn("run manifest disabled", zap.Error(err))
		return nil, func() {}
	}
	return st, func() {
		if err := st.Close(); err != nil {
			a.logger.Warn("run manifest close", zap.Error(err))
		}
	}
}

func (a *app) expandCmd() *cobra.Command {
	var (
		outDir     string
		pattern    string
		manifestFn string
		seed       bool
		seedFloor  int64
		noManifest bool
		noRecord   bool
	)
	cmd := &cobra.Command{
		Use:   "expand FILE",
		Short: "Write one scenario file per final assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := a.load(args[0])
			if err != nil {
				return err
			}

			opts := expand.Options{
				OutputDir:    firstNonEmpty(outDir, a.cfg.OutputDir),
				FilePattern:  firstNonEmpty(pattern, a.cfg.FilePattern),
				ManifestFile: firstNonEmpty(manifestFn, a.cfg.ManifestFile),
				Seed:         seed,
				SeedFloor:    int(a.cfg.SeedFloor),
				Source:       args[0],
			}
			if cmd.Flags().Changed("seed-floor") {
				if seedFloor < 1 {
					return fmt.Errorf("--seed-floor must be positive, got %d", seedFloor)
				}
				opts.SeedFloor = int(seedFloor)
			}
			if noManifest {
				opts.ManifestFile = ""
			}

			var runs expand.RunStore
			if a.cfg.RecordRuns && !noRecord {
				st, closeStore := a.openStore()
				defer closeStore()
				if st != nil {
					runs = st
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := expand.New(runs, a.logger).Run(ctx, exp, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d scenarios generated\n", res.Count)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Output directory (default from config)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "File name pattern with one %d (default from config)")
	cmd.Flags().StringVar(&manifestFn, "manifest", "", "CSV manifest file name (default from config)")
	cmd.Flags().BoolVar(&noManifest, "no-manifest", false, "Do not write the CSV manifest")
	cmd.Flags().BoolVar(&seed, "seed", false, "Replace @seed@ with a distinct prime per scenario")
	cmd.Flags().Int64Var(&seedFloor, "seed-floor", 0, "Seeds start at the smallest prime not below this (default from config)")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not record the run in the manifest database")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize sweeps, groups and the scenario count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := a.load(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Experiment: %s\n", exp)
			fmt.Fprintf(a.out, "Scenarios:  %d\n", exp.Count())
			fmt.Fprintln(a.out, "Sweeps:")
			for _, name := range exp.SweepNames() {
				sweep, _ := exp.Sweep(name)
				fmt.Fprintf(a.out, "  %s: %s\n", name, strings.Join(sweep.ArmNames(), ", "))
			}
			if groups := exp.Groups(); len(groups) > 0 {
				fmt.Fprintln(a.out, "Groups:")
				for _, g := range groups {
					fmt.Fprintf(a.out, "  %s: [%s] %d assignments\n", g.Name, strings.Join(g.Sweeps, ", "), len(g.Assignments))
				}
			}
			if ff := exp.FullyFactorial(); len(ff) > 0 {
				fmt.Fprintf(a.out, "Fully factorial: %s\n", strings.Join(ff, ", "))
			}
			return nil
		},
	}
}

func (a *app) previewCmd() *cobra.Command {
	var (
		limit int
		seed  bool
	)
	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Print the first scenarios without writing files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := a.load(args[0])
			if err != nil {
				return err
			}
			scenarios, err := expand.New(nil, a.logger).Preview(cmd.Context(), exp, limit, seed)
			if err != nil {
				return err
			}
			for _, sc := range scenarios {
				header := fmt.Sprintf("# scenario %d", sc.Index)
				if sc.Seed != 0 {
					header += fmt.Sprintf(" seed=%d", sc.Seed)
				}
				fmt.Fprintln(a.out, header)
				fmt.Fprintln(a.out, strings.TrimRight(sc.Document, "\n"))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "number", "n", 1, "Number of scenarios to print (0 for all)")
	cmd.Flags().BoolVar(&seed, "seed", false, "Replace @seed@ with a distinct prime per scenario")
	return cmd
}

func (a *app) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded expansion runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := manifest.New(manifest.Config{DataDir: a.cfg.DataDir})
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.RecentRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.out, "No runs recorded yet.")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEXPERIMENT\tSTATUS\tSCENARIOS\tSTARTED\tOUTPUT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.Experiment, r.Status, r.ScenarioCount, r.StartedAt, r.OutputDir)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "number", "n", 10, "Number of runs to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show RUN_ID",
		Short: "Print one run and its scenarios as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := manifest.New(manifest.Config{DataDir: a.cfg.DataDir})
			if err != nil {
				return err
			}
			defer st.Close()

			data, err := st.Export(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		},
	})
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := omserver.New(a.cfg, a.logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			a.logger.Info("serving MCP over stdio", zap.String("version", omserver.Version))
			return server.ServeStdio(s)
		},
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.out, "omsweep v%s\n", omserver.Version)
			return nil
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
