// Package expand drives one expansion run: it pulls scenarios from an
// experiment, writes them to disk and records the run in the manifest
// store when one is available.
package expand

import (
	"context"
	"errors"
	"fmt"

	"github.com/vecnet/vecnet.openmalaria/internal/emit"
	"github.com/vecnet/vecnet.openmalaria/internal/experiment"
	"github.com/vecnet/vecnet.openmalaria/internal/manifest"
	"go.uber.org/zap"
)

// RunStore is the subset of the manifest store an expansion needs.
type RunStore interface {
	CreateRun(p manifest.CreateRunParams) (string, error)
	AddScenario(p manifest.AddScenarioParams) (int64, error)
	FinishRun(id string, count int, runErr error) error
}

// Options controls a single run.
type Options struct {
	OutputDir    string
	FilePattern  string
	ManifestFile string
	Seed         bool
	// SeedFloor zero means experiment.DefaultSeedFloor.
	SeedFloor int
	// Source names where the description came from, for the run record.
	Source string
}

// Result describes a finished run.
type Result struct {
	RunID        string   `json:"run_id,omitempty"`
	Count        int      `json:"count"`
	Files        []string `json:"files"`
	ManifestPath string   `json:"manifest_path,omitempty"`
}

// Expander runs expansions. A nil store disables run recording.
type Expander struct {
	store  RunStore
	logger *zap.Logger
}

// New creates an Expander. store may be nil.
func New(store RunStore, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{store: store, logger: logger}
}

func (o Options) generateOptions() []experiment.GenerateOption {
	if !o.Seed {
		return nil
	}
	opts := []experiment.GenerateOption{experiment.WithSeeds()}
	if o.SeedFloor > 0 {
		opts = append(opts, experiment.WithSeedFloor(o.SeedFloor))
	}
	return opts
}

// Run writes every scenario of exp into opts.OutputDir. The context is
// checked between scenarios; on cancellation the files written so far
// are kept and the run is marked failed.
func (x *Expander) Run(ctx context.Context, exp *experiment.Experiment, opts Options) (out *Result, err error) {
	w, err := emit.NewWriter(emit.Options{
		Dir:          opts.OutputDir,
		FilePattern:  opts.FilePattern,
		ManifestFile: opts.ManifestFile,
		Sweeps:       exp.SweepNames(),
	})
	if err != nil {
		return nil, err
	}

	res := &Result{}
	log := x.logger.With(zap.String("experiment", exp.Name()))

	if x.store != nil {
		id, serr := x.store.CreateRun(manifest.CreateRunParams{
			Experiment: exp.Name(),
			Source:     opts.Source,
			OutputDir:  opts.OutputDir,
			Seeded:     opts.Seed,
		})
		if serr != nil {
			_ = w.Close()
			return nil, serr
		}
		res.RunID = id
		log = log.With(zap.String("run_id", id))
	}

	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("expand: close manifest: %w", cerr)
		}
		if x.store != nil {
			if ferr := x.store.FinishRun(res.RunID, res.Count, err); ferr != nil {
				log.Warn("could not finish run record", zap.Error(ferr))
			}
		}
		if err != nil {
			out = nil
			log.Error("expansion failed", zap.Int("written", res.Count), zap.Error(err))
			return
		}
		res.Files = w.Files()
		res.ManifestPath = w.ManifestPath()
		log.Info("expansion finished",
			zap.Int("count", res.Count),
			zap.String("output_dir", opts.OutputDir))
	}()

	log.Info("expansion started",
		zap.String("output_dir", opts.OutputDir),
		zap.Bool("seeds", opts.Seed))

	for sc, gerr := range exp.Scenarios(opts.generateOptions()...) {
		if gerr != nil {
			return nil, gerr
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("expand: interrupted after %d scenarios: %w", res.Count, cerr)
		}
		path, werr := w.Write(sc)
		if werr != nil {
			return nil, werr
		}
		if x.store != nil {
			if _, serr := x.store.AddScenario(manifest.AddScenarioParams{
				RunID:      res.RunID,
				Index:      sc.Index,
				File:       path,
				Seed:       seedOf(sc),
				Parameters: sc.Parameters,
				Document:   sc.Document,
			}); serr != nil {
				return nil, serr
			}
		}
		res.Count++
		log.Debug("scenario written", zap.Int("index", sc.Index), zap.String("file", path))
	}

	return res, nil
}

// Preview returns up to limit scenarios without writing anything. Only
// the scenarios returned are generated. limit <= 0 means all.
func (x *Expander) Preview(ctx context.Context, exp *experiment.Experiment, limit int, seed bool) ([]*experiment.Scenario, error) {
	opts := Options{Seed: seed}
	var out []*experiment.Scenario
	for sc, err := range exp.Scenarios(opts.generateOptions()...) {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, sc)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// IsUserError reports whether err comes from the experiment description
// rather than from the environment.
func IsUserError(err error) bool {
	return errors.Is(err, experiment.ErrInputFormat) ||
		errors.Is(err, experiment.ErrLookup) ||
		errors.Is(err, experiment.ErrSeedPlaceholder)
}

func seedOf(sc *experiment.Scenario) *int64 {
	if sc.Seed == 0 {
		return nil
	}
	s := int64(sc.Seed)
	return &s
}
