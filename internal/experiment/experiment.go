// Package experiment expands OpenMalaria experiment descriptions into
// concrete scenario documents.
//
// A description holds a base template, named sweeps of arms (each arm a
// set of @placeholder@ substitutions) and combination groups.
// Sweeps named by a combination group contribute only the arm tuples the
// group lists; every other sweep is fully factorial. The reducer joins
// all groups into one flat list of assignments and the producer applies
// each assignment to the template, lazily, one scenario at a time.
//
// An Experiment is not safe for concurrent use. AddSweep and AddArm
// mutate it in place.
package experiment

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"
)

const (
	// DefaultName is the display name of a description without "name".
	DefaultName = "Unnamed Experiment"

	// SeedPlaceholder is replaced by a generated prime when seeding is on.
	SeedPlaceholder = "@seed@"

	// DefaultSeedFloor is where the seed sequence starts; the first seed
	// is the smallest prime at or above it.
	DefaultSeedFloor = 1000
)

// Experiment is a parsed experiment description.
type Experiment struct {
	name    string
	base    string
	sweeps  map[string]Sweep
	groups  []Group
	baseDir string
	logger  *zap.Logger
}

// Option configures an Experiment at construction.
type Option func(*Experiment)

// WithLogger sets the logger used for reduction diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Experiment) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBaseDir resolves relative "basefile" and file:// paths against dir
// instead of the working directory.
func WithBaseDir(dir string) Option {
	return func(e *Experiment) { e.baseDir = dir }
}

// New builds an Experiment from a description. The description may be a
// decoded mapping, JSON or YAML text (string or []byte) or an io.Reader
// yielding such text. Anything that is not a mapping once decoded fails
// with ErrInputFormat.
//
// Combination groups are checked eagerly: an assignment naming a different
// number of arms than its group has sweeps fails here with ErrInputFormat.
// A "basefile" entry is read immediately; I/O errors are returned as-is.
func New(description any, opts ...Option) (*Experiment, error) {
	var (
		tree any
		err  error
	)
	switch d := description.(type) {
	case string:
		tree, err = decode([]byte(d))
	case []byte:
		tree, err = decode(d)
	case io.Reader:
		tree, err = decodeReader(d)
	default:
		tree = d
	}
	if err != nil {
		return nil, err
	}

	m, ok := asMapping(tree)
	if !ok {
		return nil, formatErrorf("experiment description must be a mapping, got %T", tree)
	}

	e := &Experiment{
		name:   DefaultName,
		sweeps: make(map[string]Sweep),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.load(m); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadFile reads and parses the description stored at path.
func LoadFile(path string, opts ...Option) (*Experiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("experiment: open description: %w", err)
	}
	defer f.Close()
	return New(f, opts...)
}

func (e *Experiment) load(m map[string]any) error {
	if raw, ok := m["name"]; ok && raw != nil {
		if s, ok := raw.(string); ok {
			e.name = s
		} else {
			e.name = fmt.Sprint(raw)
		}
	}

	if raw, ok := m["base"]; ok {
		s, ok := raw.(string)
		if !ok {
			return formatErrorf("\"base\" must be a string, got %T", raw)
		}
		e.base = s
	}

	if raw, ok := m["basefile"]; ok {
		path, ok := raw.(string)
		if !ok {
			return formatErrorf("\"basefile\" must be a string, got %T", raw)
		}
		data, err := os.ReadFile(e.resolvePath(path))
		if err != nil {
			return fmt.Errorf("experiment: read basefile: %w", err)
		}
		e.base = string(data)
	} else if _, ok := m["base"]; !ok {
		return formatErrorf("description has neither \"base\" nor \"basefile\"")
	}

	if raw, ok := m["sweeps"]; ok && raw != nil {
		sweeps, err := parseSweeps(raw)
		if err != nil {
			return err
		}
		e.sweeps = sweeps
	}

	groups, err := parseCombinations(m["combinations"])
	if err != nil {
		return err
	}
	e.groups = groups
	return nil
}

func parseSweeps(raw any) (map[string]Sweep, error) {
	sm, ok := asMapping(raw)
	if !ok {
		return nil, formatErrorf("\"sweeps\" must be a mapping, got %T", raw)
	}
	sweeps := make(map[string]Sweep, len(sm))
	for sweepName, rawSweep := range sm {
		am, ok := asMapping(rawSweep)
		if !ok {
			return nil, formatErrorf("sweep %q must be a mapping of arms, got %T", sweepName, rawSweep)
		}
		sweep := make(Sweep, len(am))
		for armName, rawArm := range am {
			pm, ok := asMapping(rawArm)
			if !ok {
				return nil, formatErrorf("arm %q of sweep %q must be a mapping, got %T", armName, sweepName, rawArm)
			}
			arm, err := parseArm(pm)
			if err != nil {
				return nil, formatErrorf("arm %q of sweep %q: %v", armName, sweepName, err)
			}
			sweep[armName] = arm
		}
		sweeps[sweepName] = sweep
	}
	return sweeps, nil
}

// Name returns the display name of the experiment.
func (e *Experiment) Name() string { return e.name }

func (e *Experiment) String() string { return e.name }

// Base returns the base template.
func (e *Experiment) Base() string { return e.base }

// SetBase replaces the base template.
func (e *Experiment) SetBase(template string) { e.base = template }

// SweepNames returns every sweep name in sorted order.
func (e *Experiment) SweepNames() []string {
	names := make([]string, 0, len(e.sweeps))
	for name := range e.sweeps {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Sweep returns the named sweep.
func (e *Experiment) Sweep(name string) (Sweep, bool) {
	s, ok := e.sweeps[name]
	return s, ok
}

// Groups returns a copy of the combination groups.
func (e *Experiment) Groups() []Group {
	out := make([]Group, len(e.groups))
	for i, g := range e.groups {
		out[i] = g.clone()
	}
	return out
}

// AddSweep creates an empty sweep, replacing any sweep with that name.
func (e *Experiment) AddSweep(name string) {
	e.sweeps[name] = make(Sweep)
}

// AddArm inserts or replaces an arm. The sweep must already exist.
func (e *Experiment) AddArm(sweepName, armName string, params Arm) error {
	sweep, ok := e.sweeps[sweepName]
	if !ok {
		return lookupErrorf("sweep %q not found", sweepName)
	}
	arm := make(Arm, len(params))
	for token, v := range params {
		arm[token] = v
	}
	sweep[armName] = arm
	return nil
}

func (e *Experiment) resolvePath(path string) string {
	if e.baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.baseDir, path)
}
