package experiment

import (
	"iter"

	"github.com/vecnet/vecnet.openmalaria/internal/primes"
	"go.uber.org/zap"
)

// Scenario is one generated document and the arm chosen for each sweep.
type Scenario struct {
	// Index is the 1-based position of the scenario in its pass.
	Index      int
	Document   string
	Assignment Assignment
	Parameters map[string]string
	// Seed is the substituted @seed@ value, or 0 when seeding is off.
	Seed int
}

func (s *Scenario) String() string { return s.Document }

type generateConfig struct {
	seeds     bool
	seedFloor int
}

// GenerateOption configures one generation pass.
type GenerateOption func(*generateConfig)

// WithSeeds replaces @seed@ in every scenario with a distinct prime.
// Scenarios without the placeholder abort the pass with
// ErrSeedPlaceholder.
func WithSeeds() GenerateOption {
	return func(c *generateConfig) { c.seeds = true }
}

// WithSeedFloor sets where the seed sequence starts. It has no effect
// unless WithSeeds is also given.
func WithSeedFloor(floor int) GenerateOption {
	return func(c *generateConfig) { c.seedFloor = floor }
}

// Scenarios returns a lazy sequence of the experiment's scenarios. Each
// range over the sequence reduces the combinations afresh and, when
// seeding, starts a new seed sequence. The first error is yielded with a
// nil scenario and ends the sequence.
//
// Order among scenarios is not part of the contract.
func (e *Experiment) Scenarios(opts ...GenerateOption) iter.Seq2[*Scenario, error] {
	cfg := generateConfig{seedFloor: DefaultSeedFloor}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(yield func(*Scenario, error) bool) {
		plan := e.Reduce()
		e.logger.Debug("generating scenarios",
			zap.String("experiment", e.name),
			zap.Int("count", plan.Len()),
			zap.Bool("seeds", cfg.seeds))

		var seeds *primes.Sequence
		if cfg.seeds {
			seeds = primes.NewSequence(cfg.seedFloor)
		}

		for i := range plan.Len() {
			sc, err := e.scenario(plan.Assignment(i), seeds)
			if err != nil {
				yield(nil, err)
				return
			}
			sc.Index = i + 1
			if !yield(sc, nil) {
				return
			}
		}
	}
}

// Collect runs a full generation pass and returns every scenario.
func (e *Experiment) Collect(opts ...GenerateOption) ([]*Scenario, error) {
	var out []*Scenario
	for sc, err := range e.Scenarios(opts...) {
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (e *Experiment) scenario(a Assignment, seeds *primes.Sequence) (*Scenario, error) {
	doc, err := e.Apply(e.base, a)
	if err != nil {
		return nil, err
	}
	sc := &Scenario{Document: doc, Assignment: a, Parameters: a.Parameters()}
	if seeds != nil {
		sc.Document, sc.Seed, err = substituteSeed(doc, seeds)
		if err != nil {
			return nil, err
		}
	}
	return sc, nil
}
