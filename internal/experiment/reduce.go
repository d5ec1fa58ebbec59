package experiment

import (
	"go.uber.org/zap"
)

// Pair is one (sweep, arm) choice inside an assignment.
type Pair struct {
	Sweep string `json:"sweep"`
	Arm   string `json:"arm"`
}

// Assignment is one complete arm selection, in substitution order.
type Assignment []Pair

// Parameters returns the assignment as a sweep -> arm mapping. If a
// sweep appears more than once the last choice wins.
func (a Assignment) Parameters() map[string]string {
	params := make(map[string]string, len(a))
	for _, p := range a {
		params[p.Sweep] = p.Arm
	}
	return params
}

// Plan is the reduced combination set: one sweep order shared by every
// assignment row.
type Plan struct {
	Sweeps      []string
	Assignments [][]string
}

// Len returns the number of final assignments.
func (p *Plan) Len() int { return len(p.Assignments) }

// Assignment returns the i-th final assignment as (sweep, arm) pairs.
func (p *Plan) Assignment(i int) Assignment {
	row := p.Assignments[i]
	a := make(Assignment, len(p.Sweeps))
	for j, sweep := range p.Sweeps {
		a[j] = Pair{Sweep: sweep, Arm: row[j]}
	}
	return a
}

// FullyFactorial returns the sweeps no combination group applies, in
// sorted order.
func (e *Experiment) FullyFactorial() []string {
	claimed := make(map[string]bool)
	for _, g := range e.groups {
		for _, s := range g.Sweeps {
			claimed[s] = true
		}
	}
	var out []string
	for _, name := range e.SweepNames() {
		if !claimed[name] {
			out = append(out, name)
		}
	}
	return out
}

// Reduce computes the final assignments. Explicit groups come first, in
// group-name order, followed by one synthesized group per fully factorial
// sweep listing each of its arms. Groups are then joined pairwise, front
// to back, each join concatenating sweeps and taking the cross product of
// assignments, until a single group remains.
//
// Arm names are not checked here; unknown arms fail during substitution.
// Sweeps applied by more than one group are logged and kept.
func (e *Experiment) Reduce() *Plan {
	seen := make(map[string]string)
	groups := make([]Group, 0, len(e.groups)+len(e.sweeps))
	for _, g := range e.groups {
		for _, s := range g.Sweeps {
			if prev, dup := seen[s]; dup {
				e.logger.Warn("sweep applied by more than one combination group",
					zap.String("sweep", s),
					zap.String("group", g.Name),
					zap.String("previous_group", prev))
			}
			seen[s] = g.Name
		}
		groups = append(groups, g.clone())
	}

	factorial := e.FullyFactorial()
	e.logger.Debug("fully factorial sweeps", zap.Strings("sweeps", factorial))
	for _, name := range factorial {
		arms := e.sweeps[name].ArmNames()
		assignments := make([][]string, len(arms))
		for i, arm := range arms {
			assignments[i] = []string{arm}
		}
		groups = append(groups, Group{Name: name, Sweeps: []string{name}, Assignments: assignments})
	}

	if len(groups) == 0 {
		return &Plan{Sweeps: []string{}, Assignments: [][]string{{}}}
	}

	for step := 1; len(groups) > 1; step++ {
		joined := outerJoin(groups[0], groups[1])
		groups = append([]Group{joined}, groups[2:]...)
		e.logger.Debug("reduced combination groups",
			zap.Int("step", step),
			zap.Strings("sweeps", joined.Sweeps),
			zap.Int("assignments", len(joined.Assignments)))
	}
	return &Plan{Sweeps: groups[0].Sweeps, Assignments: groups[0].Assignments}
}

// Count returns the number of scenarios the experiment expands to.
func (e *Experiment) Count() int {
	return e.Reduce().Len()
}

// outerJoin pairs every assignment of left with every assignment of
// right, left arms first.
func outerJoin(left, right Group) Group {
	sweeps := make([]string, 0, len(left.Sweeps)+len(right.Sweeps))
	sweeps = append(sweeps, left.Sweeps...)
	sweeps = append(sweeps, right.Sweeps...)

	assignments := make([][]string, 0, len(left.Assignments)*len(right.Assignments))
	for _, l := range left.Assignments {
		for _, r := range right.Assignments {
			row := make([]string, 0, len(l)+len(r))
			row = append(row, l...)
			row = append(row, r...)
			assignments = append(assignments, row)
		}
	}
	return Group{Name: left.Name + "*" + right.Name, Sweeps: sweeps, Assignments: assignments}
}
