package experiment

import (
	"fmt"
	"slices"
)

// DefaultGroupName names the single group of a flat combinations list.
const DefaultGroupName = "default"

// Group is one combination group: the sweeps it applies explicitly and
// the arm tuples allowed for them. Each assignment lists one arm name per
// applied sweep, in the same order as Sweeps.
//
// A group with no sweeps and one empty assignment only marks the
// remaining sweeps as fully factorial.
type Group struct {
	Name        string     `json:"name"`
	Sweeps      []string   `json:"sweeps"`
	Assignments [][]string `json:"assignments"`
}

func (g Group) clone() Group {
	c := Group{
		Name:        g.Name,
		Sweeps:      slices.Clone(g.Sweeps),
		Assignments: make([][]string, len(g.Assignments)),
	}
	for i, a := range g.Assignments {
		c.Assignments[i] = slices.Clone(a)
	}
	return c
}

// parseCombinations normalizes the "combinations" entry into groups.
// Accepted forms: absent (no groups), a flat list [sweeps, a1, a2, ...]
// (one group) or a mapping of group name to such a list.
func parseCombinations(raw any) ([]Group, error) {
	if raw == nil {
		return nil, nil
	}
	if list, ok := raw.([]any); ok {
		g, err := parseGroup(DefaultGroupName, list)
		if err != nil {
			return nil, err
		}
		return []Group{g}, nil
	}

	m, ok := asMapping(raw)
	if !ok {
		return nil, formatErrorf("\"combinations\" must be a list or a mapping of lists, got %T", raw)
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)

	groups := make([]Group, 0, len(names))
	for _, name := range names {
		var list []any
		if m[name] != nil {
			l, ok := m[name].([]any)
			if !ok {
				return nil, formatErrorf("combination group %q must be a list, got %T", name, m[name])
			}
			list = l
		}
		g, err := parseGroup(name, list)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func parseGroup(name string, list []any) (Group, error) {
	if len(list) == 0 {
		return Group{Name: name, Sweeps: []string{}, Assignments: [][]string{{}}}, nil
	}

	sweeps, err := stringList(list[0])
	if err != nil {
		return Group{}, formatErrorf("combination group %q: sweep list: %v", name, err)
	}
	assignments := make([][]string, 0, len(list)-1)
	for i, raw := range list[1:] {
		arms, err := stringList(raw)
		if err != nil {
			return Group{}, formatErrorf("combination group %q: assignment %d: %v", name, i+1, err)
		}
		if len(arms) != len(sweeps) {
			return Group{}, formatErrorf("combination group %q: assignment %d names %d arms for %d sweeps",
				name, i+1, len(arms), len(sweeps))
		}
		assignments = append(assignments, arms)
	}
	return Group{Name: name, Sweeps: sweeps, Assignments: assignments}, nil
}

// stringList converts a decoded list of scalars into strings. Numeric
// arm names are accepted and rendered in decimal.
func stringList(raw any) ([]string, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", raw)
	}
	out := make([]string, len(list))
	for i, item := range list {
		v, err := valueOf(item)
		if err != nil {
			return nil, err
		}
		out[i] = v.String()
	}
	return out, nil
}
