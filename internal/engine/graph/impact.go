package graph

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnitNotFound = errors.New("unit not found")

// ImpactReport lists the units that depend on a target, directly or through
// other units.
type ImpactReport struct {
	Target               string
	DirectDependents     []string
	TransitiveDependents []string
}

type UnitNotFoundError struct {
	Name string
}

func (e *UnitNotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnitNotFound, e.Name)
}

func (e *UnitNotFoundError) Unwrap() error {
	return ErrUnitNotFound
}

// Impact walks incoming edges breadth-first from the target unit.
func (g *Graph) Impact(name string) (ImpactReport, error) {
	if !g.HasUnit(name) {
		return ImpactReport{}, &UnitNotFoundError{Name: name}
	}
	report := ImpactReport{Target: name}

	direct := make([]string, 0, len(g.incoming[name]))
	for _, e := range g.incoming[name] {
		if e.From != name {
			direct = append(direct, e.From)
		}
	}
	report.DirectDependents = direct

	seen := map[string]bool{name: true}
	for _, d := range direct {
		seen[d] = true
	}
	queue := append([]string(nil), direct...)
	transitive := make([]string, 0)
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, e := range g.incoming[curr] {
			if seen[e.From] {
				continue
			}
			seen[e.From] = true
			queue = append(queue, e.From)
			transitive = append(transitive, e.From)
		}
	}
	sort.Strings(transitive)
	report.TransitiveDependents = transitive
	return report, nil
}
