package history

import (
	"fmt"
	"sort"
)

// BuildTrendReport compares every run with the one before it. runs must be
// in chronological order, as LoadRuns returns them.
func BuildTrendReport(projectKey string, runs []Run) (TrendReport, error) {
	if len(runs) == 0 {
		return TrendReport{}, fmt.Errorf("no runs recorded for project %q", projectKey)
	}

	points := make([]TrendPoint, 0, len(runs))
	for i, current := range runs {
		point := TrendPoint{
			RunID:      current.RunID,
			Timestamp:  current.Timestamp,
			Passed:     current.Passed,
			Violations: current.Violations,
		}
		if i > 0 {
			prev := runs[i-1]
			point.DeltaViolations = current.Violations - prev.Violations
			point.DeltaUnits = current.Units - prev.Units
			point.DeltaEdges = current.Edges - prev.Edges
			point.NewlyFailing, point.Fixed = diffOutcomes(prev.Outcomes, current.Outcomes)
		}
		points = append(points, point)
	}

	return TrendReport{
		ProjectKey: projectKey,
		Since:      runs[0].Timestamp,
		Until:      runs[len(runs)-1].Timestamp,
		RunCount:   len(points),
		Points:     points,
	}, nil
}

// diffOutcomes only compares rules present in both runs; added or removed
// rules are neither newly failing nor fixed.
func diffOutcomes(prev, current []RuleOutcome) (newlyFailing, fixed []string) {
	before := make(map[string]string, len(prev))
	for _, o := range prev {
		before[o.Rule] = o.Status
	}
	for _, o := range current {
		old, ok := before[o.Rule]
		if !ok {
			continue
		}
		switch {
		case old == "pass" && o.Status != "pass":
			newlyFailing = append(newlyFailing, o.Rule)
		case old != "pass" && o.Status == "pass":
			fixed = append(fixed, o.Rule)
		}
	}
	sort.Strings(newlyFailing)
	sort.Strings(fixed)
	return newlyFailing, fixed
}
