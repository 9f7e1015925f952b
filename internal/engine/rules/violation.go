package rules

import (
	"sort"
	"strings"
	"time"

	"guardrail/internal/engine/graph"
)

// Step is one witness edge of a slice cycle.
type Step struct {
	FromSlice string         `json:"from_slice"`
	ToSlice   string         `json:"to_slice"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Location  graph.Location `json:"location,omitempty"`
}

// Violation is one concrete instance of a rule being broken. Subject is the
// offending unit; Target is set for edge violations.
type Violation struct {
	Rule      string         `json:"rule"`
	Kind      Kind           `json:"kind"`
	Subject   string         `json:"subject"`
	Target    string         `json:"target,omitempty"`
	FromLayer string         `json:"from_layer,omitempty"`
	ToLayer   string         `json:"to_layer,omitempty"`
	Slices    []string       `json:"slices,omitempty"`
	Cycle     []Step         `json:"cycle,omitempty"`
	Reason    string         `json:"reason"`
	Location  graph.Location `json:"location,omitempty"`
}

func sortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.FromLayer != b.FromLayer {
			return a.FromLayer < b.FromLayer
		}
		if a.ToLayer != b.ToLayer {
			return a.ToLayer < b.ToLayer
		}
		if sa, sb := strings.Join(a.Slices, "\x00"), strings.Join(b.Slices, "\x00"); sa != sb {
			return sa < sb
		}
		return a.Reason < b.Reason
	})
}

type Status string

const (
	StatusPass        Status = "pass"
	StatusFail        Status = "fail"
	StatusConfigError Status = "config_error"
	StatusTimeout     Status = "timeout"
)

// Result is the outcome of evaluating one rule. Err is set for
// StatusConfigError and StatusTimeout; Violations only for StatusFail.
type Result struct {
	Rule       string
	Kind       Kind
	Severity   Severity
	Because    string
	Status     Status
	Violations []Violation
	Err        error
	Duration   time.Duration
}

// Clean reports whether the rule completed without a configuration error or
// timeout.
func (r Result) Clean() bool {
	return r.Status == StatusPass || r.Status == StatusFail
}
