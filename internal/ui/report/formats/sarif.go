package formats

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"guardrail/internal/engine/rules"
	"guardrail/internal/ui/report"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"

	ruleIDConfigError = "GUARD000"
)

// sarifReport is the top-level SARIF document.
type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation *sarifPhysicalLocation `json:"physicalLocation,omitempty"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifLogicalLocation struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

// GenerateSARIF builds a SARIF v2.1.0 document with one reporting rule per
// architecture rule. Rules that could not be evaluated are reported under
// GUARD000. All file URIs are made relative to projectRoot.
func GenerateSARIF(projectRoot string, r *report.Report) ([]byte, error) {
	driverRules := make([]sarifRule, 0, len(r.Rules)+1)
	results := make([]sarifResult, 0, r.TotalViolations)
	ids := make(map[string]string, len(r.Rules))

	for i, rr := range r.Rules {
		id := fmt.Sprintf("GUARD%03d", i+1)
		ids[rr.Name] = id
		desc := fmt.Sprintf("%s rule %q", rr.Kind, rr.Name)
		if rr.Because != "" {
			desc += ": " + rr.Because
		}
		driverRules = append(driverRules, sarifRule{
			ID:               id,
			Name:             rr.Name,
			ShortDescription: sarifMessage{Text: desc},
			DefaultConfig:    sarifRuleDefaultConfig{Level: severityToLevel(rr.Severity)},
		})
	}

	hasSetupErrors := false
	for _, rr := range r.Rules {
		if rr.Error != "" {
			hasSetupErrors = true
			results = append(results, sarifResult{
				RuleID:  ruleIDConfigError,
				Level:   "error",
				Message: sarifMessage{Text: fmt.Sprintf("Rule %q did not complete (%s): %s", rr.Name, rr.Status, rr.Error)},
			})
			continue
		}
		for _, v := range rr.Violations {
			results = append(results, sarifResult{
				RuleID:    ids[rr.Name],
				Level:     severityToLevel(rr.Severity),
				Message:   sarifMessage{Text: v.Reason},
				Locations: []sarifLocation{violationLocation(projectRoot, v)},
			})
		}
	}
	if hasSetupErrors {
		driverRules = append(driverRules, sarifRule{
			ID:               ruleIDConfigError,
			Name:             "RuleSetupFailure",
			ShortDescription: sarifMessage{Text: "An architecture rule is misconfigured or timed out."},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "error"},
		})
	}

	doc := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    r.Tool,
						Version: r.Version,
						Rules:   driverRules,
					},
				},
				Results: results,
			},
		},
	}
	return json.MarshalIndent(doc, "", "  ")
}

// violationLocation prefers the analyzer-reported file; the offending unit is
// always attached as a logical location.
func violationLocation(projectRoot string, v rules.Violation) sarifLocation {
	loc := sarifLocation{
		LogicalLocations: []sarifLogicalLocation{{FullyQualifiedName: v.Subject, Kind: "type"}},
	}
	if v.Location.File != "" {
		phys := &sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{
				URI:       relativeURI(projectRoot, v.Location.File),
				URIBaseID: "%SRCROOT%",
			},
		}
		if v.Location.Line > 0 {
			phys.Region = &sarifRegion{StartLine: v.Location.Line, StartColumn: v.Location.Column}
		}
		loc.PhysicalLocation = phys
	}
	return loc
}

// relativeURI converts an absolute file path to a forward-slash relative URI
// anchored at projectRoot. If the path is already relative or projectRoot is
// empty, the original path (with forward slashes) is returned.
func relativeURI(projectRoot, filePath string) string {
	if projectRoot != "" && filepath.IsAbs(filePath) {
		rel, err := filepath.Rel(projectRoot, filePath)
		if err == nil {
			filePath = rel
		}
	}
	// SARIF URIs use forward slashes.
	return filepath.ToSlash(filePath)
}

func severityToLevel(severity rules.Severity) string {
	switch strings.ToLower(string(severity)) {
	case string(rules.SeverityWarn):
		return "warning"
	default:
		return "error"
	}
}
