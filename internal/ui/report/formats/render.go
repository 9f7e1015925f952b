// Package formats renders a report.Report into the supported output formats.
// Every renderer is a pure function of the report, so two runs over the same
// inputs produce byte-identical output.
package formats

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"guardrail/internal/ui/report"
)

const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatSARIF    = "sarif"
	FormatTSV      = "tsv"
)

// Render encodes r in the named format. projectRoot anchors the relative file
// URIs in SARIF and Markdown output.
func Render(format string, r *report.Report, projectRoot string) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("no report to render")
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatText, "":
		return []byte(GenerateText(r)), nil
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatMarkdown:
		return []byte(NewMarkdownGenerator().Generate(r, MarkdownReportOptions{
			ProjectName:         filepath.Base(projectRoot),
			ProjectRoot:         projectRoot,
			CollapsibleSections: true,
		})), nil
	case FormatSARIF:
		return GenerateSARIF(projectRoot, r)
	case FormatTSV:
		return []byte(GenerateTSV(r)), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}
