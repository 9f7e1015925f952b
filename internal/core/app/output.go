package app

import (
	"fmt"
	"log/slog"
	"strings"

	"guardrail/internal/core/config"
	"guardrail/internal/engine/graph"
	"guardrail/internal/shared/util"
	"guardrail/internal/ui/report"
	"guardrail/internal/ui/report/formats"
)

type outputTarget struct {
	format string
	path   string
}

// outputTargets lists the configured report files in a fixed order.
func outputTargets(cfg *config.Config, paths config.ResolvedPaths) []outputTarget {
	candidates := []outputTarget{
		{format: formats.FormatText, path: cfg.Output.Text},
		{format: formats.FormatJSON, path: cfg.Output.JSON},
		{format: formats.FormatMarkdown, path: cfg.Output.Markdown},
		{format: formats.FormatSARIF, path: cfg.Output.SARIF},
		{format: formats.FormatTSV, path: cfg.Output.TSV},
		{format: "mermaid", path: cfg.Output.Mermaid},
		{format: "plantuml", path: cfg.Output.PlantUML},
	}
	out := make([]outputTarget, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.path) == "" {
			continue
		}
		out = append(out, outputTarget{format: c.format, path: paths.OutputPath(c.path)})
	}
	return out
}

func writeOutputs(cfg *config.Config, paths config.ResolvedPaths, rep *report.Report, g *graph.Graph) ([]string, error) {
	written := make([]string, 0)
	for _, target := range outputTargets(cfg, paths) {
		var (
			data []byte
			err  error
		)
		switch target.format {
		case "mermaid":
			data = []byte(formats.NewMermaidGenerator(g, cfg.Output.MermaidDepth).Generate(rep))
		case "plantuml":
			data = []byte(formats.NewPlantUMLGenerator(g, cfg.Output.MermaidDepth).Generate(rep))
		default:
			data, err = formats.Render(target.format, rep, paths.ProjectRoot)
			if err != nil {
				return written, fmt.Errorf("generate %s output: %w", target.format, err)
			}
		}
		if err := util.WriteFileWithDirs(target.path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s output %q: %w", target.format, target.path, err)
		}
		slog.Debug("report written", "format", target.format, "path", target.path)
		written = append(written, target.path)
	}
	return written, nil
}
