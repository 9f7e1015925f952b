package cli

import (
	"flag"
	"io"
	"strings"
)

type cliOptions struct {
	configPath string
	facts      stringList
	rules      stringList
	format     string
	out        string
	failOnWarn bool

	trace   bool
	impact  string
	metrics int
	trend   bool
	since   string

	ui      bool
	watch   bool
	mcp     bool
	history bool

	verbose bool
	version bool
	args    []string
}

// stringList collects a repeatable, comma-separated flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("guardrail", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default: discover data/config/guardrail.toml, ./guardrail.toml)")
	fs.Var(&opts.facts, "facts", "Fact file to load; repeatable or comma-separated (overrides [facts].files)")
	fs.Var(&opts.rules, "rules", "Rule file to load; repeatable or comma-separated (overrides rule_files)")
	fs.StringVar(&opts.format, "format", "", "Report format printed to stdout: text, json, markdown, sarif, tsv")
	fs.StringVar(&opts.out, "out", "", "Write the printed report to this path instead of stdout")
	fs.BoolVar(&opts.failOnWarn, "fail-on-warn", false, "Treat warn-severity violations as failures")
	fs.BoolVar(&opts.trace, "trace", false, "Print the shortest dependency chain between two units: --trace <from> <to>")
	fs.StringVar(&opts.impact, "impact", "", "List the units that depend on a unit")
	fs.IntVar(&opts.metrics, "metrics", 0, "Print fan-in/fan-out/depth for the top N units")
	fs.BoolVar(&opts.trend, "trend", false, "Print the violation trend from run history and exit")
	fs.StringVar(&opts.since, "since", "", "Only include history runs at/after this time (RFC3339, YYYY-MM-DD or a duration)")
	fs.BoolVar(&opts.ui, "ui", false, "Open the interactive violation browser")
	fs.BoolVar(&opts.watch, "watch", false, "Re-evaluate whenever fact, rule or config files change")
	fs.BoolVar(&opts.mcp, "mcp", false, "Serve the check as MCP tools over stdio")
	fs.BoolVar(&opts.history, "history", false, "Record each run summary in the SQLite history database")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if len(args) > 0 && args[0] == "check" {
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	opts.format = strings.ToLower(strings.TrimSpace(opts.format))
	return opts, nil
}
