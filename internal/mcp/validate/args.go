package validate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"guardrail/internal/mcp/contracts"
)

const (
	maxPathCount   = 64
	maxLimitValue  = 5000
	maxUnitNameLen = 512
)

var allowedFormats = map[string]bool{
	"":         true,
	"text":     true,
	"json":     true,
	"markdown": true,
	"sarif":    true,
	"tsv":      true,
}

// ParseToolArgs decodes and normalizes the raw arguments of a tool call into
// the matching contracts input type.
func ParseToolArgs(tool string, raw map[string]any) (any, error) {
	if strings.TrimSpace(tool) == "" {
		return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "tool name is required"}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	switch tool {
	case contracts.ToolCheck:
		var input contracts.CheckInput
		if err := decodeParams(raw, &input); err != nil {
			return nil, err
		}
		input.FactFiles = normalizeStrings(input.FactFiles, maxPathCount)
		input.RuleFiles = normalizeStrings(input.RuleFiles, maxPathCount)
		input.Format = strings.ToLower(strings.TrimSpace(input.Format))
		if !allowedFormats[input.Format] {
			return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("unsupported format: %s", input.Format)}
		}
		return input, nil
	case contracts.ToolTrace:
		var input contracts.TraceInput
		if err := decodeParams(raw, &input); err != nil {
			return nil, err
		}
		input.From = strings.TrimSpace(input.From)
		input.To = strings.TrimSpace(input.To)
		if err := requireUnit("from", input.From); err != nil {
			return nil, err
		}
		if err := requireUnit("to", input.To); err != nil {
			return nil, err
		}
		return input, nil
	case contracts.ToolImpact:
		var input contracts.ImpactInput
		if err := decodeParams(raw, &input); err != nil {
			return nil, err
		}
		input.Unit = strings.TrimSpace(input.Unit)
		if err := requireUnit("unit", input.Unit); err != nil {
			return nil, err
		}
		if input.Limit < 0 || input.Limit > maxLimitValue {
			return nil, invalidLimitError("limit")
		}
		return input, nil
	case contracts.ToolMetrics:
		var input contracts.MetricsInput
		if err := decodeParams(raw, &input); err != nil {
			return nil, err
		}
		if input.Limit < 0 || input.Limit > maxLimitValue {
			return nil, invalidLimitError("limit")
		}
		return input, nil
	case contracts.ToolHistory:
		var input contracts.HistoryInput
		if err := decodeParams(raw, &input); err != nil {
			return nil, err
		}
		input.Since = strings.TrimSpace(input.Since)
		if input.Since != "" {
			if _, err := ParseSince(input.Since); err != nil {
				return nil, err
			}
		}
		if input.Limit < 0 || input.Limit > maxLimitValue {
			return nil, invalidLimitError("limit")
		}
		return input, nil
	default:
		return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("unsupported tool: %s", tool)}
	}
}

// ParseSince accepts an RFC 3339 timestamp, a YYYY-MM-DD date or a duration
// counted back from now ("72h").
func ParseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return time.Now().UTC().Add(-d), nil
	}
	return time.Time{}, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("since must be RFC3339, YYYY-MM-DD or a duration, got %q", raw)}
}

func decodeParams(params map[string]any, out any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "invalid params encoding"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "invalid params", Details: map[string]any{"error": err.Error()}}
	}
	return nil
}

func normalizeStrings(values []string, maxCount int) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if seen[trimmed] {
			continue
		}
		if maxCount > 0 && len(out) >= maxCount {
			break
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out
}

func requireUnit(field, value string) error {
	if value == "" {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("%s is required", field)}
	}
	if len(value) > maxUnitNameLen {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("%s is too long", field)}
	}
	return nil
}

func invalidLimitError(field string) error {
	return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("%s is out of range", field)}
}
