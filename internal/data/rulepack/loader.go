// Package rulepack reads declarative rule files. The format follows the file
// extension: .toml, or .yaml/.yml.
package rulepack

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"guardrail/internal/core/errors"
	"guardrail/internal/engine/rules"
)

// Pack is the document layout of a rule file.
type Pack struct {
	Rules []rules.Rule `toml:"rules" yaml:"rules"`
}

// Load reads one rule file.
func Load(path string) ([]rules.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeConfiguration, "read rule pack"), errors.CtxPath, path)
	}
	pack, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return pack.Rules, nil
}

// LoadAll reads the files in order and concatenates their rules.
func LoadAll(paths []string) ([]rules.Rule, error) {
	out := make([]rules.Rule, 0)
	for _, p := range paths {
		rs, err := Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

// Parse decodes a rule pack. Unknown keys are rejected so a misspelled option
// does not silently change a rule's meaning.
func Parse(data []byte, ext string) (Pack, error) {
	var pack Pack
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), &pack)
		if err != nil {
			return Pack{}, errors.Wrap(err, errors.CodeConfiguration, "parse toml rule pack")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return Pack{}, errors.Newf(errors.CodeConfiguration, "unknown rule pack keys: %s", strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&pack); err != nil && !stderrors.Is(err, io.EOF) {
			return Pack{}, errors.Wrap(err, errors.CodeConfiguration, "parse yaml rule pack")
		}
	default:
		return Pack{}, errors.Newf(errors.CodeConfiguration, "unsupported rule pack extension %q (want .toml, .yaml or .yml)", ext)
	}
	for i := range pack.Rules {
		pack.Rules[i].Name = strings.TrimSpace(pack.Rules[i].Name)
		pack.Rules[i].Kind = rules.Kind(strings.ToLower(strings.TrimSpace(string(pack.Rules[i].Kind))))
	}
	return pack, nil
}
