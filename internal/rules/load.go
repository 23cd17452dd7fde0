package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Definition is the on-disk form of a FieldRule.
type Definition struct {
	Key       string            `yaml:"key" toml:"key"`
	Required  bool              `yaml:"required" toml:"required"`
	MinLength int               `yaml:"minLength" toml:"minLength"`
	Pattern   string            `yaml:"pattern" toml:"pattern"`
	MinDigits int               `yaml:"minDigits" toml:"minDigits"`
	MaxDigits int               `yaml:"maxDigits" toml:"maxDigits"`
	Checkbox  bool              `yaml:"isCheckbox" toml:"isCheckbox"`
	Dynamic   bool              `yaml:"dynamicValue" toml:"dynamicValue"`
	Messages  map[string]string `yaml:"messages" toml:"messages"`
}

type document struct {
	Fields []Definition `yaml:"fields" toml:"fields"`
}

// LoadFile reads a YAML or TOML rules file, chosen by extension.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	defs, err := Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return Build(defs)
}

// Parse decodes definitions in the given format ("yaml", "yml" or "toml").
func Parse(data []byte, format string) ([]Definition, error) {
	var doc document
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case "toml":
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported rules format %q", format)
	}
	if len(doc.Fields) == 0 {
		return nil, fmt.Errorf("no fields defined")
	}
	return doc.Fields, nil
}

// Build compiles definitions into a Table, keeping their order.
func Build(defs []Definition) (*Table, error) {
	rules := make([]FieldRule, 0, len(defs))
	for _, d := range defs {
		r := FieldRule{
			Key:       d.Key,
			Required:  d.Required,
			MinLength: d.MinLength,
			MinDigits: d.MinDigits,
			MaxDigits: d.MaxDigits,
			Checkbox:  d.Checkbox,
			Dynamic:   d.Dynamic,
			Messages:  make(map[FailureKind]string, len(d.Messages)),
		}
		if d.Pattern != "" {
			re, err := FullMatch(d.Pattern)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", d.Key, err)
			}
			r.Pattern = re
		}
		for name, text := range d.Messages {
			kind, err := ParseFailureKind(name)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", d.Key, err)
			}
			r.Messages[kind] = text
		}
		rules = append(rules, r)
	}
	return NewTable(rules...)
}
