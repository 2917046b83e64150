// Package rules loads custom detection rules from YAML files and
// validates them before they reach the scanners.
package rules

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/Liad0205/safe-mcp/src/sanitizer"
)

// File is the YAML schema for a rule set:
//
//	injection:
//	  - id: vendor-tag
//	    pattern: '<vendor-system>'
//	    confidence: 0.9
//	jailbreak:
//	  - id: grandma
//	    pattern: 'act as my late grandmother'
//	    confidence: 0.7
type File struct {
	Injection []Entry `yaml:"injection"`
	Jailbreak []Entry `yaml:"jailbreak"`
}

// Entry is one rule as written in the file.
type Entry struct {
	ID         string  `yaml:"id"`
	Pattern    string  `yaml:"pattern"`
	Confidence float64 `yaml:"confidence"`
}

// Set holds validated rules ready to hand to the scanners.
type Set struct {
	Injection []sanitizer.Rule
	Jailbreak []sanitizer.Rule
}

// Empty reports whether the set carries no rules.
func (s Set) Empty() bool {
	return len(s.Injection) == 0 && len(s.Jailbreak) == 0
}

// Load reads and parses a rules file.
func Load(path string) (Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("reading rules file: %w", err)
	}
	set, err := Parse(raw)
	if err != nil {
		return Set{}, fmt.Errorf("rules file %s: %w", path, err)
	}
	return set, nil
}

// Parse validates raw YAML rule content.
func Parse(raw []byte) (Set, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Set{}, fmt.Errorf("parsing yaml: %w", err)
	}

	var set Set
	var err error
	if set.Injection, err = convert("injection", f.Injection); err != nil {
		return Set{}, err
	}
	if set.Jailbreak, err = convert("jailbreak", f.Jailbreak); err != nil {
		return Set{}, err
	}
	return set, nil
}

func convert(section string, entries []Entry) ([]sanitizer.Rule, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(entries))
	out := make([]sanitizer.Rule, 0, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("%s rule %d: id is required", section, i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("%s rule %q: duplicate id", section, e.ID)
		}
		seen[e.ID] = true
		if e.Pattern == "" {
			return nil, fmt.Errorf("%s rule %q: pattern is required", section, e.ID)
		}
		if _, err := regexp.Compile(e.Pattern); err != nil {
			return nil, fmt.Errorf("%s rule %q: %w", section, e.ID, err)
		}
		if e.Confidence <= 0 || e.Confidence > 1 {
			return nil, fmt.Errorf("%s rule %q: confidence must be in (0, 1], got %v", section, e.ID, e.Confidence)
		}
		out = append(out, sanitizer.Rule{ID: e.ID, Pattern: e.Pattern, Confidence: e.Confidence})
	}
	return out, nil
}
