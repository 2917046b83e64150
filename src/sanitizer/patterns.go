package sanitizer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// builtinPattern is a built-in detection pattern. IDs are stable across
// releases so reports and custom policy can refer to them.
type builtinPattern struct {
	id         string
	confidence float64
	pattern    string
}

// compiledRule is a pattern ready for matching.
type compiledRule struct {
	id         string
	confidence float64
	re         *regexp.Regexp
}

// caseInsensitive prepends the case-insensitive flag unless the pattern
// already carries its own flags.
func caseInsensitive(p string) string {
	if strings.HasPrefix(p, "(?") {
		return p
	}
	return "(?i)" + p
}

// mustCompileBuiltins compiles a built-in pattern table at package init.
func mustCompileBuiltins(patterns []builtinPattern) []compiledRule {
	rules := make([]compiledRule, 0, len(patterns))
	for _, p := range patterns {
		rules = append(rules, compiledRule{
			id:         p.id,
			confidence: p.confidence,
			re:         regexp.MustCompile(caseInsensitive(p.pattern)),
		})
	}
	return rules
}

// compileRules builds the rule set for a scanner: the precompiled
// built-ins unless disabled, plus validated custom rules.
func compileRules(builtin []compiledRule, disableBuiltIn bool, custom []Rule) ([]compiledRule, error) {
	var rules []compiledRule
	if !disableBuiltIn {
		rules = append(rules, builtin...)
	}
	for i, r := range custom {
		if r.ID == "" {
			return nil, fmt.Errorf("custom rule %d: id is required", i)
		}
		if r.Confidence <= 0 || r.Confidence > 1 {
			return nil, fmt.Errorf("custom rule %q: confidence must be in (0, 1], got %v", r.ID, r.Confidence)
		}
		re, err := regexp.Compile(caseInsensitive(r.Pattern))
		if err != nil {
			return nil, fmt.Errorf("compiling custom rule %q: %w", r.ID, err)
		}
		rules = append(rules, compiledRule{id: r.ID, confidence: r.Confidence, re: re})
	}
	return rules, nil
}

// matchRules runs every rule against text and returns one finding per
// match, deduplicated by pattern ID and span, sorted by span start, then
// span end, then pattern ID.
func matchRules(rules []compiledRule, kind Kind, text string) []Finding {
	type key struct {
		id         string
		start, end int
	}
	seen := make(map[key]bool)
	var findings []Finding
	for _, rule := range rules {
		for _, loc := range rule.re.FindAllStringIndex(text, -1) {
			k := key{rule.id, loc[0], loc[1]}
			if seen[k] {
				continue
			}
			seen[k] = true
			findings = append(findings, Finding{
				Kind:       kind,
				PatternID:  rule.id,
				Span:       Span{Start: loc[0], End: loc[1]},
				Confidence: rule.confidence,
				Match:      text[loc[0]:loc[1]],
			})
		}
	}
	sortFindings(findings)
	return findings
}

// sortFindings orders findings by span start, then span end, then
// pattern ID, then depth, so scanner output is deterministic.
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Span.End != b.Span.End {
			return a.Span.End < b.Span.End
		}
		if a.PatternID != b.PatternID {
			return a.PatternID < b.PatternID
		}
		return a.Depth < b.Depth
	})
}
