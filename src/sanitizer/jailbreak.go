package sanitizer

import "context"

// builtInJailbreakPatterns match persona reassignment and restriction
// bypass framing. All are compiled case-insensitively.
var builtInJailbreakPatterns = []builtinPattern{
	{"dan", 0.85, `\bDAN\b(\s+(mode|prompt|\d+(\.\d+)?))?`},
	{"do-anything-now", 0.90, `do\s+anything\s+now`},
	{"jailbreak", 0.90, `jailbreak(\s+(mode|prompt|attempt))?`},
	{"ignore-restrictions", 0.90, `ignore\s+(all\s+)?(your\s+)?(ethics|restrictions?|limitations?|filters?|rules|safety\s+guidelines|programming)|ignore\s+(moral|ethical)\s+(guidelines|principles)`},
	{"bypass-restrictions", 0.90, `bypass\s+(your|all|any)\s+(restrictions?|filters?|limitations?|safety\s+protocols?|programming)`},
	{"disable-safety", 0.90, `disable\s+(all\s+)?(safety|ethical|content)\s+(checks?|filters?|protocols?|guidelines)`},
	{"no-limits", 0.80, `(no|without|free\s+of)\s+(limits|limitations|restrictions|boundaries|filters)\b|anything\s+goes\s+(mode|now)`},
	{"unrestricted-ai", 0.85, `(unrestricted|unconstrained|uncensored|unfiltered)\s+(ai|model|assistant|version|mode)|(evil|rogue)\s+(ai|assistant|model)`},
	{"refusal-suppression", 0.85, `(if|when)\s+you\s+(would\s+)?normally\s+(refuse|decline)|(must|should|will)\s+answer\s+(every|all|any)\s+(question|prompt|request)`},
	{"acting-as", 0.70, `you\s+are\s+(now\s+)?acting\s+as`},
	{"roleplay-as", 0.65, `(roleplay|role-play|role\s+play)\s+as|act\s+as\s+(if\s+you\s+were\s+)?(a|an|the)\b`},
	{"pretend-persona", 0.70, `pretend\s+(to\s+be|you\s+are|you\s+have)`},
	{"persona-reassignment", 0.75, `your\s+(new\s+)?(role|persona|identity)\s+(is|:)|system\s*:\s*you\s+are|switch\s+to\s+\w+([ \t]\w+)*[ \t](mode|persona|role)`},
	{"stay-in-character", 0.70, `stay\s+in\s+character`},
	{"hypothetical-unrestricted", 0.65, `(hypothetically|in\s+a\s+fictional\s+world),?\s+(you|there)\s+(are|is)\s+no\s+(rules|restrictions|limits)|if\s+you\s+(were|had)\s+no\s+(restrictions?|filters?|rules)`},
}

var builtinJailbreakRules = mustCompileBuiltins(builtInJailbreakPatterns)

// JailbreakScanner detects jailbreak attempts, which reframe the model's
// persona or claim its restrictions no longer apply.
type JailbreakScanner struct {
	rules []compiledRule
}

// NewJailbreakScanner builds a scanner from the given configuration.
// If disableBuiltIn is false, built-in patterns are included. Custom
// rules are always appended.
func NewJailbreakScanner(disableBuiltIn bool, custom []Rule) (*JailbreakScanner, error) {
	rules, err := compileRules(builtinJailbreakRules, disableBuiltIn, custom)
	if err != nil {
		return nil, err
	}
	return &JailbreakScanner{rules: rules}, nil
}

func (s *JailbreakScanner) Name() string { return "jailbreak" }

func (s *JailbreakScanner) Scan(_ context.Context, text string) ([]Finding, error) {
	return matchRules(s.rules, KindJailbreak, text), nil
}
