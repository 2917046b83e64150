package sanitizer

import "context"

// builtInInjectionPatterns match common prompt injection phrasing. All
// are compiled case-insensitively. Confidence reflects how unlikely the
// phrase is in benign content; anything at or above the pipeline strip
// threshold gets filtered rather than just flagged.
var builtInInjectionPatterns = []builtinPattern{
	{"ignore-previous", 0.90, `ignore\s+(all\s+|any\s+)?(previous|prior|earlier|above|preceding)\s+(instructions?|prompts?|directives?|context)`},
	{"disregard-previous", 0.90, `disregard\s+(all\s+|any\s+)?(the\s+)?(previous|prior|earlier|above)(\s+(instructions?|prompts?|directives?|context))?`},
	{"forget-instructions", 0.85, `forget\s+(everything|all|your)(\s+(instructions?|rules|guidelines|training|context))?`},
	{"do-not-follow", 0.85, `do\s+not\s+(follow|obey|adhere\s+to)\s+(the\s+)?(previous|prior|earlier|original)\s+(instructions?|prompts?)`},
	{"override-instructions", 0.85, `overrid(e|ing)\s+(all\s+|any\s+)?(previous\s+)?(instructions?|prompts?|context|settings)`},
	{"replace-instructions", 0.85, `replace\s+(your\s+)?(previous\s+)?(instructions?|prompts?)\s+with`},
	{"instructions-superseded", 0.85, `(instructions?|prompts?|directives?)\s+are(\s+now)?\s+(superseded|superceded|overridden|void|replaced)`},
	{"new-instructions", 0.90, `(your\s+)?new\s+instructions?(\s+are)?\s*:`},
	{"system-prompt", 0.85, `system\s+prompt(\s+is)?\s*:`},
	{"reset-instructions", 0.80, `reset\s+(your\s+)?(instructions?|context|rules)`},
	{"clear-context", 0.75, `clear\s+(all\s+)?(previous\s+|prior\s+)?(context|history|instructions?)`},
	{"role-reassignment", 0.70, `you\s+are\s+now\s+(a|an|the)\s+`},
	{"from-now-on", 0.70, `from\s+now\s+on,?\s+you\s+(are|will|must|should)`},
	{"developer-mode", 0.85, `(developer|debug|admin|root|god)\s+mode\s+(enabled|activated|unlocked)|enable\s+(developer|debug|admin|root|god)\s+mode`},
	{"unlock-hidden", 0.80, `unlock\s+(hidden|secret)\s+(features?|capabilities|modes?)`},
	{"chat-template-token", 0.95, `<\|?im_start\|?>|<\|?system\|?>|\[INST\]|\[/INST\]|<<SYS>>|<</SYS>>`},
	{"markdown-header-system", 0.80, `###\s*(system|instructions?|rules)\s*\n`},
	{"important-ignore", 0.90, `important\s*:\s*ignore|critical\s*:\s*override`},
	{"html-script", 0.40, `<script[^>]*>[\s\S]*?</script>|<script[^>]*/?>`},
}

var builtinInjectionRules = mustCompileBuiltins(builtInInjectionPatterns)

// InjectionScanner detects prompt injection phrasing via regex matching.
type InjectionScanner struct {
	rules []compiledRule
}

// NewInjectionScanner builds a scanner from the given configuration.
// If disableBuiltIn is false, built-in patterns are included. Custom
// rules are always appended.
func NewInjectionScanner(disableBuiltIn bool, custom []Rule) (*InjectionScanner, error) {
	rules, err := compileRules(builtinInjectionRules, disableBuiltIn, custom)
	if err != nil {
		return nil, err
	}
	return &InjectionScanner{rules: rules}, nil
}

func (s *InjectionScanner) Name() string { return "injection" }

func (s *InjectionScanner) Scan(_ context.Context, text string) ([]Finding, error) {
	return matchRules(s.rules, KindInjection, text), nil
}
