package sanitizer

import (
	"fmt"
	"strings"
)

// Kind classifies what a finding is about.
type Kind string

const (
	KindInjection Kind = "injection"
	KindJailbreak Kind = "jailbreak"
	KindEncoding  Kind = "encoding"
)

// Span is a half-open byte range [Start, End) within the scanned text.
// Offsets refer to the normalized form of the text that was scanned.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Finding is a single detected occurrence of a suspicious pattern.
type Finding struct {
	Kind       Kind    `json:"kind"`
	PatternID  string  `json:"pattern_id"`
	Span       Span    `json:"span"`
	Confidence float64 `json:"confidence"`
	Match      string  `json:"match"`

	// Depth is zero for findings in the content itself and increments
	// for findings inside decoded payloads. A finding with Depth > 0
	// carries the span of the encoded run it was decoded from.
	Depth int `json:"depth,omitempty"`
}

// Action is what the pipeline did about a finding.
type Action int

const (
	ActionNone Action = iota
	ActionFlagged
	ActionStripped
	ActionBlocked
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionFlagged:
		return "flagged"
	case ActionStripped:
		return "stripped"
	case ActionBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the action by name so reports stay readable in
// metadata and audit output.
func (a Action) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// Entry ties a finding to the content leaf it was found in and the
// action the pipeline took for it.
type Entry struct {
	Path    string  `json:"path,omitempty"`
	Finding Finding `json:"finding"`
	Action  Action  `json:"action"`
}

// Report is the outcome of one pipeline run. Entries appear in walk
// order (container keys sorted), then scanner order, then position.
type Report struct {
	Entries []Entry `json:"entries,omitempty"`

	// Notes are warnings not tied to a finding, such as truncation.
	Notes []string `json:"notes,omitempty"`

	// Action is the most severe action taken across all entries.
	Action Action `json:"action"`
}

// Patterns returns the distinct pattern IDs that fired, in first
// occurrence order.
func (r Report) Patterns() []string {
	seen := make(map[string]bool, len(r.Entries))
	var out []string
	for _, e := range r.Entries {
		if !seen[e.Finding.PatternID] {
			seen[e.Finding.PatternID] = true
			out = append(out, e.Finding.PatternID)
		}
	}
	return out
}

// Warnings renders the report as human-readable warning strings. Exact
// duplicates are collapsed, keeping the first occurrence. The result is
// deterministic for a given report.
func (r Report) Warnings() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(w string) {
		if w != "" && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	for _, n := range r.Notes {
		add(n)
	}
	for _, e := range r.Entries {
		add(entryWarning(e))
	}
	return out
}

func entryWarning(e Entry) string {
	msg := findingMessage(e.Finding, e.Action)
	if msg == "" {
		return ""
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (at %s)", e.Path)
	}
	return msg
}

func findingMessage(f Finding, action Action) string {
	switch f.PatternID {
	case patternIDZeroWidth:
		if action >= ActionStripped {
			return "Invisible Unicode characters removed from content."
		}
		return "Invisible Unicode characters detected."
	case patternIDControl:
		if action >= ActionStripped {
			return "Control characters removed from content."
		}
		return "Control characters detected."
	case patternIDHomoglyph:
		if action >= ActionStripped {
			return "Confusable Unicode characters replaced with Latin equivalents."
		}
		return "Confusable Unicode characters detected."
	case patternIDURLScheme:
		if action >= ActionStripped {
			return fmt.Sprintf("Dangerous URI scheme sanitized: matched '%s'", snippet(f.Match))
		}
		return fmt.Sprintf("Dangerous URI scheme detected: matched '%s'", snippet(f.Match))
	case patternIDURLExfil:
		if action >= ActionStripped {
			return fmt.Sprintf("Possible data exfiltration URL sanitized: '%s'", snippet(f.Match))
		}
		return fmt.Sprintf("Possible data exfiltration URL detected: '%s'", snippet(f.Match))
	}

	if f.Kind == KindEncoding {
		msg := fmt.Sprintf("Potentially encoded content detected: pattern '%s'.", f.PatternID)
		if action >= ActionStripped {
			return msg + " Content was filtered."
		}
		return msg + " Manual review recommended."
	}

	noun := "suspicious content"
	switch f.Kind {
	case KindInjection:
		noun = "prompt injection"
	case KindJailbreak:
		noun = "jailbreak attempt"
	}
	verb := "detected"
	if action >= ActionStripped {
		verb = "sanitized"
	}
	where := ""
	if f.Depth > 0 {
		where = " in decoded payload"
	}
	return fmt.Sprintf("Potential %s %s%s: pattern '%s' matched '%s'", noun, verb, where, f.PatternID, snippet(f.Match))
}

const snippetLimit = 80

// snippet shortens a raw match for use in warnings so large payloads do
// not get replayed verbatim.
func snippet(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, s)
	runes := []rune(s)
	if len(runes) <= snippetLimit {
		return s
	}
	return string(runes[:snippetLimit]) + "..."
}
