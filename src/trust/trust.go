// Package trust defines the trust-level lattice and the response envelope
// that carry tool output through the guard and sanitization layers.
package trust

import (
	"encoding/json"
	"fmt"
)

// Level classifies how much downstream processing should rely on content
// without further scrutiny. Levels are totally ordered; a larger value
// means less trusted.
type Level int

const (
	// Trusted marks developer-verified internal sources.
	Trusted Level = iota
	// Caution marks content that should be used with care.
	Caution
	// Untrusted marks external or known-problematic sources.
	Untrusted
)

// UntrustedSourceWarning is attached when an envelope is marked Untrusted
// without any warning explaining why.
const UntrustedSourceWarning = "Data from untrusted source"

func (l Level) String() string {
	switch l {
	case Trusted:
		return "trusted"
	case Caution:
		return "caution"
	case Untrusted:
		return "untrusted"
	default:
		return "unknown"
	}
}

// Valid reports whether l is one of the three defined levels.
func (l Level) Valid() bool {
	return l >= Trusted && l <= Untrusted
}

// Degrade returns the next-less-trusted level. Untrusted stays Untrusted.
func (l Level) Degrade() Level {
	if l == Trusted {
		return Caution
	}
	return Untrusted
}

// ParseLevel converts a wire name ("trusted", "caution", "untrusted") to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "trusted":
		return Trusted, nil
	case "caution":
		return Caution, nil
	case "untrusted":
		return Untrusted, nil
	default:
		return 0, fmt.Errorf("unknown trust level %q", s)
	}
}

// MarshalJSON encodes the level as its wire name.
func (l Level) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		return nil, &InvalidLevelError{Level: l}
	}
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a wire name into a Level.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// InvalidLevelError reports trust marking with an undefined level. It is a
// programming error and is surfaced immediately rather than handled.
type InvalidLevelError struct {
	Level Level
}

func (e *InvalidLevelError) Error() string {
	return fmt.Sprintf("invalid trust level %d", int(e.Level))
}

// Mark wraps content in a new Envelope at the given level. It is pure: no
// side effects, a fresh envelope per call. Optional warnings become the
// envelope's initial warnings. An Untrusted envelope with no warnings gets
// a default warning so untrusted data is never silent about why.
func Mark(content any, level Level, warnings ...string) (Envelope, error) {
	if !level.Valid() {
		return Envelope{}, &InvalidLevelError{Level: level}
	}

	var ws []string
	if len(warnings) > 0 {
		ws = make([]string, len(warnings))
		copy(ws, warnings)
	} else if level == Untrusted {
		ws = []string{UntrustedSourceWarning}
	}

	return Envelope{Content: content, Level: level, Warnings: ws}, nil
}
