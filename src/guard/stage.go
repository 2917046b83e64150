package guard

import (
	"context"

	"github.com/Liad0205/safe-mcp/src/sanitizer"
	"github.com/Liad0205/safe-mcp/src/trust"
)

// ExternalSourceWarning is attached by Unsafe when no explanation is
// given and nothing else has warned about the data yet.
const ExternalSourceWarning = "Data from untrusted external source"

// SkippedSanitizationWarning marks responses whose chain deliberately
// bypassed sanitization.
const SkippedSanitizationWarning = "Sanitization explicitly skipped."

// trustStage sets the envelope's trust level after execution.
type trustStage struct {
	level    trust.Level
	warnings []string
}

func (s trustStage) Name() string       { return "trust:" + s.level.String() }
func (s trustStage) Position() Position { return PostExecution }

// apply sets the stage's level. If an earlier stage or the tool itself
// already marked the envelope with a different level, that level moves
// to the prior_trust_level metadata key.
func (s trustStage) apply(env trust.Envelope, marked bool) (trust.Envelope, bool) {
	out := env
	if marked && env.Level != s.level {
		out = out.WithMetadata("prior_trust_level", env.Level.String())
	}
	out = out.WithLevel(s.level)
	switch {
	case len(s.warnings) > 0:
		out = out.WithWarnings(s.warnings...)
	case s.level == trust.Untrusted && len(out.Warnings) == 0:
		out = out.WithWarnings(ExternalSourceWarning)
	}
	return out, true
}

// Safe marks tool output as coming from a trusted internal source.
func Safe() Stage { return trustStage{level: trust.Trusted} }

// Caution marks tool output as partially trusted, with optional
// warnings explaining why.
func Caution(warnings ...string) Stage {
	return trustStage{level: trust.Caution, warnings: warnings}
}

// Unsafe marks tool output as untrusted external data. Without explicit
// warnings the default external-source warning is attached.
func Unsafe(warnings ...string) Stage {
	return trustStage{level: trust.Untrusted, warnings: warnings}
}

// Sanitizer runs content sanitization over an envelope.
// *sanitizer.Basic satisfies this.
type Sanitizer interface {
	Sanitize(ctx context.Context, env trust.Envelope) (trust.Envelope, error)
}

// defaultSanitizer is the built-in fallback pipeline: the default scanner
// set with default options. It is immutable and shared by every chain
// that does not pass its own sanitizer.
var defaultSanitizer Sanitizer = sanitizer.NewBasic(sanitizer.DefaultScanners(), sanitizer.Options{})

type sanitizeStage struct {
	s Sanitizer
}

func (s sanitizeStage) Name() string       { return "sanitize" }
func (s sanitizeStage) Position() Position { return PostExecution }

func (s sanitizeStage) After(ctx context.Context, env trust.Envelope) (trust.Envelope, error) {
	return s.s.Sanitize(ctx, env)
}

// Sanitize runs the given sanitizer over tool output. A nil sanitizer
// selects the built-in default pipeline. To bypass sanitization use
// SkipSanitization instead.
func Sanitize(s Sanitizer) Stage {
	if s == nil {
		s = defaultSanitizer
	}
	return sanitizeStage{s: s}
}

type skipSanitizeStage struct{}

func (skipSanitizeStage) Name() string       { return "sanitize:skip" }
func (skipSanitizeStage) Position() Position { return PostExecution }

func (skipSanitizeStage) After(_ context.Context, env trust.Envelope) (trust.Envelope, error) {
	out := env.WithWarnings(SkippedSanitizationWarning)
	return out.WithLevel(out.Level.Degrade()), nil
}

// SkipSanitization deliberately bypasses sanitization. The response is
// annotated with SkippedSanitizationWarning and its trust degraded one
// step, so a skipped pipeline never looks like a clean one.
func SkipSanitization() Stage { return skipSanitizeStage{} }
