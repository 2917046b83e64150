// Package sanitizer provides content scanners that detect prompt
// injection, jailbreak framing, and hidden/encoded payloads in tool
// responses, and a pipeline that walks nested content, applies a
// warn/strip/block policy to the findings, and reports what it did.
package sanitizer

import "context"

// Scanner inspects text and reports findings. Implementations must be
// stateless after construction and safe for concurrent use; they never
// mutate the input.
type Scanner interface {
	// Name returns a stable identifier for ordering and reports.
	Name() string

	// Scan inspects text and returns zero or more findings.
	Scan(ctx context.Context, text string) ([]Finding, error)
}

// Rule is a custom detection pattern supplied alongside the built-ins.
// Pattern is compiled case-insensitively unless it carries its own flags.
type Rule struct {
	ID         string
	Pattern    string
	Confidence float64
}
