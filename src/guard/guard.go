// Package guard wraps tool functions with trust marking, input
// validation, and output sanitization. Behaviors are declared as stages
// on a chain rather than nested wrappers, so the order of protections
// is explicit and inspectable.
package guard

import (
	"context"
	"fmt"
	"sort"

	"github.com/Liad0205/safe-mcp/src/trust"
)

// ToolFunc is the function shape a chain wraps: tool arguments in,
// arbitrary result out. A ToolFunc may return a trust.Envelope directly
// to mark its own output.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// Position orders stages around tool execution.
type Position int

const (
	// PreExecution stages run before the tool and can reject the call.
	PreExecution Position = iota
	// PostExecution stages transform the envelope after the tool ran.
	PostExecution
)

func (p Position) String() string {
	switch p {
	case PreExecution:
		return "pre-execution"
	case PostExecution:
		return "post-execution"
	default:
		return "unknown"
	}
}

// Stage is one guard behavior on a chain.
type Stage interface {
	Name() string
	Position() Position
}

// PreStage runs before the tool executes. A non-nil error aborts the
// call; the tool never runs.
type PreStage interface {
	Stage
	Before(ctx context.Context, args map[string]any) error
}

// PostStage transforms the envelope after the tool executed.
type PostStage interface {
	Stage
	After(ctx context.Context, env trust.Envelope) (trust.Envelope, error)
}

// Chain is a tool function with its guard stages, executed in position
// order: pre-execution stages first, then the tool, then post-execution
// stages. Within a position, declaration order is preserved.
type Chain struct {
	fn     ToolFunc
	stages []Stage
}

// NewChain validates and assembles a chain.
func NewChain(fn ToolFunc, stages ...Stage) (*Chain, error) {
	if fn == nil {
		return nil, fmt.Errorf("tool function is required")
	}
	for _, s := range stages {
		switch s.Position() {
		case PreExecution:
			if _, ok := s.(PreStage); !ok {
				return nil, fmt.Errorf("stage %s: pre-execution stages must implement Before", s.Name())
			}
		case PostExecution:
			if _, ok := s.(PostStage); !ok {
				if _, trusted := s.(trustStage); !trusted {
					return nil, fmt.Errorf("stage %s: post-execution stages must implement After", s.Name())
				}
			}
		default:
			return nil, fmt.Errorf("stage %s: unknown position %d", s.Name(), s.Position())
		}
	}

	ordered := make([]Stage, len(stages))
	copy(ordered, stages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position() < ordered[j].Position()
	})
	return &Chain{fn: fn, stages: ordered}, nil
}

// Stages returns the chain's stages in execution order.
func (c *Chain) Stages() []Stage {
	out := make([]Stage, len(c.stages))
	copy(out, c.stages)
	return out
}

// Run executes the chain. Tool output that is not already an envelope
// gets wrapped; if no trust stage marked it by the end, it is treated
// as untrusted. When several trust stages apply, the last one wins and
// the overridden level is recorded under the prior_trust_level metadata
// key.
func (c *Chain) Run(ctx context.Context, args map[string]any) (trust.Envelope, error) {
	for _, s := range c.stages {
		pre, ok := s.(PreStage)
		if !ok || s.Position() != PreExecution {
			continue
		}
		if err := pre.Before(ctx, args); err != nil {
			return trust.Envelope{}, fmt.Errorf("stage %s: %w", s.Name(), err)
		}
	}

	out, err := c.fn(ctx, args)
	if err != nil {
		return trust.Envelope{}, err
	}

	env, marked := envelopeOf(out)
	for _, s := range c.stages {
		if s.Position() != PostExecution {
			continue
		}
		if ts, ok := s.(trustStage); ok {
			env, marked = ts.apply(env, marked)
			continue
		}
		env, err = s.(PostStage).After(ctx, env)
		if err != nil {
			return trust.Envelope{}, fmt.Errorf("stage %s: %w", s.Name(), err)
		}
	}

	if !marked {
		env = env.WithLevel(trust.Untrusted)
		if len(env.Warnings) == 0 {
			env = env.WithWarnings(trust.UntrustedSourceWarning)
		}
	}
	return env, nil
}

// envelopeOf wraps tool output, passing through envelopes the tool
// built itself.
func envelopeOf(out any) (trust.Envelope, bool) {
	switch v := out.(type) {
	case trust.Envelope:
		return v, true
	case *trust.Envelope:
		if v != nil {
			return *v, true
		}
		return trust.Envelope{Level: trust.Untrusted}, false
	}
	return trust.Envelope{Content: out, Level: trust.Untrusted}, false
}
