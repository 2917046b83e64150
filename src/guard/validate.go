package guard

import (
	"context"
	"fmt"
)

// Predicate checks one property of the tool arguments before execution.
type Predicate struct {
	// Name identifies the predicate in errors and logs.
	Name string

	// Check returns false to reject the arguments. It must not mutate
	// them.
	Check func(args map[string]any) bool
}

// ValidationError reports which predicate rejected a call and the
// arguments it saw. The tool function was not executed.
type ValidationError struct {
	Predicate string
	Args      map[string]any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("input validation failed: predicate %q rejected the arguments", e.Predicate)
}

type validateStage struct {
	predicates []Predicate
}

func (s validateStage) Name() string       { return "validate" }
func (s validateStage) Position() Position { return PreExecution }

func (s validateStage) Before(_ context.Context, args map[string]any) error {
	for _, p := range s.predicates {
		if !p.Check(args) {
			return &ValidationError{Predicate: p.Name, Args: copyArgs(args)}
		}
	}
	return nil
}

func copyArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

// ValidateInputs rejects calls whose arguments fail any predicate.
// Predicates run in order and stop at the first failure; the tool does
// not execute on rejection.
func ValidateInputs(predicates ...Predicate) Stage {
	return validateStage{predicates: predicates}
}
