package guard

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Liad0205/safe-mcp/src/trust"
)

func positiveNumbers(keys ...string) Predicate {
	return Predicate{
		Name: "positive-numbers",
		Check: func(args map[string]any) bool {
			for _, k := range keys {
				n, ok := args[k].(float64)
				if !ok || n <= 0 {
					return false
				}
			}
			return true
		},
	}
}

func TestValidateInputs_PassingArguments(t *testing.T) {
	ran := 0
	fn := func(_ context.Context, args map[string]any) (any, error) {
		ran++
		return args["a"].(float64) + args["b"].(float64), nil
	}
	c, err := NewChain(fn, ValidateInputs(positiveNumbers("a", "b")), Safe())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env, err := c.Run(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran != 1 {
		t.Errorf("tool ran %d times, want 1", ran)
	}
	if env.Content != 5.0 {
		t.Errorf("content = %v, want 5", env.Content)
	}
	if env.Level != trust.Trusted {
		t.Errorf("level = %v, want trusted", env.Level)
	}
}

func TestValidateInputs_RejectionSkipsTool(t *testing.T) {
	ran := 0
	fn := func(context.Context, map[string]any) (any, error) {
		ran++
		return "should not happen", nil
	}
	c, err := NewChain(fn, ValidateInputs(positiveNumbers("a", "b")), Safe())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		args map[string]any
	}{
		{"negative value", map[string]any{"a": -1.0, "b": 3.0}},
		{"zero value", map[string]any{"a": 0.0, "b": 3.0}},
		{"missing key", map[string]any{"a": 2.0}},
		{"wrong type", map[string]any{"a": "two", "b": 3.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Run(context.Background(), tt.args)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Predicate != "positive-numbers" {
				t.Errorf("predicate = %q, want positive-numbers", verr.Predicate)
			}
			if len(verr.Args) != len(tt.args) {
				t.Errorf("args = %v, want the rejected arguments %v", verr.Args, tt.args)
			}
		})
	}
	if ran != 0 {
		t.Errorf("tool ran %d times, want 0", ran)
	}
}

func TestValidateInputs_ErrorCarriesArgsCopy(t *testing.T) {
	c, err := NewChain(echoTool("x"), ValidateInputs(
		Predicate{Name: "never", Check: func(map[string]any) bool { return false }},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args := map[string]any{"limit": 10.0}
	_, err = c.Run(context.Background(), args)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if verr.Args["limit"] != 10.0 {
		t.Errorf("args = %v, want the rejected arguments", verr.Args)
	}

	args["limit"] = 99.0
	if verr.Args["limit"] != 10.0 {
		t.Error("error args should be a copy, not the live map")
	}
}

func TestValidateInputs_StopsAtFirstFailure(t *testing.T) {
	secondChecked := false
	c, err := NewChain(echoTool("x"), ValidateInputs(
		Predicate{Name: "first", Check: func(map[string]any) bool { return false }},
		Predicate{Name: "second", Check: func(map[string]any) bool {
			secondChecked = true
			return true
		}},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c.Run(context.Background(), map[string]any{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if verr.Predicate != "first" {
		t.Errorf("predicate = %q, want first", verr.Predicate)
	}
	if secondChecked {
		t.Error("second predicate checked after first failed")
	}
}

func TestValidateInputs_NoPredicatesPasses(t *testing.T) {
	c, err := NewChain(echoTool("x"), ValidateInputs(), Safe())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Run(context.Background(), nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Predicate: "bounds"}
	if !strings.Contains(err.Error(), "bounds") {
		t.Errorf("error = %q, want predicate name", err.Error())
	}
}
