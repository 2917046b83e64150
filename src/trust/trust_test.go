package trust

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestMark_Identity(t *testing.T) {
	tests := []struct {
		name    string
		content any
		level   Level
	}{
		{"trusted string", "internal data", Trusted},
		{"caution map", map[string]any{"k": "v"}, Caution},
		{"untrusted number", 42, Untrusted},
		{"trusted nil", nil, Trusted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Mark(tt.content, tt.level)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.Level != tt.level {
				t.Errorf("level = %v, want %v", env.Level, tt.level)
			}
			switch c := tt.content.(type) {
			case map[string]any:
				got, ok := env.Content.(map[string]any)
				if !ok || len(got) != len(c) {
					t.Errorf("content = %v, want %v", env.Content, tt.content)
				}
			default:
				if env.Content != tt.content {
					t.Errorf("content = %v, want %v", env.Content, tt.content)
				}
			}
		})
	}
}

func TestMark_InvalidLevel(t *testing.T) {
	_, err := Mark("data", Level(42))
	if err == nil {
		t.Fatal("expected error for undefined level")
	}

	var invalid *InvalidLevelError
	if !errors.As(err, &invalid) {
		t.Fatalf("error type = %T, want *InvalidLevelError", err)
	}
	if invalid.Level != Level(42) {
		t.Errorf("error level = %d, want 42", int(invalid.Level))
	}
}

func TestMark_UntrustedDefaultWarning(t *testing.T) {
	env, err := Mark("external", Untrusted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.Warnings) != 1 || env.Warnings[0] != UntrustedSourceWarning {
		t.Errorf("warnings = %v, want [%q]", env.Warnings, UntrustedSourceWarning)
	}

	// An explicit warning suppresses the default.
	env, err = Mark("external", Untrusted, "came from the internet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.Warnings) != 1 || env.Warnings[0] != "came from the internet" {
		t.Errorf("warnings = %v, want the explicit warning only", env.Warnings)
	}
}

func TestMark_TrustedHasNoWarnings(t *testing.T) {
	env, err := Mark("internal", Trusted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", env.Warnings)
	}
}

func TestLevel_Ordering(t *testing.T) {
	if !(Trusted < Caution && Caution < Untrusted) {
		t.Errorf("levels not ordered: Trusted=%d Caution=%d Untrusted=%d",
			Trusted, Caution, Untrusted)
	}
}

func TestLevel_Degrade(t *testing.T) {
	tests := []struct {
		name string
		in   Level
		want Level
	}{
		{"trusted to caution", Trusted, Caution},
		{"caution to untrusted", Caution, Untrusted},
		{"untrusted stays", Untrusted, Untrusted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Degrade(); got != tt.want {
				t.Errorf("Degrade() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_String(t *testing.T) {
	if Trusted.String() != "trusted" || Caution.String() != "caution" || Untrusted.String() != "untrusted" {
		t.Error("wire names do not match trusted/caution/untrusted")
	}
	if Level(9).String() != "unknown" {
		t.Errorf("undefined level String() = %q, want unknown", Level(9).String())
	}
}

func TestLevel_JSON(t *testing.T) {
	data, err := json.Marshal(Caution)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"caution"` {
		t.Errorf("marshal = %s, want \"caution\"", data)
	}

	var l Level
	if err := json.Unmarshal([]byte(`"untrusted"`), &l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l != Untrusted {
		t.Errorf("unmarshal = %v, want Untrusted", l)
	}

	if err := json.Unmarshal([]byte(`"sketchy"`), &l); err == nil {
		t.Error("expected error for unknown wire name")
	}

	if _, err := json.Marshal(Level(42)); err == nil {
		t.Error("expected error marshaling undefined level")
	}
}
