package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/Liad0205/safe-mcp/src/sanitizer"
)

// validName matches tool names: alphanumeric, hyphens, and underscores.
var validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Config is the top-level server configuration loaded from JSON.
type Config struct {
	Server       ServerConfig       `json:"server"`
	Sanitization SanitizationConfig `json:"sanitization"`
	Tools        []ToolConfig       `json:"tools,omitempty"`
	RulesFile    string             `json:"rulesFile,omitempty"`
	AuditLog     string             `json:"auditLog,omitempty"`
}

// ServerConfig controls how MCP clients connect to the server.
type ServerConfig struct {
	Transport string     `json:"transport"` // "stdio" or "http"
	HTTP      HTTPConfig `json:"http"`
}

// HTTPConfig holds HTTP listener settings.
type HTTPConfig struct {
	Addr string `json:"addr"` // e.g. ":8080"
	Path string `json:"path"` // e.g. "/mcp"
}

// ToolConfig adjusts sanitization for a single registered tool.
type ToolConfig struct {
	Name         string              `json:"name"`
	Sanitization *SanitizationConfig `json:"sanitization,omitempty"`
}

// SanitizationConfig controls the sanitization pipeline behaviour.
// When used at the root level it provides global defaults.
// When used per-tool, non-nil fields override the global.
type SanitizationConfig struct {
	StripThreshold           *float64 `json:"stripThreshold,omitempty"`
	BlockThreshold           *float64 `json:"blockThreshold,omitempty"` // 0 disables blocking
	FilterDetectedEncodings  *bool    `json:"filterDetectedEncodings,omitempty"`
	MaxContentChars          *int     `json:"maxContentChars,omitempty"`
	MaxDecodeDepth           *int     `json:"maxDecodeDepth,omitempty"` // 0 disables decoding
	MinBase64Length          *int     `json:"minBase64Length,omitempty"`
	EnableInjectionDetection *bool    `json:"enableInjectionDetection,omitempty"`
	EnableJailbreakDetection *bool    `json:"enableJailbreakDetection,omitempty"`
	EnableEncodingDetection  *bool    `json:"enableEncodingDetection,omitempty"`
	EnableURLDetection       *bool    `json:"enableURLDetection,omitempty"`
	EnableBoundaryWrapping   *bool    `json:"enableBoundaryWrapping,omitempty"`
	DisableBuiltInPatterns   *bool    `json:"disableBuiltInPatterns,omitempty"`
}

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	DefaultMaxContentChars = 16000
	DefaultHTTPAddr        = ":8080"
	DefaultHTTPPath        = "/mcp"
)

// Default returns the configuration an empty file would resolve to:
// stdio transport and the standard sanitization policy. Useful when no
// config file is present.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// Load reads and parses a JSON config file, applies defaults, and validates.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = TransportStdio
	}
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = DefaultHTTPAddr
	}
	if cfg.Server.HTTP.Path == "" {
		cfg.Server.HTTP.Path = DefaultHTTPPath
	}

	if cfg.Sanitization.StripThreshold == nil {
		cfg.Sanitization.StripThreshold = floatPtr(sanitizer.DefaultStripThreshold)
	}
	if cfg.Sanitization.BlockThreshold == nil {
		cfg.Sanitization.BlockThreshold = floatPtr(0)
	}
	if cfg.Sanitization.FilterDetectedEncodings == nil {
		cfg.Sanitization.FilterDetectedEncodings = boolPtr(false)
	}
	if cfg.Sanitization.MaxContentChars == nil {
		cfg.Sanitization.MaxContentChars = intPtr(DefaultMaxContentChars)
	}
	if cfg.Sanitization.MaxDecodeDepth == nil {
		cfg.Sanitization.MaxDecodeDepth = intPtr(sanitizer.DefaultMaxDecodeDepth)
	}
	if cfg.Sanitization.MinBase64Length == nil {
		cfg.Sanitization.MinBase64Length = intPtr(sanitizer.DefaultMinBase64Length)
	}
	if cfg.Sanitization.EnableInjectionDetection == nil {
		cfg.Sanitization.EnableInjectionDetection = boolPtr(true)
	}
	if cfg.Sanitization.EnableJailbreakDetection == nil {
		cfg.Sanitization.EnableJailbreakDetection = boolPtr(true)
	}
	if cfg.Sanitization.EnableEncodingDetection == nil {
		cfg.Sanitization.EnableEncodingDetection = boolPtr(true)
	}
	if cfg.Sanitization.EnableURLDetection == nil {
		cfg.Sanitization.EnableURLDetection = boolPtr(false)
	}
	if cfg.Sanitization.EnableBoundaryWrapping == nil {
		cfg.Sanitization.EnableBoundaryWrapping = boolPtr(true)
	}
	if cfg.Sanitization.DisableBuiltInPatterns == nil {
		cfg.Sanitization.DisableBuiltInPatterns = boolPtr(false)
	}
}

func validate(cfg Config) error {
	if cfg.Server.Transport != TransportStdio && cfg.Server.Transport != TransportHTTP {
		return fmt.Errorf("server transport must be %q or %q, got %q",
			TransportStdio, TransportHTTP, cfg.Server.Transport)
	}

	if err := validateSanitization("sanitization", cfg.Sanitization); err != nil {
		return err
	}

	names := make(map[string]struct{}, len(cfg.Tools))
	for i, tc := range cfg.Tools {
		if tc.Name == "" {
			return fmt.Errorf("tools[%d]: name is required", i)
		}
		if !validName.MatchString(tc.Name) {
			return fmt.Errorf("tools[%d]: name %q must match %s", i, tc.Name, validName.String())
		}
		if _, exists := names[tc.Name]; exists {
			return fmt.Errorf("tools[%d]: duplicate name %q", i, tc.Name)
		}
		names[tc.Name] = struct{}{}

		if tc.Sanitization != nil {
			prefix := fmt.Sprintf("tools[%d] (%s) sanitization", i, tc.Name)
			if err := validateSanitization(prefix, *tc.Sanitization); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateSanitization checks only non-nil fields so it works both for the
// fully-defaulted root config and for sparse per-tool overrides.
func validateSanitization(prefix string, sc SanitizationConfig) error {
	if sc.StripThreshold != nil && (*sc.StripThreshold <= 0 || *sc.StripThreshold > 1) {
		return fmt.Errorf("%s.stripThreshold must be in (0, 1], got %v", prefix, *sc.StripThreshold)
	}
	if sc.BlockThreshold != nil && (*sc.BlockThreshold < 0 || *sc.BlockThreshold > 1) {
		return fmt.Errorf("%s.blockThreshold must be in [0, 1], got %v", prefix, *sc.BlockThreshold)
	}
	if sc.MaxContentChars != nil && *sc.MaxContentChars < 0 {
		return fmt.Errorf("%s.maxContentChars must be >= 0, got %d", prefix, *sc.MaxContentChars)
	}
	if sc.MaxDecodeDepth != nil && *sc.MaxDecodeDepth < 0 {
		return fmt.Errorf("%s.maxDecodeDepth must be >= 0, got %d", prefix, *sc.MaxDecodeDepth)
	}
	if sc.MinBase64Length != nil && *sc.MinBase64Length < 1 {
		return fmt.Errorf("%s.minBase64Length must be >= 1, got %d", prefix, *sc.MinBase64Length)
	}
	return nil
}

// Merge returns a SanitizationConfig with per-tool overrides applied on
// top of global defaults. Fields that are nil in the override use the global value.
func Merge(global, override *SanitizationConfig) SanitizationConfig {
	if override == nil {
		return *global
	}

	merged := *global

	if override.StripThreshold != nil {
		merged.StripThreshold = override.StripThreshold
	}
	if override.BlockThreshold != nil {
		merged.BlockThreshold = override.BlockThreshold
	}
	if override.FilterDetectedEncodings != nil {
		merged.FilterDetectedEncodings = override.FilterDetectedEncodings
	}
	if override.MaxContentChars != nil {
		merged.MaxContentChars = override.MaxContentChars
	}
	if override.MaxDecodeDepth != nil {
		merged.MaxDecodeDepth = override.MaxDecodeDepth
	}
	if override.MinBase64Length != nil {
		merged.MinBase64Length = override.MinBase64Length
	}
	if override.EnableInjectionDetection != nil {
		merged.EnableInjectionDetection = override.EnableInjectionDetection
	}
	if override.EnableJailbreakDetection != nil {
		merged.EnableJailbreakDetection = override.EnableJailbreakDetection
	}
	if override.EnableEncodingDetection != nil {
		merged.EnableEncodingDetection = override.EnableEncodingDetection
	}
	if override.EnableURLDetection != nil {
		merged.EnableURLDetection = override.EnableURLDetection
	}
	if override.EnableBoundaryWrapping != nil {
		merged.EnableBoundaryWrapping = override.EnableBoundaryWrapping
	}
	if override.DisableBuiltInPatterns != nil {
		merged.DisableBuiltInPatterns = override.DisableBuiltInPatterns
	}

	return merged
}

func boolPtr(b bool) *bool        { return &b }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }
