// Package server hosts guarded tools on an MCP server. Each registered
// tool runs behind a guard chain; responses are rendered as trust
// envelopes, untrusted content is boundary-wrapped, and every decision
// can be written to the audit trail.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Liad0205/safe-mcp/src/audit"
	"github.com/Liad0205/safe-mcp/src/config"
	"github.com/Liad0205/safe-mcp/src/guard"
	"github.com/Liad0205/safe-mcp/src/rules"
	"github.com/Liad0205/safe-mcp/src/sanitizer"
	"github.com/Liad0205/safe-mcp/src/trust"
)

// Server wires config, rules, audit, and the guard layer onto an MCP
// server. Tools are registered before Run.
type Server struct {
	// MCP is the underlying MCP server. Exposed so tests and embedders
	// can drive it over their own transports.
	MCP *mcp.Server

	cfg       config.Config
	logger    *slog.Logger
	audit     *audit.Log
	overrides map[string]*config.SanitizationConfig

	mu         sync.RWMutex
	ruleSet    rules.Set
	pipelines  map[string]*sanitizer.Basic
	registered map[string]struct{}
}

// Tool describes one guarded tool registration.
type Tool struct {
	Name        string
	Description string
	// InputSchema is the JSON schema advertised to clients. Nil gets a
	// plain object schema. Arguments are not validated against it here;
	// use guard.ValidateInputs for semantic checks.
	InputSchema map[string]any
	Func        guard.ToolFunc
	// Stages are the tool's guard stages (trust marking, validation).
	Stages []guard.Stage
	// Sanitize appends a sanitize stage backed by the server-managed
	// pipeline for this tool, built from the merged config and the
	// current ruleset and swapped on rules reload.
	Sanitize bool
}

// New creates a server from a loaded config. The rules file and audit
// log named by the config are opened here.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		logger:     logger.With("area", "server"),
		overrides:  make(map[string]*config.SanitizationConfig, len(cfg.Tools)),
		pipelines:  make(map[string]*sanitizer.Basic),
		registered: make(map[string]struct{}),
	}
	for i := range cfg.Tools {
		s.overrides[cfg.Tools[i].Name] = cfg.Tools[i].Sanitization
	}

	if cfg.RulesFile != "" {
		set, err := rules.Load(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		s.ruleSet = set
	}

	if cfg.AuditLog != "" {
		log, err := audit.Open(cfg.AuditLog)
		if err != nil {
			return nil, err
		}
		s.audit = log
	}

	s.MCP = mcp.NewServer(
		&mcp.Implementation{Name: "safe-mcp", Version: Version},
		&mcp.ServerOptions{Logger: s.logger},
	)
	return s, nil
}

// Register adds a guarded tool to the server.
func (s *Server) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}

	merged := config.Merge(&s.cfg.Sanitization, s.overrides[t.Name])

	stages := make([]guard.Stage, len(t.Stages))
	copy(stages, t.Stages)
	if t.Sanitize {
		stages = append(stages, guard.Sanitize(&managedPipeline{server: s, tool: t.Name}))
	}
	chain, err := guard.NewChain(t.Func, stages...)
	if err != nil {
		return fmt.Errorf("tool %s: %w", t.Name, err)
	}

	var pipeline *sanitizer.Basic
	if t.Sanitize {
		s.mu.RLock()
		set := s.ruleSet
		s.mu.RUnlock()
		pipeline, err = buildPipeline(merged, set)
		if err != nil {
			return fmt.Errorf("tool %s: %w", t.Name, err)
		}
	}

	s.mu.Lock()
	if _, exists := s.registered[t.Name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("tool %s: already registered", t.Name)
	}
	s.registered[t.Name] = struct{}{}
	if pipeline != nil {
		s.pipelines[t.Name] = pipeline
	}
	s.mu.Unlock()

	schema := t.InputSchema
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	s.MCP.AddTool(&mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}, s.handler(t.Name, chain, deref(merged.EnableBoundaryWrapping)))

	s.logger.Info("registered tool", "tool", t.Name, "sanitized", t.Sanitize)
	return nil
}

// ReloadRules re-reads the rules file and rebuilds every sanitized
// tool's pipeline. A failed reload leaves the current ruleset serving.
func (s *Server) ReloadRules() error {
	if s.cfg.RulesFile == "" {
		return nil
	}
	set, err := rules.Load(s.cfg.RulesFile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rebuilt := make(map[string]*sanitizer.Basic, len(s.pipelines))
	for name := range s.pipelines {
		merged := config.Merge(&s.cfg.Sanitization, s.overrides[name])
		p, err := buildPipeline(merged, set)
		if err != nil {
			return fmt.Errorf("tool %s: %w", name, err)
		}
		rebuilt[name] = p
	}
	s.ruleSet = set
	s.pipelines = rebuilt
	return nil
}

// Close releases the audit log.
func (s *Server) Close() error {
	if s.audit != nil {
		return s.audit.Close()
	}
	return nil
}

func (s *Server) pipeline(tool string) *sanitizer.Basic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipelines[tool]
}

// managedPipeline resolves the tool's current pipeline on every call so
// ruleset reloads take effect without re-registering tools.
type managedPipeline struct {
	server *Server
	tool   string
}

func (m *managedPipeline) Sanitize(ctx context.Context, env trust.Envelope) (trust.Envelope, error) {
	return m.server.pipeline(m.tool).Sanitize(ctx, env)
}

// buildPipeline assembles the scanner set and policy for one merged
// sanitization config.
func buildPipeline(sc config.SanitizationConfig, set rules.Set) (*sanitizer.Basic, error) {
	var scanners []sanitizer.Scanner

	if deref(sc.EnableInjectionDetection) {
		scanner, err := sanitizer.NewInjectionScanner(deref(sc.DisableBuiltInPatterns), set.Injection)
		if err != nil {
			return nil, fmt.Errorf("injection scanner: %w", err)
		}
		scanners = append(scanners, scanner)
	}

	if deref(sc.EnableJailbreakDetection) {
		scanner, err := sanitizer.NewJailbreakScanner(deref(sc.DisableBuiltInPatterns), set.Jailbreak)
		if err != nil {
			return nil, fmt.Errorf("jailbreak scanner: %w", err)
		}
		scanners = append(scanners, scanner)
	}

	if deref(sc.EnableEncodingDetection) {
		depth := 0
		if sc.MaxDecodeDepth != nil {
			depth = *sc.MaxDecodeDepth
			if depth == 0 {
				depth = -1 // config 0 means do not decode at all
			}
		}
		scanners = append(scanners, sanitizer.NewEncodingScanner(sanitizer.EncodingOptions{
			MinBase64Length: derefInt(sc.MinBase64Length),
			MaxDecodeDepth:  depth,
		}))
	}

	if deref(sc.EnableURLDetection) {
		scanners = append(scanners, &sanitizer.URLScanner{})
	}

	return sanitizer.NewBasic(scanners, sanitizer.Options{
		StripThreshold:          derefFloat(sc.StripThreshold),
		BlockThreshold:          derefFloat(sc.BlockThreshold),
		FilterDetectedEncodings: deref(sc.FilterDetectedEncodings),
		MaxContentChars:         derefInt(sc.MaxContentChars),
	}), nil
}

func deref(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
