package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Liad0205/safe-mcp/src/audit"
	"github.com/Liad0205/safe-mcp/src/guard"
	"github.com/Liad0205/safe-mcp/src/sanitizer"
	"github.com/Liad0205/safe-mcp/src/trust"
)

// handler adapts a guard chain to the MCP tool handler shape. Every
// invocation gets a fresh UUID that lands in the envelope metadata and
// the audit trail, so client-visible responses can be matched to log
// lines later.
func (s *Server) handler(tool string, chain *guard.Chain, boundary bool) mcp.ToolHandler {
	log := s.logger.With("tool", tool)
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := uuid.NewString()

		args, err := decodeArgs(req.Params.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool, err)
		}

		env, err := chain.Run(ctx, args)
		if err != nil {
			return s.guardFailure(log, id, tool, err)
		}

		env = env.WithMetadata("invocation_id", id)
		s.record(log, audit.Event{
			InvocationID: id,
			Tool:         tool,
			TrustLevel:   env.Level.String(),
			Action:       sanitizationAction(env),
			Patterns:     firedPatterns(env),
			WarningCount: len(env.Warnings),
		})
		return renderEnvelope(env, tool, boundary)
	}
}

// guardFailure maps guard errors onto the MCP result. Validation
// rejections and sanitization blocks are expected outcomes and become
// IsError results the client can show; anything else is the tool's own
// failure and propagates unchanged.
func (s *Server) guardFailure(log *slog.Logger, id, tool string, err error) (*mcp.CallToolResult, error) {
	var verr *guard.ValidationError
	if errors.As(err, &verr) {
		log.Warn("rejected tool call", "invocation_id", id, "predicate", verr.Predicate)
		s.record(log, audit.Event{
			InvocationID: id,
			Tool:         tool,
			Action:       "rejected",
			Error:        err.Error(),
		})
		return errorResult(err.Error()), nil
	}

	var blocked *sanitizer.BlockedError
	if errors.As(err, &blocked) {
		log.Warn("blocked tool response", "invocation_id", id, "findings", len(blocked.Entries))
		s.record(log, audit.Event{
			InvocationID: id,
			Tool:         tool,
			Action:       sanitizer.ActionBlocked.String(),
			Patterns:     sanitizer.Report{Entries: blocked.Entries}.Patterns(),
			Error:        err.Error(),
		})
		return errorResult(err.Error()), nil
	}

	s.record(log, audit.Event{
		InvocationID: id,
		Tool:         tool,
		Action:       "error",
		Error:        err.Error(),
	})
	return nil, err
}

// record writes an audit event when the server has an audit log. Audit
// failures never fail the tool call.
func (s *Server) record(log *slog.Logger, ev audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ev); err != nil {
		log.Error("audit write failed", "error", err)
	}
}

func sanitizationAction(env trust.Envelope) string {
	if a, ok := env.Metadata["sanitization_action"].(string); ok {
		return a
	}
	return sanitizer.ActionNone.String()
}

func firedPatterns(env trust.Envelope) []string {
	ids, _ := env.Metadata["patterns"].([]string)
	return ids
}

// decodeArgs converts incoming tool arguments to the map the guard
// layer works with. Over real transports arguments arrive as raw JSON;
// in-memory transports may deliver already-decoded values.
func decodeArgs(v any) (map[string]any, error) {
	switch args := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return args, nil
	case json.RawMessage:
		return unmarshalArgs(args)
	case []byte:
		return unmarshalArgs(args)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding arguments: %w", err)
	}
	return unmarshalArgs(raw)
}

func unmarshalArgs(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decoding arguments: %w", err)
	}
	return args, nil
}
