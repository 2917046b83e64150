package server

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Liad0205/safe-mcp/src/trust"
)

// renderEnvelope turns an envelope into an MCP tool result: the envelope
// serialized as one JSON text content item, so clients can read content,
// trust_level, and warnings to decide downstream handling. With boundary
// enabled, anything below Trusted is wrapped in delimiters first.
func renderEnvelope(env trust.Envelope, source string, boundary bool) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding response envelope: %w", err)
	}

	text := string(raw)
	if boundary && env.Level != trust.Trusted {
		text = wrapBoundary(text, source)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil
}

// wrapBoundary wraps text in XML-style delimiters to help an LLM client
// distinguish non-trusted tool output from its own instructions.
func wrapBoundary(text, source string) string {
	return fmt.Sprintf("<untrusted_tool_response source=%q>\n%s\n</untrusted_tool_response>", source, text)
}

// errorResult reports a guard rejection to the MCP client. The call
// itself succeeded at the protocol level; IsError tells the client the
// tool refused to produce output.
func errorResult(reason string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: reason}},
		IsError: true,
	}
}
