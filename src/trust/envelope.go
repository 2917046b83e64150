package trust

// Envelope carries tool output together with its trust metadata. Treat an
// Envelope as immutable once constructed: pipeline stages derive updated
// copies via the With helpers instead of mutating fields in place, so
// concurrent invocations never share state.
type Envelope struct {
	Content  any            `json:"content"`
	Level    Level          `json:"trust_level"`
	Warnings []string       `json:"warnings,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// WithContent returns a copy of the envelope with the content replaced.
func (e Envelope) WithContent(content any) Envelope {
	e.Content = content
	return e
}

// WithWarnings returns a copy of the envelope with the given warnings
// appended. The warning slice is copied, never shared with the receiver.
func (e Envelope) WithWarnings(warnings ...string) Envelope {
	if len(warnings) == 0 {
		return e
	}
	ws := make([]string, 0, len(e.Warnings)+len(warnings))
	ws = append(ws, e.Warnings...)
	ws = append(ws, warnings...)
	e.Warnings = ws
	return e
}

// WithMetadata returns a copy of the envelope with the key set. The
// metadata map is copied, never shared with the receiver.
func (e Envelope) WithMetadata(key string, value any) Envelope {
	md := make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	e.Metadata = md
	return e
}

// WithLevel returns a copy of the envelope with the trust level replaced.
// Only trust marking may raise a level; pipeline stages must only lower it.
func (e Envelope) WithLevel(level Level) Envelope {
	e.Level = level
	return e
}
