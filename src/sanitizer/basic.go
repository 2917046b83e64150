package sanitizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Liad0205/safe-mcp/src/trust"
)

const (
	// FilteredPlaceholder replaces stripped spans.
	FilteredPlaceholder = "[FILTERED]"

	// DefaultStripThreshold is the confidence at or above which a
	// finding is stripped rather than just flagged.
	DefaultStripThreshold = 0.8

	truncationMarker = "\n[truncated]"
)

// Options configure a Basic pipeline. Zero values select defaults.
type Options struct {
	// StripThreshold is the confidence at or above which findings are
	// stripped. Values at or below zero select DefaultStripThreshold.
	StripThreshold float64

	// BlockThreshold, when above zero, aborts the whole call with a
	// *BlockedError for any finding at or above it.
	BlockThreshold float64

	// FilterDetectedEncodings escalates every encoding finding to a
	// strip regardless of confidence.
	FilterDetectedEncodings bool

	// MaxContentChars caps each string leaf's length in runes. Longer
	// leaves are truncated before scanning. Zero means no cap.
	MaxContentChars int
}

// Basic walks content, runs its scanners over every string leaf, and
// applies a warn/strip/block policy to the findings. Leaves are NFKC
// normalized before scanning; report spans refer to the normalized
// text, which is also what flows out when content changes.
type Basic struct {
	scanners []Scanner
	opts     Options
}

// NewBasic builds a pipeline over the given scanners, run in order for
// every leaf. Use DefaultScanners for the built-in set.
func NewBasic(scanners []Scanner, opts Options) *Basic {
	if opts.StripThreshold <= 0 {
		opts.StripThreshold = DefaultStripThreshold
	}
	return &Basic{scanners: scanners, opts: opts}
}

// DefaultScanners returns the built-in scanner set: injection,
// jailbreak, and encoding, in that order. The scanners share immutable
// compiled patterns and are safe for concurrent use.
func DefaultScanners() []Scanner {
	return []Scanner{
		&InjectionScanner{rules: builtinInjectionRules},
		&JailbreakScanner{rules: builtinJailbreakRules},
		NewEncodingScanner(EncodingOptions{}),
	}
}

// Result is the outcome of Process.
type Result struct {
	// Content is the input with strips applied. Containers are rebuilt
	// copy-on-write; the input is never mutated.
	Content any

	Report Report

	// Changed reports whether any leaf differs from the input,
	// including changes from normalization or truncation alone.
	Changed bool
}

// BlockedError aborts a call whose content crossed the block threshold.
type BlockedError struct {
	Entries   []Entry
	Threshold float64
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("content blocked: %d finding(s) at or above confidence %.2f", len(e.Entries), e.Threshold)
}

// Process scans content and applies the policy. It returns a
// *BlockedError when any finding crosses the block threshold; no
// partially sanitized content escapes in that case.
func (b *Basic) Process(ctx context.Context, content any) (Result, error) {
	var (
		entries []Entry
		notes   []string
	)
	out, changed, err := walkStrings(content, "", func(path, text string) (string, bool, error) {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		cleaned, leafEntries, leafNotes, err := b.processLeaf(ctx, path, text)
		if err != nil {
			return "", false, err
		}
		entries = append(entries, leafEntries...)
		notes = append(notes, leafNotes...)
		return cleaned, cleaned != text, nil
	})
	if err != nil {
		return Result{}, err
	}

	report := Report{Entries: entries, Notes: notes}
	for _, e := range entries {
		if e.Action > report.Action {
			report.Action = e.Action
		}
	}
	if report.Action == ActionBlocked {
		var blocked []Entry
		for _, e := range entries {
			if e.Action == ActionBlocked {
				blocked = append(blocked, e)
			}
		}
		return Result{}, &BlockedError{Entries: blocked, Threshold: b.opts.BlockThreshold}
	}
	return Result{Content: out, Report: report, Changed: changed}, nil
}

func (b *Basic) processLeaf(ctx context.Context, path, text string) (string, []Entry, []string, error) {
	work := normalize(text)

	var notes []string
	if b.opts.MaxContentChars > 0 {
		if truncated, ok := truncateRunes(work, b.opts.MaxContentChars); ok {
			work = truncated
			note := fmt.Sprintf("Content truncated to %d characters.", b.opts.MaxContentChars)
			if path != "" {
				note += fmt.Sprintf(" (at %s)", path)
			}
			notes = append(notes, note)
		}
	}

	var findings []Finding
	for _, sc := range b.scanners {
		fs, err := sc.Scan(ctx, work)
		if err != nil {
			return "", nil, nil, fmt.Errorf("scanner %s: %w", sc.Name(), err)
		}
		findings = append(findings, fs...)
	}

	entries := make([]Entry, 0, len(findings))
	var strips []stripSpan
	for _, f := range findings {
		action := b.actionFor(f)
		entries = append(entries, Entry{Path: path, Finding: f, Action: action})
		if action == ActionStripped {
			strips = append(strips, stripSpan{span: f.Span, repl: replacementFor(f)})
		}
	}
	return applyStrips(work, strips), entries, notes, nil
}

func (b *Basic) actionFor(f Finding) Action {
	if b.opts.BlockThreshold > 0 && f.Confidence >= b.opts.BlockThreshold {
		return ActionBlocked
	}
	if b.opts.FilterDetectedEncodings && f.Kind == KindEncoding {
		return ActionStripped
	}
	if f.Confidence >= b.opts.StripThreshold {
		return ActionStripped
	}
	return ActionFlagged
}

// replacementFor picks what a stripped span becomes: invisible and
// control runs are removed outright, homoglyphs fold to their Latin
// equivalents, and everything else becomes the placeholder.
func replacementFor(f Finding) string {
	switch f.PatternID {
	case patternIDZeroWidth, patternIDControl:
		return ""
	case patternIDHomoglyph:
		return foldHomoglyphs(f.Match)
	default:
		return FilteredPlaceholder
	}
}

type stripSpan struct {
	span Span
	repl string
}

// applyStrips merges overlapping spans and rewrites text back to front
// so earlier offsets stay valid. When overlapping spans disagree on the
// replacement, the placeholder wins.
func applyStrips(text string, strips []stripSpan) string {
	if len(strips) == 0 {
		return text
	}
	sort.Slice(strips, func(i, j int) bool {
		if strips[i].span.Start != strips[j].span.Start {
			return strips[i].span.Start < strips[j].span.Start
		}
		return strips[i].span.End < strips[j].span.End
	})
	merged := []stripSpan{strips[0]}
	for _, s := range strips[1:] {
		last := &merged[len(merged)-1]
		if s.span.Start < last.span.End {
			if s.span.End > last.span.End {
				last.span.End = s.span.End
			}
			if s.repl != last.repl {
				last.repl = FilteredPlaceholder
			}
			continue
		}
		merged = append(merged, s)
	}
	for i := len(merged) - 1; i >= 0; i-- {
		m := merged[i]
		text = text[:m.span.Start] + m.repl + text[m.span.End:]
	}
	return text
}

// truncateRunes cuts s to max runes including the truncation marker, so
// an already truncated leaf passes through unchanged on a second run.
func truncateRunes(s string, max int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= max {
		return s, false
	}
	keep := max - len([]rune(truncationMarker))
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + truncationMarker, true
}

// Sanitize runs Process over the envelope content and folds the outcome
// back into a new envelope: warnings appended, trust degraded one step
// when anything was found, and the original content preserved in
// metadata when the content changed.
func (b *Basic) Sanitize(ctx context.Context, env trust.Envelope) (trust.Envelope, error) {
	res, err := b.Process(ctx, env.Content)
	if err != nil {
		return trust.Envelope{}, err
	}

	out := env
	if res.Changed {
		out = out.WithContent(res.Content)
		out = out.WithMetadata("original_content", env.Content)
	}
	if len(res.Report.Entries) > 0 || res.Changed {
		out = out.WithMetadata("content_sha256", contentDigest(env.Content))
		out = out.WithMetadata("sanitization_action", res.Report.Action.String())
		if ids := res.Report.Patterns(); len(ids) > 0 {
			out = out.WithMetadata("patterns", ids)
		}
	}
	if warnings := res.Report.Warnings(); len(warnings) > 0 {
		out = out.WithWarnings(warnings...)
		out = out.WithLevel(out.Level.Degrade())
	}
	return out, nil
}

// contentDigest hashes the JSON form of content, for comparing original
// and sanitized versions without storing both.
func contentDigest(content any) string {
	raw, err := json.Marshal(content)
	if err != nil {
		raw = []byte(fmt.Sprint(content))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
