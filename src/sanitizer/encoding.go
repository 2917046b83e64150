package sanitizer

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pattern IDs emitted by the encoding scanner.
const (
	patternIDBase64    = "base64"
	patternIDHex       = "hex"
	patternIDHexEscape = "hex-escape"
	patternIDZeroWidth = "zero-width"
	patternIDControl   = "control"
	patternIDHomoglyph = "homoglyph"
)

const (
	// DefaultMinBase64Length is the shortest run of base64 alphabet
	// characters considered a candidate payload.
	DefaultMinBase64Length = 20

	// DefaultMaxDecodeDepth is how many layers of encoding the scanner
	// decodes and re-scans. maxDecodeDepthCap bounds configuration.
	DefaultMaxDecodeDepth = 1
	maxDecodeDepthCap     = 3
)

var (
	hexRunPattern    = regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`)
	hexEscapePattern = regexp.MustCompile(`(?:\\x[0-9a-fA-F]{2}){4,}`)
)

// EncodingOptions configure the encoding scanner. Zero values select
// the defaults.
type EncodingOptions struct {
	// MinBase64Length overrides DefaultMinBase64Length.
	MinBase64Length int

	// MaxDecodeDepth overrides DefaultMaxDecodeDepth. Values above the
	// cap are clamped; negative values disable decoding entirely.
	MaxDecodeDepth int
}

// EncodingScanner detects content that hides payloads from plain pattern
// matching: base64 and hex runs, invisible Unicode, control characters,
// and cross-script homoglyphs. Decodable runs are decoded and re-scanned
// for injection and jailbreak patterns up to the configured depth; those
// nested findings carry the span of the encoded run and Depth > 0.
type EncodingScanner struct {
	base64Run *regexp.Regexp
	maxDepth  int
	rescan    []Scanner
}

// NewEncodingScanner builds a scanner from the given options.
func NewEncodingScanner(opts EncodingOptions) *EncodingScanner {
	minLen := opts.MinBase64Length
	if minLen <= 0 {
		minLen = DefaultMinBase64Length
	}
	depth := opts.MaxDecodeDepth
	if depth == 0 {
		depth = DefaultMaxDecodeDepth
	}
	if depth < 0 {
		depth = 0
	}
	if depth > maxDecodeDepthCap {
		depth = maxDecodeDepthCap
	}
	return &EncodingScanner{
		base64Run: regexp.MustCompile(fmt.Sprintf(`[A-Za-z0-9+/]{%d,}={0,2}`, minLen)),
		maxDepth:  depth,
		rescan: []Scanner{
			&InjectionScanner{rules: builtinInjectionRules},
			&JailbreakScanner{rules: builtinJailbreakRules},
		},
	}
}

func (s *EncodingScanner) Name() string { return "encoding" }

func (s *EncodingScanner) Scan(ctx context.Context, text string) ([]Finding, error) {
	var findings []Finding
	for _, span := range runeRuns(text, isInvisible) {
		findings = append(findings, runFinding(patternIDZeroWidth, 0.90, span, text))
	}
	for _, span := range runeRuns(text, isUnsafeControl) {
		findings = append(findings, runFinding(patternIDControl, 0.90, span, text))
	}
	for _, span := range runeRuns(text, isHomoglyph) {
		findings = append(findings, runFinding(patternIDHomoglyph, 0.85, span, text))
	}
	findings = append(findings, s.scanEncoded(ctx, text, 0)...)
	sortFindings(findings)
	return findings, nil
}

func runFinding(id string, confidence float64, span Span, text string) Finding {
	return Finding{
		Kind:       KindEncoding,
		PatternID:  id,
		Span:       span,
		Confidence: confidence,
		Match:      text[span.Start:span.End],
	}
}

// scanEncoded finds encoded runs in text and, depth permitting, decodes
// them and re-scans the payloads. depth is the nesting level of text
// itself: zero for leaf content, more for decoded payloads.
func (s *EncodingScanner) scanEncoded(ctx context.Context, text string, depth int) []Finding {
	var findings []Finding

	for _, loc := range hexRunPattern.FindAllStringIndex(text, -1) {
		span := Span{Start: loc[0], End: loc[1]}
		raw := text[loc[0]:loc[1]]
		f := runFinding(patternIDHex, 0.55, span, text)
		f.Depth = depth
		findings = append(findings, f)
		if decoded, ok := decodeHexRun(raw); ok {
			findings = append(findings, s.rescanDecoded(ctx, decoded, span, depth)...)
		}
	}

	for _, loc := range hexEscapePattern.FindAllStringIndex(text, -1) {
		span := Span{Start: loc[0], End: loc[1]}
		raw := text[loc[0]:loc[1]]
		f := runFinding(patternIDHexEscape, 0.70, span, text)
		f.Depth = depth
		findings = append(findings, f)
		if decoded, ok := decodeHexRun(strings.ReplaceAll(raw, `\x`, "")); ok {
			findings = append(findings, s.rescanDecoded(ctx, decoded, span, depth)...)
		}
	}

	for _, loc := range s.base64Run.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		// Pure hex runs belong to the hex detector.
		if allHexDigits(raw) {
			continue
		}
		decoded, ok := decodeBase64(raw)
		if !ok {
			continue
		}
		span := Span{Start: loc[0], End: loc[1]}
		f := runFinding(patternIDBase64, 0.60, span, text)
		f.Depth = depth
		findings = append(findings, f)
		findings = append(findings, s.rescanDecoded(ctx, decoded, span, depth)...)
	}

	return findings
}

// rescanDecoded scans a decoded payload for injection and jailbreak
// patterns and for further encoded runs, remapping every finding onto
// the span of the encoded run it came from.
func (s *EncodingScanner) rescanDecoded(ctx context.Context, decoded []byte, outer Span, depth int) []Finding {
	next := depth + 1
	if next > s.maxDepth {
		return nil
	}
	payload := string(decoded)
	if !mostlyPrintable(payload) {
		return nil
	}
	payload = normalize(payload)

	var findings []Finding
	for _, sc := range s.rescan {
		fs, err := sc.Scan(ctx, payload)
		if err != nil {
			continue
		}
		for _, f := range fs {
			f.Span = outer
			f.Depth = next
			findings = append(findings, f)
		}
	}
	for _, f := range s.scanEncoded(ctx, payload, next) {
		f.Span = outer
		findings = append(findings, f)
	}
	return findings
}

// decodeBase64 decodes a base64 alphabet run, repairing missing padding.
func decodeBase64(s string) ([]byte, bool) {
	s = strings.TrimRight(s, "=")
	switch len(s) % 4 {
	case 1:
		return nil, false
	case 2:
		s += "=="
	case 3:
		s += "="
	}
	b, err := base64.StdEncoding.DecodeString(s)
	return b, err == nil
}

func decodeHexRun(s string) ([]byte, bool) {
	if len(s)%2 != 0 {
		return nil, false
	}
	b, err := hex.DecodeString(s)
	return b, err == nil
}

func allHexDigits(s string) bool {
	s = strings.TrimRight(s, "=")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// mostlyPrintable reports whether a decoded payload looks like text
// worth re-scanning rather than binary data.
func mostlyPrintable(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	total, printable := 0, 0
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(printable)/float64(total) >= 0.85
}
