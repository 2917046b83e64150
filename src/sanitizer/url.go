package sanitizer

import (
	"context"
	"regexp"
)

var (
	// urlExtractor matches http/https URLs in text.
	urlExtractor = regexp.MustCompile(`https?://[^\s<>"{}|\\^\x60\[\]]+`)

	// dangerousSchemes matches javascript: and data:text/html URIs.
	dangerousSchemes = regexp.MustCompile(`(?i)(javascript\s*:|data\s*:\s*text/html)`)

	// exfilParams matches URL query params that look like data exfiltration.
	exfilParams = regexp.MustCompile(`(?i)[?&](secret|token|key|password|api_key|credential|auth|session_id|private_key)=`)
)

// Pattern IDs emitted by the URL scanner.
const (
	patternIDURLScheme = "url-scheme"
	patternIDURLExfil  = "url-exfil"
)

// URLScanner detects dangerous URI schemes and URLs whose query
// parameters look like credential exfiltration. It is not part of the
// default scanner set; enable it per application.
type URLScanner struct{}

func (URLScanner) Name() string { return "url" }

func (URLScanner) Scan(_ context.Context, text string) ([]Finding, error) {
	var findings []Finding

	for _, loc := range dangerousSchemes.FindAllStringIndex(text, -1) {
		findings = append(findings, Finding{
			Kind:       KindInjection,
			PatternID:  patternIDURLScheme,
			Span:       Span{Start: loc[0], End: loc[1]},
			Confidence: 0.90,
			Match:      text[loc[0]:loc[1]],
		})
	}

	for _, loc := range urlExtractor.FindAllStringIndex(text, -1) {
		u := text[loc[0]:loc[1]]
		if exfilParams.MatchString(u) {
			findings = append(findings, Finding{
				Kind:       KindEncoding,
				PatternID:  patternIDURLExfil,
				Span:       Span{Start: loc[0], End: loc[1]},
				Confidence: 0.75,
				Match:      u,
			})
		}
	}

	sortFindings(findings)
	return findings, nil
}
