package sanitizer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalize applies NFKC normalization. Scanning always runs on the
// normalized form so that fullwidth and other compatibility variants
// cannot dodge the pattern tables.
func normalize(s string) string {
	return norm.NFKC.String(s)
}

// isInvisible reports whether r is a zero-width or otherwise invisible
// character that can hide payloads or reorder rendered text: zero-width
// spaces and joiners, the BOM, soft hyphen, bidi controls, Hangul
// fillers, and the tag block.
func isInvisible(r rune) bool {
	switch r {
	case 0x200B, // zero width space
		0x200C, // zero width non-joiner
		0x200D, // zero width joiner
		0x200E, // left-to-right mark
		0x200F, // right-to-left mark
		0x2060, // word joiner
		0xFEFF, // byte order mark
		0x00AD, // soft hyphen
		0x180E, // Mongolian vowel separator
		0x115F, 0x1160, 0x3164, 0xFFA0: // Hangul fillers
		return true
	}
	if r >= 0x202A && r <= 0x202E { // bidi embedding and override
		return true
	}
	if r >= 0x2066 && r <= 0x2069 { // bidi isolates
		return true
	}
	if r == 0xE0001 || (r >= 0xE0020 && r <= 0xE007F) { // tag characters
		return true
	}
	return false
}

// isUnsafeControl reports whether r is a C0 or C1 control character,
// excluding tab, newline, and carriage return.
func isUnsafeControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return r < 0x20 || r == 0x7F || (r >= 0x80 && r <= 0x9F)
}

// homoglyphFold maps Cyrillic and Greek lookalikes to the Latin letters
// they imitate. Only cross-script confusables are listed; accented Latin
// is left alone.
var homoglyphFold = map[rune]rune{
	// Cyrillic uppercase
	'А': 'A', 'В': 'B', 'Е': 'E', 'К': 'K', 'М': 'M',
	'Н': 'H', 'О': 'O', 'Р': 'P', 'С': 'C', 'Т': 'T', 'У': 'Y', 'Х': 'X',
	// Cyrillic lowercase
	'а': 'a', 'е': 'e', 'і': 'i', 'о': 'o', 'р': 'p', 'с': 'c', 'ѕ': 's',
	'у': 'y', 'х': 'x', 'ј': 'j',
	// Greek uppercase
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Ζ': 'Z', 'Η': 'H', 'Ι': 'I', 'Κ': 'K',
	'Μ': 'M', 'Ν': 'N', 'Ο': 'O', 'Ρ': 'P', 'Τ': 'T', 'Υ': 'Y', 'Χ': 'X',
	// Greek lowercase
	'α': 'a', 'ο': 'o', 'ν': 'v',
}

func isHomoglyph(r rune) bool {
	_, ok := homoglyphFold[r]
	return ok
}

// foldHomoglyphs rewrites every confusable rune in s to its Latin
// equivalent, leaving other runes untouched.
func foldHomoglyphs(s string) string {
	return strings.Map(func(r rune) rune {
		if latin, ok := homoglyphFold[r]; ok {
			return latin
		}
		return r
	}, s)
}

// runeRuns returns the maximal runs of consecutive runes classified by
// match, as byte spans into text.
func runeRuns(text string, match func(rune) bool) []Span {
	var runs []Span
	start := -1
	for i, r := range text {
		if match(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, Span{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, Span{Start: start, End: len(text)})
	}
	return runs
}
