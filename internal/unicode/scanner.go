// Package unicode finds characters that make text read differently to a
// person, or a model, than it executes: invisible format characters,
// direction overrides, tag characters, raw control bytes and look-alike
// letters from other scripts.
package unicode

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies a finding.
type Kind string

const (
	ZeroWidth   Kind = "zero-width"
	Bidi        Kind = "bidi-override"
	Tag         Kind = "tag-char"
	Control     Kind = "control-char"
	InvalidUTF8 Kind = "invalid-utf8"
	Homoglyph   Kind = "homoglyph"
)

// Finding is one suspicious character.
type Finding struct {
	Kind   Kind
	Rune   rune // utf8.RuneError for invalid bytes
	Offset int  // byte offset in the input
	// Looks is the Latin letter a homoglyph imitates.
	Looks rune
}

func (f Finding) String() string {
	if f.Kind == Homoglyph {
		return fmt.Sprintf("%s U+%04X looks like %q at byte %d", f.Kind, f.Rune, f.Looks, f.Offset)
	}
	return fmt.Sprintf("%s U+%04X at byte %d", f.Kind, f.Rune, f.Offset)
}

// Blocking reports whether the finding alone is reason to refuse a command.
// Look-alike letters also show up in legitimate non-English text, so they
// are reported but never block.
func (f Finding) Blocking() bool {
	return f.Kind != Homoglyph
}

// Report is the result of Scan.
type Report struct {
	Findings []Finding
	// Sanitized is the input without the blocking characters. Look-alike
	// letters are kept.
	Sanitized string
}

func (r Report) Clean() bool { return len(r.Findings) == 0 }

// Blocking returns the findings that should deny a command.
func (r Report) Blocking() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Blocking() {
			out = append(out, f)
		}
	}
	return out
}

// Kinds lists the distinct kinds found, in order of first appearance.
func (r Report) Kinds() []Kind {
	seen := make(map[Kind]bool)
	var out []Kind
	for _, f := range r.Findings {
		if !seen[f.Kind] {
			seen[f.Kind] = true
			out = append(out, f.Kind)
		}
	}
	return out
}

var zeroWidth = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x180e, Hi: 0x180e, Stride: 1},
		{Lo: 0x200b, Hi: 0x200f, Stride: 1},
		{Lo: 0x2060, Hi: 0x2064, Stride: 1},
		{Lo: 0xfeff, Hi: 0xfeff, Stride: 1},
	},
}

var bidi = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x061c, Hi: 0x061c, Stride: 1},
		{Lo: 0x202a, Hi: 0x202e, Stride: 1},
		{Lo: 0x2066, Hi: 0x2069, Stride: 1},
	},
}

var tags = &unicode.RangeTable{
	R32: []unicode.Range32{
		{Lo: 0xe0000, Hi: 0xe007f, Stride: 1},
	},
}

// homoglyphs maps Cyrillic and Greek letters to the Latin letter they
// imitate.
var homoglyphs = map[rune]rune{
	// Cyrillic
	'а': 'a', 'А': 'A', 'В': 'B', 'с': 'c', 'С': 'C',
	'е': 'e', 'Е': 'E', 'Н': 'H', 'і': 'i', 'І': 'I',
	'ј': 'j', 'К': 'K', 'М': 'M', 'о': 'o', 'О': 'O',
	'р': 'p', 'Р': 'P', 'ѕ': 's', 'Т': 'T', 'х': 'x',
	'Х': 'X', 'у': 'y', 'У': 'Y',
	// Greek
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Η': 'H', 'Ι': 'I',
	'Κ': 'K', 'Μ': 'M', 'Ν': 'N', 'Ο': 'O', 'ο': 'o',
	'Ρ': 'P', 'Τ': 'T', 'Χ': 'X', 'Υ': 'Y', 'Ζ': 'Z',
}

func classify(r rune) (Kind, bool) {
	switch {
	case unicode.Is(zeroWidth, r):
		return ZeroWidth, true
	case unicode.Is(bidi, r):
		return Bidi, true
	case unicode.Is(tags, r):
		return Tag, true
	case r == '\t' || r == '\n' || r == '\r':
		return "", false
	case unicode.IsControl(r):
		return Control, true
	}
	if _, ok := homoglyphs[r]; ok {
		return Homoglyph, true
	}
	return "", false
}

// Scan inspects s.
func Scan(s string) Report {
	var rep Report
	var sb strings.Builder
	sb.Grow(len(s))

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			rep.Findings = append(rep.Findings, Finding{Kind: InvalidUTF8, Rune: r, Offset: i})
			i++
			continue
		}

		kind, found := classify(r)
		if found {
			f := Finding{Kind: kind, Rune: r, Offset: i}
			if kind == Homoglyph {
				f.Looks = homoglyphs[r]
			}
			rep.Findings = append(rep.Findings, f)
		}
		if !found || kind == Homoglyph {
			sb.WriteRune(r)
		}
		i += size
	}

	rep.Sanitized = sb.String()
	return rep
}
