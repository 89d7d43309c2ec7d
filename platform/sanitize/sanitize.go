// Package sanitize cleans user-supplied free text (offer messages, rejection
// reasons, vehicle titles) before it is stored.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	blankPattern = regexp.MustCompile(`[ \t]+`)
)

// Text strips markup and control characters, collapses horizontal
// whitespace and normalizes to NFC. Line breaks survive; at most one blank
// line is kept between paragraphs.
func Text(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	// Entities may hide tags.
	s = tagPattern.ReplaceAllString(html.UnescapeString(s), "")

	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return -1
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(blankPattern.ReplaceAllString(line, " "))
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}

	return norm.NFC.String(strings.TrimSpace(strings.Join(out, "\n")))
}

// TextPtr applies Text to an optional value. Input that is empty after
// cleaning becomes nil, so "   " is the same as omitting the field.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	cleaned := Text(*s)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
