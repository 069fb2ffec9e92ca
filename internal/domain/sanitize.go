package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// DefaultMaxSourceChars is the longest accepted source, in characters.
const DefaultMaxSourceChars = 50000

// DefaultDenylist holds the injection markers rejected when no list is configured.
var DefaultDenylist = []string{`<script`, `javascript:`, `data:text/html`}

const patternMatchTimeout = 250 * time.Millisecond

// ErrPatternTimeout is the cause of a rejection whose pattern did not finish
// matching in time.
var ErrPatternTimeout = errors.New("pattern match timed out")

// Pattern is a compiled, case-insensitive matcher. Patterns without regular
// expression metacharacters are matched as plain substrings.
type Pattern struct {
	source  string
	literal string
	re      *regexp2.Regexp
}

// CompilePatterns compiles patterns in order. Patterns use .NET-style regular
// expression syntax and always match case-insensitively.
func CompilePatterns(patterns []string) ([]Pattern, error) {
	out := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		if p != "" && regexp.QuoteMeta(p) == p {
			out = append(out, Pattern{source: p, literal: strings.ToLower(p)})
			continue
		}
		re, err := regexp2.Compile(p, regexp2.IgnoreCase)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		re.MatchTimeout = patternMatchTimeout
		out = append(out, Pattern{source: p, re: re})
	}
	return out, nil
}

// LiteralPatterns quotes each marker so it matches literally.
func LiteralPatterns(markers []string) []string {
	out := make([]string, len(markers))
	for i, m := range markers {
		out[i] = regexp.QuoteMeta(m)
	}
	return out
}

// Match reports whether text matches. A match that times out counts as a match.
func (p Pattern) Match(text string) bool {
	ok, err := p.match(text, strings.ToLower(text))
	return ok || err != nil
}

// match takes the text and its lowercase form so literals are folded once per
// check. err is ErrPatternTimeout when the regex ran out of time.
func (p Pattern) match(text, lower string) (bool, error) {
	if p.re == nil {
		return strings.Contains(lower, p.literal), nil
	}
	ok, err := p.re.MatchString(text)
	if err != nil {
		return false, fmt.Errorf("%w: %q: %v", ErrPatternTimeout, p.source, err)
	}
	return ok, nil
}

func (p Pattern) String() string { return p.source }

// Sanitizer rejects malformed or unsafe source before any engine work.
type Sanitizer struct {
	maxChars int
	denylist []Pattern
}

// NewSanitizer builds a sanitizer. maxChars <= 0 selects DefaultMaxSourceChars.
func NewSanitizer(maxChars int, denylist []Pattern) *Sanitizer {
	if maxChars <= 0 {
		maxChars = DefaultMaxSourceChars
	}
	return &Sanitizer{maxChars: maxChars, denylist: denylist}
}

// DefaultSanitizer uses the default length limit and denylist.
func DefaultSanitizer() *Sanitizer {
	patterns, err := CompilePatterns(LiteralPatterns(DefaultDenylist))
	if err != nil {
		panic(err)
	}
	return NewSanitizer(DefaultMaxSourceChars, patterns)
}

// Check fails with INVALID_INPUT for blank or oversized text and with
// SECURITY_VIOLATION when a denylist pattern matches.
func (s *Sanitizer) Check(source string) error {
	if strings.TrimSpace(source) == "" {
		return NewError(KindInvalidInput, "PlantUML code cannot be empty")
	}
	if n := utf8.RuneCountInString(source); n > s.maxChars {
		return NewError(KindInvalidInput,
			fmt.Sprintf("PlantUML code cannot exceed %d characters (got %d)", s.maxChars, n))
	}
	lower := strings.ToLower(source)
	for _, p := range s.denylist {
		ok, err := p.match(source, lower)
		if err != nil {
			// an undecided pattern rejects; the cause lets callers log it
			return WrapError(KindSecurityViolation, "Invalid characters detected in PlantUML code", err)
		}
		if ok {
			return NewError(KindSecurityViolation, "Invalid characters detected in PlantUML code")
		}
	}
	return nil
}

// MaxChars returns the configured length limit.
func (s *Sanitizer) MaxChars() int { return s.maxChars }

// ContentFlags reports, in order, which moderation patterns match the source.
// Flags are advisory and never make a source invalid.
func ContentFlags(source string, patterns []Pattern) []string {
	var flags []string
	lower := strings.ToLower(source)
	for _, p := range patterns {
		if ok, err := p.match(source, lower); ok || err != nil {
			flags = append(flags, fmt.Sprintf("content matches moderation pattern %q", p.String()))
		}
	}
	return flags
}
