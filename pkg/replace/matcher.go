package replace

import (
	"regexp"
	"regexp/syntax"

	"github.com/ajitpratap0/stratum/pkg/errors"
)

// Match holds the byte offsets of one match and its capture groups:
// group k spans [m[2k], m[2k+1]), and both offsets are -1 when the group
// did not take part in the match.
type Match []int

// Group returns the bytes of group k of the match in text, nil when the
// group did not participate.
func (m Match) Group(text []byte, k int) []byte {
	start, end := m[2*k], m[2*k+1]
	if start < 0 {
		return nil
	}
	return text[start:end]
}

// Matcher finds the non-overlapping matches of a pattern.
// Implementations must be safe for concurrent use.
type Matcher interface {
	// MatchAll returns every match in text from left to right
	MatchAll(text []byte) []Match
	// NumGroups returns the number of capture groups, excluding group 0
	NumGroups() int
	// NumInstructions returns the size of the compiled program
	NumInstructions() int
}

// RegexMatcher is a Matcher backed by the regexp package.
type RegexMatcher struct {
	re    *regexp.Regexp
	insts int
}

// NewRegexMatcher compiles pattern with Perl syntax.
func NewRegexMatcher(pattern string) (*RegexMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid pattern").
			WithDetail("pattern", pattern)
	}

	parsed, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid pattern").
			WithDetail("pattern", pattern)
	}
	prog, err := syntax.Compile(parsed.Simplify())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "pattern does not compile").
			WithDetail("pattern", pattern)
	}
	return &RegexMatcher{re: re, insts: len(prog.Inst)}, nil
}

// MatchAll implements Matcher
func (m *RegexMatcher) MatchAll(text []byte) []Match {
	found := m.re.FindAllSubmatchIndex(text, -1)
	if len(found) == 0 {
		return nil
	}
	out := make([]Match, len(found))
	for i, f := range found {
		out[i] = f
	}
	return out
}

// NumGroups implements Matcher
func (m *RegexMatcher) NumGroups() int { return m.re.NumSubexp() }

// NumInstructions implements Matcher
func (m *RegexMatcher) NumInstructions() int { return m.insts }

// String returns the source pattern
func (m *RegexMatcher) String() string { return m.re.String() }
