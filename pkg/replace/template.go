package replace

import (
	"github.com/ajitpratap0/stratum/pkg/errors"
)

// segment is either literal text or a reference to a capture group.
type segment struct {
	literal string
	group   int // -1 for literals
}

// template is a parsed replacement string.
type template struct {
	segments []segment
	maxGroup int
}

// parseTemplate splits s into literals and group references. Both \N and
// ${N} refer to group N, where N has one or two digits; group 0 is the
// whole match. Anything else is literal text.
func parseTemplate(s string) *template {
	t := &template{maxGroup: -1}
	lit := make([]byte, 0, len(s))
	flush := func() {
		if len(lit) > 0 {
			t.segments = append(t.segments, segment{literal: string(lit), group: -1})
			lit = lit[:0]
		}
	}

	for i := 0; i < len(s); {
		group, width := groupRef(s[i:])
		if width == 0 {
			lit = append(lit, s[i])
			i++
			continue
		}
		flush()
		t.segments = append(t.segments, segment{group: group})
		if group > t.maxGroup {
			t.maxGroup = group
		}
		i += width
	}
	flush()
	return t
}

// groupRef parses a reference at the start of s and returns the group and
// the number of bytes it spans, or a width of 0 when s does not start with
// a reference.
func groupRef(s string) (group, width int) {
	switch {
	case len(s) >= 2 && s[0] == '\\' && isDigit(s[1]):
		group, width = int(s[1]-'0'), 2
		if len(s) >= 3 && isDigit(s[2]) {
			group, width = group*10+int(s[2]-'0'), 3
		}
		return group, width
	case len(s) >= 4 && s[0] == '$' && s[1] == '{':
		digits := 0
		for digits < 2 && 2+digits < len(s) && isDigit(s[2+digits]) {
			group = group*10 + int(s[2+digits]-'0')
			digits++
		}
		if digits > 0 && 2+digits < len(s) && s[2+digits] == '}' {
			return group, 3 + digits
		}
	}
	return 0, 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// validate checks that every referenced group exists in a pattern with
// numGroups capture groups.
func (t *template) validate(numGroups int) *errors.Error {
	if t.maxGroup > numGroups {
		return errors.New(errors.ErrorTypeValidation, "template references a group the pattern does not have").
			WithDetail("group", t.maxGroup).
			WithDetail("groups", numGroups)
	}
	return nil
}

// size returns the length of text with every match replaced.
func (t *template) size(text []byte, matches []Match) int {
	n, last := 0, 0
	for _, m := range matches {
		n += m[0] - last
		for _, seg := range t.segments {
			if seg.group < 0 {
				n += len(seg.literal)
				continue
			}
			if start := m[2*seg.group]; start >= 0 {
				n += m[2*seg.group+1] - start
			}
		}
		last = m[1]
	}
	return n + len(text) - last
}

// expand appends text with every match replaced to dst.
func (t *template) expand(dst, text []byte, matches []Match) []byte {
	last := 0
	for _, m := range matches {
		dst = append(dst, text[last:m[0]]...)
		for _, seg := range t.segments {
			if seg.group < 0 {
				dst = append(dst, seg.literal...)
				continue
			}
			dst = append(dst, m.Group(text, seg.group)...)
		}
		last = m[1]
	}
	return append(dst, text[last:]...)
}
