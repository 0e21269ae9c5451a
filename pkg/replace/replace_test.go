package replace

import (
	"context"
	"regexp"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/config"
	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/stream"
)

func newStream(t *testing.T) (*stream.Stream, *memory.CheckedAllocator) {
	t.Helper()
	checked := memory.NewCheckedAllocator(memory.NewGoAllocator())
	cfg := config.Default().Engine
	cfg.GrainSize = 64
	cfg.Workers = 4
	s, err := stream.New(cfg, stream.WithAllocator(checked))
	require.NoError(t, err)
	return s, checked
}

func mustMatcher(t *testing.T, pattern string) *RegexMatcher {
	t.Helper()
	m, err := NewRegexMatcher(pattern)
	require.NoError(t, err)
	return m
}

func TestWithBackrefs(t *testing.T) {
	s, checked := newStream(t)
	defer checked.AssertSize(t, 0)

	strs := column.FromStrings(s.Allocator(),
		[]string{"alice@example", "no address", "", "bob@host and carol@site"},
		[]bool{true, true, false, true})
	defer strs.Release()

	out, err := WithBackrefs(context.Background(), s, strs, mustMatcher(t, `(\w+)@(\w+)`), `\2 at ${1}`)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []string{"example at alice", "no address", "", "host at bob and site at carol"}, column.Strings(out))
	assert.Equal(t, []bool{true, true, false, true}, column.ValidSlice(out))
}

func TestWholeMatchAndMissingGroups(t *testing.T) {
	s, checked := newStream(t)
	defer checked.AssertSize(t, 0)

	strs := column.FromStrings(s.Allocator(), []string{"ab", "ba", "c"}, nil)
	defer strs.Release()

	out, err := WithBackrefs(context.Background(), s, strs, mustMatcher(t, `(a)|(b)`), `<\0:\1\2>`)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []string{"<a:a><b:b>", "<b:b><a:a>", "c"}, column.Strings(out))
}

func TestEmptyMatches(t *testing.T) {
	s, checked := newStream(t)
	defer checked.AssertSize(t, 0)

	strs := column.FromStrings(s.Allocator(), []string{"abc", ""}, nil)
	defer strs.Release()

	out, err := WithBackrefs(context.Background(), s, strs, mustMatcher(t, `x*`), `-`)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []string{"-a-b-c-", "-"}, column.Strings(out))
}

func TestTemplateReferencesMissingGroup(t *testing.T) {
	s, checked := newStream(t)
	defer checked.AssertSize(t, 0)

	strs := column.FromStrings(s.Allocator(), []string{"a"}, []bool{true})
	defer strs.Release()

	before := s.BytesInUse()
	_, err := WithBackrefs(context.Background(), s, strs, mustMatcher(t, `(a)`), `${2}`)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Equal(t, before, s.BytesInUse())
}

func TestLargeProgramMatchesSmallProgram(t *testing.T) {
	s, checked := newStream(t)
	defer checked.AssertSize(t, 0)
	ctx := context.Background()

	const n = 500
	values := make([]string, n)
	valid := make([]bool, n)
	for i := range values {
		values[i] = "k" + string(rune('a'+i%26)) + "=v" + string(rune('0'+i%10)) + ";tail"
		valid[i] = i%9 != 0
	}
	strs := column.FromStrings(s.Allocator(), values, valid)
	defer strs.Release()

	m := mustMatcher(t, `(k\w)=(v\d)`)
	small, err := WithBackrefs(ctx, s, strs, m, `\2:\1`)
	require.NoError(t, err)
	defer small.Release()

	large, err := WithBackrefs(ctx, s, strs, m, `\2:\1`,
		WithConfig(config.RegexConfig{SmallProgramThreshold: 1, LargeProgramWorkers: 1}))
	require.NoError(t, err)
	defer large.Release()

	assert.Equal(t, column.Strings(small), column.Strings(large))
	assert.Equal(t, column.ValidSlice(small), column.ValidSlice(large))

	re := regexp.MustCompile(`(k\w)=(v\d)`)
	got := column.Strings(small)
	for i, v := range values {
		if valid[i] {
			require.Equal(t, re.ReplaceAllString(v, "${2}:${1}"), got[i], "row %d", i)
		}
	}
}

func TestRejectsNonStringColumns(t *testing.T) {
	s, checked := newStream(t)
	defer checked.AssertSize(t, 0)

	ints := column.FromSlice(s.Allocator(), []int32{1}, nil)
	defer ints.Release()

	_, err := WithBackrefs(context.Background(), s, ints, mustMatcher(t, `1`), `2`)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupported))
}

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		in       string
		segments []segment
		maxGroup int
	}{
		{"plain", []segment{{literal: "plain", group: -1}}, -1},
		{`\1-\12`, []segment{{group: 1}, {literal: "-", group: -1}, {group: 12}}, 12},
		{`\123`, []segment{{group: 12}, {literal: "3", group: -1}}, 12},
		{`${7}x${99}`, []segment{{group: 7}, {literal: "x", group: -1}, {group: 99}}, 99},
		{`$1 ${} ${123} \x`, []segment{{literal: `$1 ${} ${123} \x`, group: -1}}, -1},
	}
	for _, tt := range tests {
		tmpl := parseTemplate(tt.in)
		assert.Equal(t, tt.segments, tmpl.segments, tt.in)
		assert.Equal(t, tt.maxGroup, tmpl.maxGroup, tt.in)
	}
}

func TestNewRegexMatcher(t *testing.T) {
	m := mustMatcher(t, `(a+)(b)?`)
	assert.Equal(t, 2, m.NumGroups())
	assert.Greater(t, m.NumInstructions(), 0)
	assert.Equal(t, `(a+)(b)?`, m.String())

	matches := m.MatchAll([]byte("aa-ab"))
	require.Len(t, matches, 2)
	assert.Nil(t, matches[0].Group([]byte("aa-ab"), 2))
	assert.Equal(t, "b", string(matches[1].Group([]byte("aa-ab"), 2)))

	_, err := NewRegexMatcher(`(`)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
