// Package replace rewrites the matches of a pattern in string columns
// using replacement templates with backreferences.
//
// Templates refer to capture groups as \N or ${N} with N between 0 and 99;
// group 0 is the whole match and a group that did not take part in a
// match expands to nothing. Text outside the matches is copied unchanged.
//
// Small patterns compute every output size directly from the match
// offsets and run on all workers. Patterns whose compiled program exceeds
// the small-program threshold expand each string into a pooled working
// buffer instead and run on fewer workers, so the number of large programs
// evaluated at once stays bounded.
package replace

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/stratum/pkg/bitmask"
	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/config"
	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/pool"
	"github.com/ajitpratap0/stratum/pkg/stream"
	"github.com/ajitpratap0/stratum/pkg/varlen"
)

// DefaultSmallProgramThreshold is the largest instruction count treated as
// a small program.
const DefaultSmallProgramThreshold = 100

type options struct {
	threshold    int
	largeWorkers int
}

// Option customizes WithBackrefs
type Option func(*options)

// WithConfig applies the regex configuration section.
func WithConfig(cfg config.RegexConfig) Option {
	return func(o *options) {
		if cfg.SmallProgramThreshold > 0 {
			o.threshold = cfg.SmallProgramThreshold
		}
		o.largeWorkers = cfg.LargeProgramWorkers
	}
}

// WithSmallProgramThreshold sets the largest instruction count treated as
// a small program.
func WithSmallProgramThreshold(insts int) Option {
	return func(o *options) { o.threshold = insts }
}

// WithLargeProgramWorkers bounds the concurrency of large programs.
func WithLargeProgramWorkers(workers int) Option {
	return func(o *options) { o.largeWorkers = workers }
}

// WithBackrefs replaces every match of matcher in every element of strs
// with template. Null elements stay null.
func WithBackrefs(ctx context.Context, s *stream.Stream, strs *column.Column, matcher Matcher, template string, opts ...Option) (*column.Column, error) {
	ctx, inv := s.Begin(ctx, "replace_backrefs", strs.Type().String(), strs.Len())
	out, err := withBackrefs(ctx, s, strs, matcher, template, opts)
	inv.End(err)
	return out, err
}

func withBackrefs(ctx context.Context, s *stream.Stream, strs *column.Column, matcher Matcher, tmpl string, opts []Option) (*column.Column, error) {
	if strs.Type().ID != column.String {
		return nil, errors.Unsupported("backreference replacement", strs.Type().String())
	}
	t := parseTemplate(tmpl)
	if err := t.validate(matcher.NumGroups()); err != nil {
		return nil, err.WithDetail("template", tmpl)
	}

	o := options{threshold: DefaultSmallProgramThreshold}
	for _, opt := range opts {
		opt(&o)
	}

	validity := strs.Validity()
	if validity != nil {
		var err error
		if validity, err = s.CloneBitmap(validity); err != nil {
			return nil, err
		}
	}

	if insts := matcher.NumInstructions(); insts > o.threshold {
		cfg := config.RegexConfig{LargeProgramWorkers: o.largeWorkers}
		workers := cfg.GetLargeProgramWorkers(s.Workers())
		s.Logger().Debug("using large program",
			zap.Int("instructions", insts),
			zap.Int("threshold", o.threshold),
			zap.Int("workers", workers))
		return replaceLarge(ctx, s, strs, matcher, t, workers, validity)
	}

	return varlen.Build(ctx, s, strs.Len(), validity,
		func(i int) int {
			text := strs.StringBytes(i)
			return t.size(text, matcher.MatchAll(text))
		},
		func(i int, dst []byte) int {
			text := strs.StringBytes(i)
			return len(t.expand(dst[:0], text, matcher.MatchAll(text)))
		})
}

// replaceLarge expands each element into a pooled working buffer in both
// passes: the size pass measures the expansion and the fill pass copies it.
func replaceLarge(ctx context.Context, s *stream.Stream, strs *column.Column, matcher Matcher, t *template, workers int, validity *bitmask.Bitmap) (*column.Column, error) {
	expand := func(i int) (*[]byte, []byte) {
		buf := pool.GetByteSlice()
		text := strs.StringBytes(i)
		*buf = t.expand((*buf)[:0], text, matcher.MatchAll(text))
		return buf, *buf
	}

	return varlen.BuildLimited(ctx, s, strs.Len(), workers, validity,
		func(i int) int {
			buf, out := expand(i)
			n := len(out)
			pool.PutByteSlice(buf)
			return n
		},
		func(i int, dst []byte) int {
			buf, out := expand(i)
			copy(dst, out)
			n := len(out)
			pool.PutByteSlice(buf)
			return n
		})
}
