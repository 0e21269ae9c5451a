// Package filter removes rows from tables.
//
// Every filter first decides per row whether to keep it and then compacts
// the kept rows into a new table, keeping their relative order. The
// compaction computes each kept row's output position with an exclusive
// Sum scan and gathers the rows through the resulting index map.
package filter

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ajitpratap0/stratum/internal/prefix"
	"github.com/ajitpratap0/stratum/pkg/aggregation"
	"github.com/ajitpratap0/stratum/pkg/bitmask"
	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/pool"
	"github.com/ajitpratap0/stratum/pkg/stream"
)

// Policy selects which rows DropNulls removes
type Policy int

const (
	// DropAny drops a row when at least one key column is null there
	DropAny Policy = iota
	// DropAll drops a row only when every key column is null there
	DropAll
)

func (p Policy) String() string {
	if p == DropAll {
		return "all"
	}
	return "any"
}

// DropNulls returns the rows of target whose key columns satisfy policy.
// keys may have fewer rows than target; rows past its end have no key
// nulls and are kept. A key table without columns, rows or nulls yields
// an unmodified copy of target.
func DropNulls(ctx context.Context, s *stream.Stream, target, keys *column.Table, policy Policy) (*column.Table, error) {
	ctx, inv := s.Begin(ctx, "drop_nulls", policy.String(), target.NumRows())
	out, err := dropNulls(ctx, s, target, keys, policy)
	recordKept(inv, out)
	inv.End(err)
	return out, err
}

// DropNullsThreshold keeps the rows of target where at least keepThreshold
// key columns are valid. DropAny corresponds to a threshold equal to the
// number of key columns and DropAll to a threshold of 1.
func DropNullsThreshold(ctx context.Context, s *stream.Stream, target, keys *column.Table, keepThreshold int) (*column.Table, error) {
	ctx, inv := s.Begin(ctx, "drop_nulls", "threshold", target.NumRows())
	out, err := dropNullsThreshold(ctx, s, target, keys, keepThreshold)
	recordKept(inv, out)
	inv.End(err)
	return out, err
}

func recordKept(inv *stream.Invocation, out *column.Table) {
	if out != nil {
		inv.Event("compacted", attribute.Int("stratum.kept_rows", out.NumRows()))
	}
}

func checkKeys(target, keys *column.Table) error {
	if keys.NumRows() > target.NumRows() {
		return errors.SizeMismatch("key rows", target.NumRows(), keys.NumRows())
	}
	return nil
}

func dropNulls(ctx context.Context, s *stream.Stream, target, keys *column.Table, policy Policy) (*column.Table, error) {
	if err := checkKeys(target, keys); err != nil {
		return nil, err
	}
	if keys.NumColumns() == 0 || keys.NumRows() == 0 || !keys.HasNulls() {
		return s.CopyTable(target)
	}

	mask, err := keepMask(s, target.NumRows(), keys, policy)
	if err != nil {
		return nil, err
	}
	defer mask.Release()
	if mask.NullCount() == 0 {
		return s.CopyTable(target)
	}
	return compact(ctx, s, target, mask.Get)
}

// keepMask combines the key validities word by word: DropAny intersects
// them and DropAll unites them. Rows past the end of keys stay set.
func keepMask(s *stream.Stream, n int, keys *column.Table, policy Policy) (*bitmask.Bitmap, error) {
	keyRows := keys.NumRows()
	mask, err := s.NewBitmap(n, policy == DropAny)
	if err != nil {
		return nil, err
	}
	for _, c := range keys.Columns() {
		valid := c.Validity()
		switch {
		case policy == DropAny && valid != nil:
			mask.And(valid, keyRows)
		case policy == DropAll && valid == nil:
			mask.SetRange(0, keyRows, true)
		case policy == DropAll:
			mask.Or(valid, keyRows)
		}
	}
	mask.SetRange(keyRows, n-keyRows, true)
	return mask, nil
}

func dropNullsThreshold(ctx context.Context, s *stream.Stream, target, keys *column.Table, threshold int) (*column.Table, error) {
	if err := checkKeys(target, keys); err != nil {
		return nil, err
	}
	if keys.NumColumns() == 0 || keys.NumRows() == 0 || !keys.HasNulls() || threshold <= 0 {
		return s.CopyTable(target)
	}

	keyRows := keys.NumRows()
	cols := keys.Columns()
	return compact(ctx, s, target, func(i int) bool {
		if i >= keyRows {
			return true
		}
		valid := 0
		for _, c := range cols {
			if c.IsValid(i) {
				valid++
			}
		}
		return valid >= threshold
	})
}

// ApplyBooleanMask keeps the rows of target where mask is valid and true.
// mask must be a Bool column with one element per row.
func ApplyBooleanMask(ctx context.Context, s *stream.Stream, target *column.Table, mask *column.Column) (*column.Table, error) {
	ctx, inv := s.Begin(ctx, "apply_boolean_mask", mask.Type().String(), target.NumRows())
	out, err := applyBooleanMask(ctx, s, target, mask)
	recordKept(inv, out)
	inv.End(err)
	return out, err
}

func applyBooleanMask(ctx context.Context, s *stream.Stream, target *column.Table, mask *column.Column) (*column.Table, error) {
	if mask.Type().ID != column.Bool {
		return nil, errors.Unsupported("boolean mask", mask.Type().String())
	}
	if mask.Len() != target.NumRows() {
		return nil, errors.New(errors.ErrorTypeSizeMismatch, "mask length differs from table rows").
			WithDetail("mask", mask.Len()).
			WithDetail("rows", target.NumRows())
	}
	flags := column.Values[uint8](mask)
	return compact(ctx, s, target, func(i int) bool {
		return mask.IsValid(i) && flags[i] != 0
	})
}

// compact gathers the rows of target for which keep is true.
func compact(ctx context.Context, s *stream.Stream, target *column.Table, keep func(int) bool) (*column.Table, error) {
	n := target.NumRows()
	scratch, err := s.NewBuffer(n * 4)
	if err != nil {
		return nil, err
	}
	defer scratch.Release()
	positions := column.BufferValues[int32](scratch, n)

	flagsBuf, err := s.NewBuffer(n)
	if err != nil {
		return nil, err
	}
	defer flagsBuf.Release()
	flags := flagsBuf.Bytes()

	err = s.Launch(ctx, n, func(r stream.Range) error {
		for i := r.Start; i < r.End; i++ {
			flags[i] = 0
			if keep(i) {
				flags[i] = 1
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = prefix.Scan(ctx, s, n, func(i int) int32 { return int32(flags[i]) },
		positions, aggregation.NewOperator[int32](aggregation.Sum), true)
	if err != nil {
		return nil, err
	}
	kept := 0
	if n > 0 {
		kept = int(positions[n-1]) + int(flags[n-1])
	}

	rowsPtr := pool.GetIndexSlice(kept)
	defer pool.PutIndexSlice(rowsPtr)
	rows := (*rowsPtr)[:kept]

	err = s.Launch(ctx, n, func(r stream.Range) error {
		for i := r.Start; i < r.End; i++ {
			if flags[i] != 0 {
				rows[positions[i]] = int32(i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return gather(ctx, s, target, rows)
}
