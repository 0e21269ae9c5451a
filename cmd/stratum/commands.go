package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stratum/internal/fileio"
	"github.com/ajitpratap0/stratum/pkg/aggregation"
	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/convert"
	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/filter"
	"github.com/ajitpratap0/stratum/pkg/metrics"
	"github.com/ajitpratap0/stratum/pkg/replace"
	"github.com/ajitpratap0/stratum/pkg/scan"
)

// ioFlags are the file and column flags shared by the column commands
type ioFlags struct {
	input  string
	output string
	column string
	as     string
}

func (f *ioFlags) register(cmd *cobra.Command, withColumn bool) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Input .arrow/.ipc/.parquet file, optionally with a compression suffix (required)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file; the format follows the extension (required)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	if withColumn {
		cmd.Flags().StringVarP(&f.column, "column", "c", "", "Input column name (required)")
		cmd.Flags().StringVar(&f.as, "as", "", "Name of the appended result column (default <column>_<command>)")
		_ = cmd.MarkFlagRequired("column")
	}
}

// summary is printed as JSON with --summary
type summary struct {
	Command    string  `json:"command"`
	Input      string  `json:"input"`
	Output     string  `json:"output,omitempty"`
	Column     string  `json:"column,omitempty"`
	Result     string  `json:"result,omitempty"`
	Rows       int     `json:"rows"`
	OutputRows int     `json:"output_rows"`
	Nulls      int     `json:"nulls"`
	Workers    int     `json:"workers"`
	ElapsedMS  float64 `json:"elapsed_ms"`
	RowsPerSec float64 `json:"rows_per_sec,omitempty"`
	Value      any     `json:"value,omitempty"`
}

func (a *app) printSummary(cmd *cobra.Command, s summary) error {
	if !a.summary {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode summary")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// columnKernel runs fn on one column of the input and writes the input
// table with the result appended.
func (a *app) columnKernel(cmd *cobra.Command, f *ioFlags, fn func(ctx context.Context, col *column.Column) (*column.Column, error)) error {
	ctx := cmd.Context()
	start := time.Now()
	throughput := metrics.NewThroughputTracker(cmd.Name())

	ds, err := fileio.ReadTable(ctx, f.input, a.stream.Allocator())
	if err != nil {
		return err
	}
	defer ds.Release()

	col, ok := ds.Column(f.column)
	if !ok {
		return errors.New(errors.ErrorTypeValidation, "column not found").
			WithDetail("column", f.column).
			WithDetail("columns", strings.Join(ds.Names, ","))
	}

	out, err := fn(ctx, col)
	if err != nil {
		return err
	}
	throughput.Increment(int64(col.Len()))

	name := f.as
	if name == "" {
		name = f.column + "_" + strings.ReplaceAll(cmd.Name(), "-", "_")
	}
	cols := make([]*column.Column, 0, ds.Table.NumColumns()+1)
	for _, c := range ds.Table.Columns() {
		c.Retain()
		cols = append(cols, c)
	}
	tbl, err := column.NewTable(append(cols, out)...)
	if err != nil {
		out.Release()
		for _, c := range cols {
			c.Release()
		}
		return errors.Wrap(err, errors.ErrorTypeInternal, "result length differs from input")
	}
	result := &fileio.Dataset{Names: append(append([]string{}, ds.Names...), name), Table: tbl}
	defer result.Release()

	if err := fileio.WriteTable(ctx, f.output, result, fileio.WriteOptions{IO: a.cfg.IO}); err != nil {
		return err
	}

	elapsed := time.Since(start)
	a.log.Info("command completed",
		zap.String("column", f.column),
		zap.String("result", name),
		zap.Int("rows", col.Len()),
		zap.Duration("elapsed", elapsed))

	return a.printSummary(cmd, summary{
		Command:    cmd.Name(),
		Input:      f.input,
		Output:     f.output,
		Column:     f.column,
		Result:     name,
		Rows:       col.Len(),
		OutputRows: out.Len(),
		Nulls:      out.NullCount(),
		Workers:    a.stream.Workers(),
		ElapsedMS:  float64(elapsed.Microseconds()) / 1000,
		RowsPerSec: throughput.GetAndReset(),
	})
}

func (a *app) scanCommand() *cobra.Command {
	var (
		f            ioFlags
		op           string
		exclusive    bool
		excludeNulls bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Append the prefix scan of a column",
		Long: `Append the inclusive or exclusive prefix scan of a column under sum, min,
max or product.

Example:
  stratum scan -i sales.parquet -o out.parquet -c amount --op sum --exclude-nulls`,
		RunE: func(cmd *cobra.Command, args []string) error {
			aggOp, err := aggregation.ParseOp(op)
			if err != nil {
				return err
			}
			kind, nulls := scan.Inclusive, scan.NullInclude
			if exclusive {
				kind = scan.Exclusive
			}
			if excludeNulls {
				nulls = scan.NullExclude
			}
			return a.columnKernel(cmd, &f, func(ctx context.Context, col *column.Column) (*column.Column, error) {
				return scan.Scan(ctx, a.stream, col, aggOp, kind, nulls)
			})
		},
	}
	f.register(cmd, true)
	cmd.Flags().StringVar(&op, "op", "sum", "Operator: sum, min, max or product")
	cmd.Flags().BoolVar(&exclusive, "exclusive", false, "Exclusive scan (out[i] excludes in[i])")
	cmd.Flags().BoolVar(&excludeNulls, "exclude-nulls", false, "Keep input nulls as output nulls instead of propagating the first null")
	return cmd
}

func (a *app) reduceCommand() *cobra.Command {
	var (
		input, col, op string
	)
	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Print the reduction of a column",
		RunE: func(cmd *cobra.Command, args []string) error {
			aggOp, err := aggregation.ParseOp(op)
			if err != nil {
				return err
			}
			start := time.Now()
			ds, err := fileio.ReadTable(cmd.Context(), input, a.stream.Allocator())
			if err != nil {
				return err
			}
			defer ds.Release()

			c, ok := ds.Column(col)
			if !ok {
				return errors.New(errors.ErrorTypeValidation, "column not found").WithDetail("column", col)
			}
			result, err := scan.Reduce(cmd.Context(), a.stream, c, aggOp)
			if err != nil {
				return err
			}

			var value any
			if result.Valid {
				value = result.Value
			}
			if !a.summary {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), formatScalar(result))
				return err
			}
			return a.printSummary(cmd, summary{
				Command:   cmd.Name(),
				Input:     input,
				Column:    col,
				Rows:      c.Len(),
				Nulls:     c.NullCount(),
				Workers:   a.stream.Workers(),
				ElapsedMS: float64(time.Since(start).Microseconds()) / 1000,
				Value:     value,
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input file (required)")
	cmd.Flags().StringVarP(&col, "column", "c", "", "Column name (required)")
	cmd.Flags().StringVar(&op, "op", "sum", "Operator: sum, min, max or product")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

// formatScalar renders decimals with their scale applied.
func formatScalar(s scan.Scalar) string {
	if !s.Valid {
		return "null"
	}
	if !s.Type.ID.IsDecimal() {
		return fmt.Sprint(s.Value)
	}
	var unscaled int64
	switch v := s.Value.(type) {
	case int32:
		unscaled = int64(v)
	case int64:
		unscaled = v
	}
	digits := fmt.Sprint(unscaled)
	scale := int(s.Type.Scale)
	switch {
	case scale == 0 || (unscaled == 0 && scale < 0):
		return digits
	case scale < 0:
		// a negative scale multiplies the unscaled value by 10^-scale
		return digits + strings.Repeat("0", -scale)
	}
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}
	return sign + digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
}

func (a *app) dropNullsCommand() *cobra.Command {
	var (
		f         ioFlags
		keys      []string
		policy    string
		threshold int
	)
	cmd := &cobra.Command{
		Use:   "drop-nulls",
		Short: "Drop rows with null keys",
		Long: `Drop the rows whose key columns hold nulls. With --policy any a row is
dropped when one key is null, with --policy all only when every key is null.
--threshold keeps the rows with at least that many valid keys instead.

Example:
  stratum drop-nulls -i events.arrow -o clean.arrow --keys user_id,session --policy any`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var p filter.Policy
			switch policy {
			case "any":
				p = filter.DropAny
			case "all":
				p = filter.DropAll
			default:
				return errors.New(errors.ErrorTypeValidation, "policy must be any or all").WithDetail("policy", policy)
			}

			ctx := cmd.Context()
			start := time.Now()
			ds, err := fileio.ReadTable(ctx, f.input, a.stream.Allocator())
			if err != nil {
				return err
			}
			defer ds.Release()

			keyTable, err := selectKeys(ds, keys)
			if err != nil {
				return err
			}
			defer keyTable.Release()

			var out *column.Table
			if threshold > 0 {
				out, err = filter.DropNullsThreshold(ctx, a.stream, ds.Table, keyTable, threshold)
			} else {
				out, err = filter.DropNulls(ctx, a.stream, ds.Table, keyTable, p)
			}
			if err != nil {
				return err
			}
			result := &fileio.Dataset{Names: ds.Names, Table: out}
			defer result.Release()

			if err := fileio.WriteTable(ctx, f.output, result, fileio.WriteOptions{IO: a.cfg.IO}); err != nil {
				return err
			}
			a.log.Info("rows filtered",
				zap.Int("rows", ds.Table.NumRows()),
				zap.Int("kept", out.NumRows()))

			return a.printSummary(cmd, summary{
				Command:    cmd.Name(),
				Input:      f.input,
				Output:     f.output,
				Rows:       ds.Table.NumRows(),
				OutputRows: out.NumRows(),
				Workers:    a.stream.Workers(),
				ElapsedMS:  float64(time.Since(start).Microseconds()) / 1000,
			})
		},
	}
	f.register(cmd, false)
	cmd.Flags().StringSliceVar(&keys, "keys", nil, "Key column names (default all columns)")
	cmd.Flags().StringVar(&policy, "policy", "any", "Drop policy: any or all")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Keep rows with at least this many valid keys (overrides --policy)")
	return cmd
}

// selectKeys returns the named columns of ds, or all of them when names is
// empty. The result must be released.
func selectKeys(ds *fileio.Dataset, names []string) (*column.Table, error) {
	indices := make([]int, 0, len(names))
	if len(names) == 0 {
		for i := range ds.Names {
			indices = append(indices, i)
		}
	}
	for _, name := range names {
		found := false
		for i, n := range ds.Names {
			if n == name {
				indices = append(indices, i)
				found = true
				break
			}
		}
		if !found {
			return nil, errors.New(errors.ErrorTypeValidation, "key column not found").WithDetail("column", name)
		}
	}
	return ds.Table.Select(indices...)
}

func (a *app) toIntegersCommand() *cobra.Command {
	var (
		f      ioFlags
		target string
	)
	cmd := &cobra.Command{
		Use:   "to-integers",
		Short: "Append a string column parsed as integers",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := column.ParseTypeID(target)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeValidation, "unknown target type")
			}
			return a.columnKernel(cmd, &f, func(ctx context.Context, col *column.Column) (*column.Column, error) {
				return convert.ToIntegers(ctx, a.stream, col, id)
			})
		},
	}
	f.register(cmd, true)
	cmd.Flags().StringVar(&target, "type", "int64", "Integer type: int8..int64 or uint8..uint64")
	return cmd
}

func (a *app) fromIntegersCommand() *cobra.Command {
	var f ioFlags
	cmd := &cobra.Command{
		Use:   "from-integers",
		Short: "Append an integer column formatted as strings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.columnKernel(cmd, &f, func(ctx context.Context, col *column.Column) (*column.Column, error) {
				return convert.FromIntegers(ctx, a.stream, col)
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func (a *app) isIntegerCommand() *cobra.Command {
	var f ioFlags
	cmd := &cobra.Command{
		Use:   "is-integer",
		Short: "Append whether each string is a whole integer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.columnKernel(cmd, &f, func(ctx context.Context, col *column.Column) (*column.Column, error) {
				return convert.IsInteger(ctx, a.stream, col)
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func (a *app) replaceCommand() *cobra.Command {
	var (
		f        ioFlags
		pattern  string
		template string
	)
	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Append a string column with regex matches replaced",
		Long: `Replace every match of --pattern with --template, where \N and ${N}
refer to capture group N (0 is the whole match).

Example:
  stratum replace -i people.arrow -o out.arrow -c email --pattern '(\w+)@(\w+)' --template '${2}/\1'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := replace.NewRegexMatcher(pattern)
			if err != nil {
				return err
			}
			return a.columnKernel(cmd, &f, func(ctx context.Context, col *column.Column) (*column.Column, error) {
				return replace.WithBackrefs(ctx, a.stream, col, m, template, replace.WithConfig(a.cfg.Regex))
			})
		},
	}
	f.register(cmd, true)
	cmd.Flags().StringVar(&pattern, "pattern", "", "Regular expression (required)")
	cmd.Flags().StringVar(&template, "template", "", "Replacement template")
	_ = cmd.MarkFlagRequired("pattern")
	return cmd
}
