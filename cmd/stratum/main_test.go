package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/stratum/internal/fileio"
	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/config"
	"github.com/ajitpratap0/stratum/pkg/scan"
)

func writeInput(t *testing.T, path string) {
	t.Helper()
	mem := memory.NewGoAllocator()
	tbl, err := column.NewTable(
		column.FromSlice(mem, []int64{1, 2, 3, 4}, nil),
		column.FromStrings(mem, []string{"12", "x7", "-3", ""}, []bool{true, true, true, false}),
		column.FromStrings(mem, []string{"ann@home", "bob@work", "none", "cy@lab"}, nil),
	)
	require.NoError(t, err)
	ds := &fileio.Dataset{Names: []string{"n", "raw", "email"}, Table: tbl}
	defer ds.Release()
	require.NoError(t, fileio.WriteTable(context.Background(), path, ds, fileio.WriteOptions{IO: config.Default().IO}))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{v: viper.New()}
	root := a.rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--workers", "2", "--grain-size", "64"}, args...))
	err := root.Execute()
	require.NoError(t, a.teardown(context.Background()))
	return out.String(), err
}

func readOutput(t *testing.T, path string) *fileio.Dataset {
	t.Helper()
	ds, err := fileio.ReadTable(context.Background(), path, memory.NewGoAllocator())
	require.NoError(t, err)
	t.Cleanup(ds.Release)
	return ds
}

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.arrow"), filepath.Join(dir, "out.parquet")
	writeInput(t, in)

	_, err := run(t, "scan", "-i", in, "-o", out, "-c", "n", "--op", "sum")
	require.NoError(t, err)

	ds := readOutput(t, out)
	require.Equal(t, []string{"n", "raw", "email", "n_scan"}, ds.Names)
	col, ok := ds.Column("n_scan")
	require.True(t, ok)
	assert.Equal(t, []int64{1, 3, 6, 10}, column.ToSlice[int64](col))
}

func TestScanCommandRejectsUnknownOp(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.arrow")
	writeInput(t, in)

	_, err := run(t, "scan", "-i", in, "-o", filepath.Join(dir, "out.arrow"), "-c", "n", "--op", "mean")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown aggregation operator")
}

func TestReduceCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.arrow")
	writeInput(t, in)

	out, err := run(t, "reduce", "-i", in, "-c", "n", "--op", "max")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	out, err = run(t, "--summary", "reduce", "-i", in, "-c", "n", "--op", "sum")
	require.NoError(t, err)
	var s map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "reduce", s["command"])
	assert.Equal(t, float64(10), s["value"])
	assert.Equal(t, float64(4), s["rows"])
}

func TestConvertCommands(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.arrow")
	parsed := filepath.Join(dir, "parsed.arrow")
	formatted := filepath.Join(dir, "formatted.arrow")
	checked := filepath.Join(dir, "checked.arrow")
	writeInput(t, in)

	_, err := run(t, "to-integers", "-i", in, "-o", parsed, "-c", "raw", "--type", "int32", "--as", "parsed")
	require.NoError(t, err)
	ds := readOutput(t, parsed)
	col, ok := ds.Column("parsed")
	require.True(t, ok)
	assert.Equal(t, []int32{12, 0, -3}, column.ToSlice[int32](col)[:3])
	assert.Equal(t, []bool{true, true, true, false}, column.ValidSlice(col))

	_, err = run(t, "from-integers", "-i", parsed, "-o", formatted, "-c", "parsed")
	require.NoError(t, err)
	ds = readOutput(t, formatted)
	col, ok = ds.Column("parsed_from_integers")
	require.True(t, ok)
	assert.Equal(t, []string{"12", "0", "-3"}, column.Strings(col)[:3])

	_, err = run(t, "is-integer", "-i", in, "-o", checked, "-c", "raw")
	require.NoError(t, err)
	ds = readOutput(t, checked)
	col, ok = ds.Column("raw_is_integer")
	require.True(t, ok)
	assert.Equal(t, []bool{true, false, true}, column.Bools(col)[:3])
}

func TestDropNullsCommand(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.arrow"), filepath.Join(dir, "out.arrow")
	writeInput(t, in)

	stdout, err := run(t, "--summary", "drop-nulls", "-i", in, "-o", out, "--keys", "raw")
	require.NoError(t, err)

	ds := readOutput(t, out)
	assert.Equal(t, 3, ds.Table.NumRows())
	assert.Equal(t, []int64{1, 2, 3}, column.ToSlice[int64](ds.Table.Column(0)))

	var s map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &s))
	assert.Equal(t, float64(4), s["rows"])
	assert.Equal(t, float64(3), s["output_rows"])

	_, err = run(t, "drop-nulls", "-i", in, "-o", out, "--keys", "missing")
	require.Error(t, err)
	_, err = run(t, "drop-nulls", "-i", in, "-o", out, "--policy", "some")
	require.Error(t, err)
}

func TestReplaceCommand(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.arrow"), filepath.Join(dir, "out.arrow")
	writeInput(t, in)

	_, err := run(t, "replace", "-i", in, "-o", out, "-c", "email",
		"--pattern", `(\w+)@(\w+)`, "--template", `${2}/\1`)
	require.NoError(t, err)

	ds := readOutput(t, out)
	col, ok := ds.Column("email_replace")
	require.True(t, ok)
	assert.Equal(t, []string{"home/ann", "work/bob", "none", "lab/cy"}, column.Strings(col))
}

func TestMissingColumn(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.arrow")
	writeInput(t, in)

	_, err := run(t, "scan", "-i", in, "-o", filepath.Join(dir, "out.arrow"), "-c", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column not found")
}

func TestFormatScalar(t *testing.T) {
	tests := []struct {
		want   string
		scalar scan.Scalar
	}{
		{"null", scan.Scalar{Type: column.Type(column.Int64)}},
		{"42", scan.Scalar{Type: column.Type(column.Int64), Valid: true, Value: int64(42)}},
		{"10.50", scan.Scalar{Type: column.Decimal(column.Decimal64, 2), Valid: true, Value: int64(1050)}},
		{"-0.05", scan.Scalar{Type: column.Decimal(column.Decimal32, 2), Valid: true, Value: int32(-5)}},
		{"500", scan.Scalar{Type: column.Decimal(column.Decimal32, -2), Valid: true, Value: int32(5)}},
		{"-7000", scan.Scalar{Type: column.Decimal(column.Decimal64, -3), Valid: true, Value: int64(-7)}},
		{"0", scan.Scalar{Type: column.Decimal(column.Decimal64, -3), Valid: true, Value: int64(0)}},
		{"12", scan.Scalar{Type: column.Decimal(column.Decimal64, 0), Valid: true, Value: int64(12)}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatScalar(tt.scalar))
	}
}

func TestProfileFlags(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.arrow")
	cpu, heap := filepath.Join(dir, "cpu.prof"), filepath.Join(dir, "mem.prof")
	writeInput(t, in)

	_, err := run(t, "--cpuprofile", cpu, "--memprofile", heap,
		"scan", "-i", in, "-o", filepath.Join(dir, "out.arrow"), "-c", "n")
	require.NoError(t, err)

	for _, path := range []string{cpu, heap} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), path)
	}
}
