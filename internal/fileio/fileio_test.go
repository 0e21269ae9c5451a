package fileio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/compression"
	"github.com/ajitpratap0/stratum/pkg/config"
	"github.com/ajitpratap0/stratum/pkg/errors"
)

func sampleDataset(t *testing.T, mem memory.Allocator) *Dataset {
	t.Helper()
	tbl, err := column.NewTable(
		column.FromSlice(mem, []int64{1, -2, 3, 0}, []bool{true, true, true, false}),
		column.FromStrings(mem, []string{"a", "", "ccc", "dd"}, []bool{true, false, true, true}),
		column.FromDecimals(mem, 2, []int64{1050, -1, 0, 99}, nil),
		column.FromBools(mem, []bool{true, false, false, true}, nil),
		column.FromSlice(mem, []uint16{7, 8, 9, 10}, nil),
	)
	require.NoError(t, err)
	return &Dataset{Names: []string{"id", "name", "price", "flag", "small"}, Table: tbl}
}

func assertSameDataset(t *testing.T, want, got *Dataset) {
	t.Helper()
	require.Equal(t, want.Names, got.Names)
	require.Equal(t, want.Table.NumRows(), got.Table.NumRows())

	assert.Equal(t, column.ValidSlice(want.Table.Column(0)), column.ValidSlice(got.Table.Column(0)))
	assert.Equal(t, []int64{1, -2, 3}, column.ToSlice[int64](got.Table.Column(0))[:3])
	assert.Equal(t, column.Strings(want.Table.Column(1)), column.Strings(got.Table.Column(1)))
	assert.Equal(t, column.ValidSlice(want.Table.Column(1)), column.ValidSlice(got.Table.Column(1)))
	assert.Equal(t, want.Table.Column(2).Type(), got.Table.Column(2).Type())
	assert.Equal(t, column.ToSlice[int64](want.Table.Column(2)), column.ToSlice[int64](got.Table.Column(2)))
	assert.Equal(t, column.Bools(want.Table.Column(3)), column.Bools(got.Table.Column(3)))
	assert.Equal(t, column.ToSlice[uint16](want.Table.Column(4)), column.ToSlice[uint16](got.Table.Column(4)))
}

func TestRoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	ctx := context.Background()
	dir := t.TempDir()

	plain := config.Default().IO
	zstdIPC := plain
	zstdIPC.IPCCompression = "zstd"
	zstdParquet := plain
	zstdParquet.ParquetCompression = "zstd"
	zstdParquet.RowGroupSize = 2

	tests := []struct {
		file string
		io   config.IOConfig
	}{
		{"plain.arrow", plain},
		{"bodies.ipc", zstdIPC},
		{"whole.arrow.zst", plain},
		{"whole.arrow.lz4", plain},
		{"data.parquet", plain},
		{"groups.parquet", zstdParquet},
		{"whole.parquet.gz", plain},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			want := sampleDataset(t, mem)
			defer want.Release()

			path := filepath.Join(dir, tt.file)
			require.NoError(t, WriteTable(ctx, path, want, WriteOptions{IO: tt.io}))

			got, err := ReadTable(ctx, path, mem)
			require.NoError(t, err)
			defer got.Release()
			assertSameDataset(t, want, got)

			col, ok := got.Column("name")
			require.True(t, ok)
			assert.Equal(t, column.String, col.Type().ID)
		})
	}
}

func TestDetect(t *testing.T) {
	format, alg, err := Detect("/data/x.parquet.zst")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, format)
	assert.Equal(t, compression.Zstd, alg)

	format, alg, err = Detect("x.FEATHER")
	require.NoError(t, err)
	assert.Equal(t, FormatIPC, format)
	assert.Equal(t, compression.None, alg)

	_, _, err = Detect("x.csv")
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestReadErrors(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewGoAllocator()

	_, err := ReadTable(ctx, filepath.Join(t.TempDir(), "missing.arrow"), mem)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	garbage := filepath.Join(t.TempDir(), "garbage.parquet")
	require.NoError(t, os.WriteFile(garbage, []byte("not parquet"), 0o600))
	_, err = ReadTable(ctx, garbage, mem)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestWriteRejectsMismatchedNames(t *testing.T) {
	mem := memory.NewGoAllocator()
	ds := sampleDataset(t, mem)
	defer ds.Release()
	ds.Names = ds.Names[:1]

	err := WriteTable(context.Background(), filepath.Join(t.TempDir(), "x.arrow"), ds, WriteOptions{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeSizeMismatch))
}
