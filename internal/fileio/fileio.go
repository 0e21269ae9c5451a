// Package fileio reads and writes stratum tables as Arrow IPC or Parquet
// files.
//
// The format follows the file extension: .arrow, .ipc and .feather are
// Arrow IPC files, .parquet and .pq are Parquet files. A trailing .zst,
// .lz4, .s2, .sz or .gz suffix compresses the whole file with the
// matching algorithm from pkg/compression.
package fileio

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/compression"
	"github.com/ajitpratap0/stratum/pkg/config"
	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/logger"
	"github.com/ajitpratap0/stratum/pkg/mmap"
)

// Format is a columnar file format
type Format string

const (
	FormatIPC     Format = "ipc"
	FormatParquet Format = "parquet"
)

// Dataset is a table with column names
type Dataset struct {
	Names []string
	Table *column.Table
}

// Column returns the column called name.
func (d *Dataset) Column(name string) (*column.Column, bool) {
	for i, n := range d.Names {
		if n == name {
			return d.Table.Column(i), true
		}
	}
	return nil, false
}

// Release releases the table
func (d *Dataset) Release() {
	if d != nil {
		d.Table.Release()
	}
}

// Detect returns the format and whole-file compression named by path.
func Detect(path string) (Format, compression.Algorithm, error) {
	alg, base := compression.DetectFromPath(path)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".arrow", ".ipc", ".feather":
		return FormatIPC, alg, nil
	case ".parquet", ".pq":
		return FormatParquet, alg, nil
	}
	return "", alg, errors.New(errors.ErrorTypeFile, "unknown columnar file extension").
		WithDetail("path", path)
}

// ReadTable reads every record of the file at path into one table whose
// buffers are allocated from mem.
func ReadTable(ctx context.Context, path string, mem memory.Allocator) (*Dataset, error) {
	format, alg, err := Detect(path)
	if err != nil {
		return nil, err
	}

	mapped, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read file").WithDetail("path", path)
	}
	// Decoded columns are copied into mem, so the mapping ends with this call.
	defer mapped.Close()

	data := mapped.Bytes()
	if alg != compression.None {
		c, err := compression.NewCompressor(&compression.Config{Algorithm: alg, Level: compression.Default})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "unsupported file compression").WithDetail("path", path)
		}
		if data, err = c.Decompress(data); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to decompress file").WithDetail("path", path)
		}
	}

	var (
		schema *arrow.Schema
		chunks [][]arrow.Array
	)
	switch format {
	case FormatIPC:
		schema, chunks, err = readIPC(data)
	default:
		schema, chunks, err = readParquet(ctx, data)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to decode "+string(format)+" file").
			WithDetail("path", path)
	}
	defer releaseChunks(chunks)

	ds, err := toDataset(schema, chunks, mem)
	if err != nil {
		return nil, err
	}
	logger.Get().Debug("table read",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("rows", ds.Table.NumRows()),
		zap.Int("columns", ds.Table.NumColumns()))
	return ds, nil
}

// readIPC returns the arrays of every record batch, column by column.
func readIPC(data []byte) (*arrow.Schema, [][]arrow.Array, error) {
	fr, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, nil, err
	}
	defer fr.Close()

	schema := fr.Schema()
	chunks := make([][]arrow.Array, schema.NumFields())
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			releaseChunks(chunks)
			return nil, nil, err
		}
		for j := range chunks {
			col := rec.Column(j)
			col.Retain()
			chunks[j] = append(chunks[j], col)
		}
	}
	return schema, chunks, nil
}

func readParquet(ctx context.Context, data []byte) (*arrow.Schema, [][]arrow.Array, error) {
	fr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	defer fr.Close()

	reader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return nil, nil, err
	}
	tbl, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tbl.Release()

	chunks := make([][]arrow.Array, tbl.NumCols())
	for j := range chunks {
		for _, a := range tbl.Column(j).Data().Chunks() {
			a.Retain()
			chunks[j] = append(chunks[j], a)
		}
	}
	return tbl.Schema(), chunks, nil
}

func releaseChunks(chunks [][]arrow.Array) {
	for _, cs := range chunks {
		for _, a := range cs {
			a.Release()
		}
	}
}

// toDataset joins the chunks of every column and converts them to columns.
func toDataset(schema *arrow.Schema, chunks [][]arrow.Array, mem memory.Allocator) (*Dataset, error) {
	names := make([]string, schema.NumFields())
	cols := make([]*column.Column, 0, len(names))
	fail := func(err error) (*Dataset, error) {
		for _, c := range cols {
			c.Release()
		}
		return nil, err
	}

	for j, f := range schema.Fields() {
		names[j] = f.Name
		arr, err := joinChunks(f.Type, chunks[j])
		if err != nil {
			return fail(errors.Wrap(err, errors.ErrorTypeFile, "failed to concatenate column").
				WithDetail("column", f.Name))
		}
		col, err := column.FromArrow(arr, mem)
		arr.Release()
		if err != nil {
			if se, ok := errors.As(err); ok {
				se.WithDetail("column", f.Name)
			}
			return fail(err)
		}
		cols = append(cols, col)
	}

	tbl, err := column.NewTable(cols...)
	if err != nil {
		return fail(errors.Wrap(err, errors.ErrorTypeFile, "columns differ in length"))
	}
	return &Dataset{Names: names, Table: tbl}, nil
}

func joinChunks(dtype arrow.DataType, chunks []arrow.Array) (arrow.Array, error) {
	switch len(chunks) {
	case 0:
		return array.MakeArrayOfNull(memory.NewGoAllocator(), dtype, 0), nil
	case 1:
		chunks[0].Retain()
		return chunks[0], nil
	}
	return array.Concatenate(chunks, memory.NewGoAllocator())
}

// WriteOptions controls file encoding
type WriteOptions struct {
	IO config.IOConfig
}

// WriteTable writes ds to path in the format named by its extension.
func WriteTable(ctx context.Context, path string, ds *Dataset, opts WriteOptions) error {
	format, alg, err := Detect(path)
	if err != nil {
		return err
	}
	if len(ds.Names) != ds.Table.NumColumns() {
		return errors.New(errors.ErrorTypeSizeMismatch, "column names differ from table columns").
			WithDetail("names", len(ds.Names)).
			WithDetail("columns", ds.Table.NumColumns())
	}

	mem := memory.NewGoAllocator()
	rec, err := toRecord(ds, mem)
	if err != nil {
		return err
	}
	defer rec.Release()

	var buf bytes.Buffer
	switch format {
	case FormatIPC:
		err = writeIPC(&buf, rec, opts.IO, mem)
	default:
		err = writeParquet(&buf, rec, opts.IO, mem)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to encode "+string(format)+" file").
			WithDetail("path", path)
	}

	if err := writeFile(path, buf.Bytes(), alg); err != nil {
		return err
	}
	logger.Get().Debug("table written",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.String("compression", string(alg)),
		zap.Int("rows", ds.Table.NumRows()))
	return nil
}

func toRecord(ds *Dataset, mem memory.Allocator) (arrow.Record, error) {
	fields := make([]arrow.Field, len(ds.Names))
	arrs := make([]arrow.Array, 0, len(ds.Names))
	defer func() {
		for _, a := range arrs {
			a.Release()
		}
	}()

	for i, c := range ds.Table.Columns() {
		arr, err := column.ToArrow(c, mem)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: ds.Names[i], Type: arr.DataType(), Nullable: c.Nullable()}
		arrs = append(arrs, arr)
	}
	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, arrs, int64(ds.Table.NumRows())), nil
}

func writeIPC(w io.Writer, rec arrow.Record, cfg config.IOConfig, mem memory.Allocator) error {
	opts := []ipc.Option{ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem)}
	switch cfg.IPCCompression {
	case "lz4":
		opts = append(opts, ipc.WithLZ4())
	case "zstd":
		opts = append(opts, ipc.WithZstd())
	}
	fw, err := ipc.NewFileWriter(w, opts...)
	if err != nil {
		return err
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func writeParquet(w io.Writer, rec arrow.Record, cfg config.IOConfig, mem memory.Allocator) error {
	writerOpts := []parquet.WriterProperty{
		parquet.WithCompression(parquetCodec(cfg.ParquetCompression)),
		parquet.WithDictionaryDefault(cfg.ParquetDictionary),
		parquet.WithStats(cfg.ParquetStatistics),
	}
	if cfg.RowGroupSize > 0 {
		writerOpts = append(writerOpts, parquet.WithMaxRowGroupLength(cfg.RowGroupSize))
	}

	fw, err := pqarrow.NewFileWriter(rec.Schema(), w,
		parquet.NewWriterProperties(writerOpts...),
		pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem), pqarrow.WithStoreSchema()))
	if err != nil {
		return err
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func parquetCodec(name string) compress.Compression {
	switch name {
	case "none":
		return compress.Codecs.Uncompressed
	case "gzip":
		return compress.Codecs.Gzip
	case "zstd":
		return compress.Codecs.Zstd
	case "lz4":
		return compress.Codecs.Lz4Raw
	default:
		return compress.Codecs.Snappy
	}
}

func writeFile(path string, data []byte, alg compression.Algorithm) error {
	f, err := os.Create(path) //nolint:gosec // G304: path comes from the caller
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create file").WithDetail("path", path)
	}

	var w io.WriteCloser = nopCloser{f}
	if alg != compression.None {
		c, err := compression.NewCompressor(&compression.Config{Algorithm: alg, Level: compression.Default})
		if err == nil {
			w, err = c.NewWriter(f)
		}
		if err != nil {
			_ = f.Close()
			return errors.Wrap(err, errors.ErrorTypeFile, "unsupported file compression").WithDetail("path", path)
		}
	}

	if _, err := w.Write(data); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write file").WithDetail("path", path)
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush file").WithDetail("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close file").WithDetail("path", path)
	}
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
