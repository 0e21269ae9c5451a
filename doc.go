// Package stratum is a parallel columnar transform engine. It runs
// null-aware, data-parallel kernels over columns held in Arrow memory:
// prefix scans and reductions, null-key row filtering, string to integer
// conversion in both directions and regex replacement with capture group
// backreferences.
//
// # Architecture
//
// Every kernel executes on a stream (pkg/stream). A stream owns the worker
// bound, the partition grain and the memory accounting of the kernels it
// runs. Inputs are split into word-aligned ranges so validity bitmaps can be
// written without synchronization, and each range runs as one errgroup task.
//
// Variable-width outputs are built in two passes (pkg/varlen): a size pass,
// an exclusive scan of the sizes into offsets, and a fill pass writing each
// element at its offset. Filtering (pkg/filter) uses the same scan to turn a
// keep predicate into a gather map.
//
// # Quick Start
//
//	s, err := stream.New(config.Default().Engine)
//	if err != nil {
//	    return err
//	}
//	mem := s.Allocator()
//	in := column.FromSlice(mem, []int64{1, 2, 3}, nil)
//	defer in.Release()
//
//	out, err := scan.Scan(ctx, s, in, aggregation.Sum, scan.Inclusive, scan.NullInclude)
//	if err != nil {
//	    return err
//	}
//	defer out.Release()
//
// # Command Line
//
// cmd/stratum exposes the kernels over Arrow IPC and Parquet files:
//
//	stratum scan -i sales.parquet -o out.parquet -c amount --op sum
//	stratum drop-nulls -i events.arrow -o clean.arrow --keys user_id --policy any
//	stratum replace -i people.arrow -o out.arrow -c email --pattern '(\w+)@(\w+)' --template '${2}/\1'
//
// # Observability
//
// Kernel invocations are logged with zap, counted in prometheus metrics
// and traced with OpenTelemetry spans when tracing is enabled.
package stratum
