package prefix

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/stratum/pkg/aggregation"
	"github.com/ajitpratap0/stratum/pkg/config"
	"github.com/ajitpratap0/stratum/pkg/stream"
)

func newStream(t *testing.T, grain int) *stream.Stream {
	t.Helper()
	cfg := config.Default().Engine
	cfg.GrainSize = grain
	cfg.Workers = 4
	s, err := stream.New(cfg)
	require.NoError(t, err)
	return s
}

func sequential(in []int64, op aggregation.Operator[int64], exclusive bool) []int64 {
	out := make([]int64, len(in))
	acc := op.Identity()
	for i, v := range in {
		if exclusive {
			out[i] = acc
			acc = op.Combine(acc, v)
		} else {
			acc = op.Combine(acc, v)
			out[i] = acc
		}
	}
	return out
}

func TestScanMatchesSequential(t *testing.T) {
	in := make([]int64, 1000)
	for i := range in {
		in[i] = int64((i*7919)%201) - 100
	}
	load := func(i int) int64 { return in[i] }

	for _, grain := range []int{64, 128, 4096} {
		s := newStream(t, grain)
		for _, op := range []aggregation.Op{aggregation.Sum, aggregation.Min, aggregation.Max} {
			m := aggregation.NewOperator[int64](op)
			for _, exclusive := range []bool{false, true} {
				out := make([]int64, len(in))
				require.NoError(t, Scan(context.Background(), s, len(in), load, out, m, exclusive))
				assert.Equal(t, sequential(in, m, exclusive), out, "grain=%d op=%s exclusive=%v", grain, op, exclusive)
			}
		}
	}
}

func TestReduce(t *testing.T) {
	s := newStream(t, 64)
	in := make([]int64, 300)
	for i := range in {
		in[i] = int64(i + 1)
	}
	got, err := Reduce(context.Background(), s, len(in), func(i int) int64 { return in[i] }, aggregation.NewOperator[int64](aggregation.Sum))
	require.NoError(t, err)
	assert.Equal(t, int64(300*301/2), got)

	got, err = Reduce(context.Background(), s, 0, func(int) int64 { return 1 }, aggregation.NewOperator[int64](aggregation.Product))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestScanEmpty(t *testing.T) {
	s := newStream(t, 64)
	require.NoError(t, Scan(context.Background(), s, 0, func(int) int64 { return 0 }, nil, aggregation.NewOperator[int64](aggregation.Sum), true))
}
