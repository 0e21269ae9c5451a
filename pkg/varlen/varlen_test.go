package varlen

import (
	"context"
	"math"
	"strings"
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

func TestBuildRepeatsCharacters(t *testing.T) {
	s, checked := newStream(t)
	defer checked.AssertSize(t, 0)

	const n = 500
	out, err := Build(context.Background(), s, n, nil,
		func(i int) int { return i % 5 },
		func(i int, dst []byte) int {
			for j := range dst {
				dst[j] = byte('a' + i%26)
			}
			return len(dst)
		})
	require.NoError(t, err)
	defer out.Release()

	require.Equal(t, n, out.Len())
	assert.Equal(t, 0, out.NullCount())
	got := column.Strings(out)
	for i := 0; i < n; i++ {
		require.Equal(t, strings.Repeat(string(rune('a'+i%26)), i%5), got[i], "row %d", i)
	}
	offs := out.Offsets()
	assert.Equal(t, int32(0), offs[0])
	assert.Equal(t, int32(len(out.Chars())), offs[n])
}

func TestBuildSkipsNulls(t *testing.T) {
	s, checked := newStream(t)
	defer checked.AssertSize(t, 0)

	validity, err := s.NewBitmap(4, true)
	require.NoError(t, err)
	validity.Set(1, false)

	out, err := Build(context.Background(), s, 4, validity,
		func(int) int { return 3 },
		func(i int, dst []byte) int { return copy(dst, "xyz") })
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []string{"xyz", "", "xyz", "xyz"}, column.Strings(out))
	assert.Equal(t, []int32{0, 3, 3, 6, 9}, out.Offsets())
	assert.True(t, out.IsNull(1))
}

func TestBuildRejectsOversizedOutput(t *testing.T) {
	s, checked := newStream(t)
	defer checked.AssertSize(t, 0)

	validity, err := s.NewBitmap(3, true)
	require.NoError(t, err)

	_, err = Build(context.Background(), s, 3, validity,
		func(int) int { return math.MaxInt32 },
		func(int, []byte) int { return 0 })
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSizeMismatch))
}

func TestBuildDetectsShortWrites(t *testing.T) {
	s, checked := newStream(t)
	defer checked.AssertSize(t, 0)

	_, err := Build(context.Background(), s, 10, nil,
		func(int) int { return 2 },
		func(i int, dst []byte) int {
			if i == 7 {
				return 1
			}
			return len(dst)
		})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

func TestBuildEmpty(t *testing.T) {
	s, checked := newStream(t)
	defer checked.AssertSize(t, 0)

	out, err := Build(context.Background(), s, 0, nil,
		func(int) int { return 1 },
		func(int, []byte) int { return 1 })
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, []int32{0}, out.Offsets())
}
