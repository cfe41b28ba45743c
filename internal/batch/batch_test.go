package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ids  []int64
		size int
		want [][]int64
	}{
		{name: "empty input", ids: nil, size: 3, want: nil},
		{name: "empty slice", ids: []int64{}, size: 1, want: nil},
		{name: "single chunk", ids: []int64{1, 2}, size: 5, want: [][]int64{{1, 2}}},
		{name: "exact fit", ids: []int64{1, 2, 3, 4}, size: 2, want: [][]int64{{1, 2}, {3, 4}}},
		{name: "short tail", ids: []int64{1, 2, 3, 4, 5}, size: 2, want: [][]int64{{1, 2}, {3, 4}, {5}}},
		{name: "size one", ids: []int64{9, 8, 7}, size: 1, want: [][]int64{{9}, {8}, {7}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Chunk(tt.ids, tt.size))
		})
	}
}

func TestChunk_Properties(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 37; n++ {
		ids := make([]int64, n)
		for i := range ids {
			ids[i] = int64(1000 + i)
		}

		for size := 1; size <= n+2; size++ {
			chunks := Chunk(ids, size)

			var joined []int64
			for i, c := range chunks {
				assert.NotEmpty(t, c)
				assert.LessOrEqual(t, len(c), size)
				if i < len(chunks)-1 {
					assert.Len(t, c, size, "only the last chunk may be short")
				}
				joined = append(joined, c...)
			}
			assert.Equal(t, ids, joined, "n=%d size=%d", n, size)
		}
	}
}

func TestChunk_InvalidSizePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { Chunk([]int64{1}, 0) })
	assert.Panics(t, func() { Chunk([]int64{1}, -3) })
}
