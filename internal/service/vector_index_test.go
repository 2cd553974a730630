package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/wanderlust/internal/domain"
)

func TestDefaultTopK(t *testing.T) {
	tests := []struct{ n, want int }{{0, 0}, {3, 3}, {10, 10}, {250, 10}}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultTopK(tt.n), "n=%d", tt.n)
	}
}

func TestFlatIndexSkipsUnusableEmbeddings(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	vectors := [][]float32{{1, 0}, {0, 0}, {1, 0, 0}}
	var ids []uint
	for i, v := range vectors {
		d := stores.addDestination(t, domain.Destination{Name: string(rune('A' + i)), Country: "X"})
		require.NoError(t, stores.destinations.UpdateEmbedding(ctx, d.ID, v))
		ids = append(ids, d.ID)
	}

	index := NewFlatIndex(stores.destinations)
	require.NoError(t, index.Rebuild(ctx))
	assert.Equal(t, 1, index.Len())
	assert.Equal(t, int64(2), index.Skipped(), "zero norm and wrong dimension")

	hits, err := index.Query(ctx, []float32{1, 0}, DefaultTopK(index.Len()), nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ids[0], hits[0].ID)
}
