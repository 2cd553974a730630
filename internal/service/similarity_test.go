package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/wanderlust/internal/domain"
)

func TestTFIDFRankerOrdersByOverlap(t *testing.T) {
	ranked, err := NewTFIDFRanker().Rank(context.Background(), "romantic beach sunset", []Candidate{
		{ID: 1, Text: "mountain hiking trail"},
		{ID: 2, Text: "quiet beach with a romantic sunset"},
		{ID: 3, Text: "busy beach clubs"},
	})
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, uint(2), ranked[0].ID)
	assert.Equal(t, uint(3), ranked[1].ID)
	assert.Equal(t, uint(1), ranked[2].ID)
	assert.Zero(t, ranked[2].Score)
	for _, s := range ranked {
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
	}
}

func TestTFIDFRankerEdgeCases(t *testing.T) {
	ctx := context.Background()
	r := NewTFIDFRanker()

	out, err := r.Rank(ctx, "anything", nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = r.Rank(ctx, "  ", []Candidate{{ID: 1, Text: "beach"}})
	require.NoError(t, err)
	assert.Empty(t, out, "blank query has no vector")

	out, err = r.Rank(ctx, "beach", []Candidate{{ID: 2, Text: "beach"}, {ID: 1, Text: "beach"}, {ID: 3, Text: ""}})
	require.NoError(t, err)
	require.Len(t, out, 2, "empty candidate text is skipped")
	assert.Equal(t, []uint{1, 2}, []uint{out[0].ID, out[1].ID}, "ties break by id")
	assert.InDelta(t, 1.0, out[0].Score, 1e-9)
}

type mapLookup map[uint][]float32

func (m mapLookup) Embeddings(_ context.Context, ids []uint) (map[uint][]float32, error) {
	out := make(map[uint][]float32)
	for _, id := range ids {
		if v, ok := m[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func TestEmbeddingRanker(t *testing.T) {
	provider := &fakeEmbedding{dims: 2, fn: func(string) []float32 { return []float32{1, 0} }}
	lookup := mapLookup{
		1: {0, 1},
		2: {3, 0},
		3: {1, 1},
		4: {1, 0, 0}, // wrong dimension
		5: {0, 0},    // zero norm
	}
	ranked, err := NewEmbeddingRanker(provider, lookup).Rank(context.Background(), "q", []Candidate{
		{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}, {ID: 6},
	})
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, uint(2), ranked[0].ID)
	assert.InDelta(t, 1.0, ranked[0].Score, 1e-6)
	assert.Equal(t, uint(3), ranked[1].ID)
	assert.InDelta(t, 0.7071, ranked[1].Score, 1e-3)
	assert.Equal(t, uint(1), ranked[2].ID)
	assert.Zero(t, ranked[2].Score)
}

func TestEmbeddingRankerProviderFailure(t *testing.T) {
	provider := &fakeEmbedding{err: errProviderDown}
	_, err := NewEmbeddingRanker(provider, mapLookup{}).Rank(context.Background(), "q", []Candidate{{ID: 1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
}

func TestFallbackRanker(t *testing.T) {
	candidates := []Candidate{{ID: 1, Text: "beach"}, {ID: 2, Text: "snow"}}

	down := NewEmbeddingRanker(&fakeEmbedding{err: errProviderDown}, mapLookup{})
	out, err := NewFallbackRanker(down, NewTFIDFRanker()).Rank(context.Background(), "beach", candidates)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, uint(1), out[0].ID)

	// no stored embeddings: primary scores nothing
	empty := NewEmbeddingRanker(&fakeEmbedding{dims: 1, fn: func(string) []float32 { return []float32{1} }}, mapLookup{})
	out, err = NewFallbackRanker(empty, NewTFIDFRanker()).Rank(context.Background(), "snow", candidates)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, uint(2), out[0].ID)
}
