package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/source/csvcatalog"
)

const importCSV = "name,country,climate,season,activity_type,tags,description\n" +
	"Rome,Italy,Warm and temperate,Summer,Sightseeing,History,Eternal city\n" +
	"Oslo,Norway,Cold and snowy,Winter,Skiing,Nature,Fjords\n" +
	"Lisbon,Portugal,Warm and temperate,Spring,Gastronomy,Sea,Hills\n" +
	",Nowhere,,,,,\n"

func csvSource(body string) *csvcatalog.Adapter {
	return csvcatalog.NewAdapter("test.csv", func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	})
}

// recordingVectors remembers every vector upsert.
type recordingVectors struct {
	mu   sync.Mutex
	seen map[uint][]float32
}

func (r *recordingVectors) Upsert(_ context.Context, d *domain.Destination, vector []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = make(map[uint][]float32)
	}
	r.seen[d.ID] = vector
	return nil
}

func TestImportFromSource(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	vectors := &recordingVectors{}
	embedding := &fakeEmbedding{dims: 2, fn: func(string) []float32 { return []float32{0.6, 0.8} }}
	importer := NewCatalogImporter(stores.destinations, vectors, embedding, testLogger(), &ImportConfig{Workers: 2, BatchSize: 2})

	stats, err := importer.ImportFromSource(ctx, csvSource(importCSV), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalItems)
	assert.Equal(t, int64(3), stats.ProcessedItems)
	assert.Equal(t, int64(3), stats.EmbeddedItems)
	assert.Zero(t, stats.FailedItems)
	assert.Equal(t, int64(1), stats.RejectedRows)
	assert.Len(t, vectors.seen, 3)

	rome, err := stores.destinations.GetByName(ctx, "Rome", "Italy")
	require.NoError(t, err)
	assert.Equal(t, domain.Vector{0.6, 0.8}, rome.Embedding)
	assert.Equal(t, []float32{0.6, 0.8}, vectors.seen[rome.ID])

	// re-importing updates in place
	_, err = importer.ImportFromSource(ctx, csvSource(importCSV), 0, nil)
	require.NoError(t, err)
	n, err := stores.destinations.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestImportLimit(t *testing.T) {
	stores := newTestStores(t)
	importer := NewCatalogImporter(stores.destinations, nil, nil, testLogger(), &ImportConfig{Workers: 1, BatchSize: 10})

	stats, err := importer.ImportFromSource(context.Background(), csvSource(importCSV), 2, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalItems)
	assert.Zero(t, stats.EmbeddedItems)
}

func TestImportEmbeddingFailureKeepsDestination(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	importer := NewCatalogImporter(stores.destinations, nil, &fakeEmbedding{err: errProviderDown}, testLogger(), nil)

	stats, err := importer.ImportFromSource(ctx, csvSource(importCSV), 0, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.FailedItems)
	assert.Zero(t, stats.EmbeddedItems)

	missing, err := stores.destinations.ListWithoutEmbedding(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, missing, 3)
}

func TestEmbedMissing(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	embedding := &fakeEmbedding{dims: 2, fn: func(string) []float32 { return []float32{1, 0} }}
	importer := NewCatalogImporter(stores.destinations, nil, embedding, testLogger(), nil)

	_, err := importer.ImportFromSource(ctx, csvSource(importCSV), 0, &ImportOptions{SkipEmbeddings: true})
	require.NoError(t, err)
	assert.Zero(t, embedding.calls.Load())

	stats, err := importer.EmbedMissing(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.EmbeddedItems)

	index := NewFlatIndex(stores.destinations)
	require.NoError(t, index.Rebuild(ctx))
	assert.Equal(t, 3, index.Len())

	_, err = NewCatalogImporter(stores.destinations, nil, nil, testLogger(), nil).EmbedMissing(ctx, 0)
	assert.Error(t, err)
}
