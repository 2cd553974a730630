package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/repository"
)

// maxVectorTopK caps nearest-neighbour queries.
const maxVectorTopK = 10

// DefaultTopK returns min(10, n).
func DefaultTopK(n int) int {
	if n < maxVectorTopK {
		return n
	}
	return maxVectorTopK
}

// VectorIndex answers nearest-neighbour queries over destination embeddings.
// Implementations decide whether Rebuild caches eagerly or reloads each time.
type VectorIndex interface {
	Rebuild(ctx context.Context) error
	Query(ctx context.Context, vector []float32, k int, exclude []uint) ([]Scored, error)
	Len() int
}

// ============================================
// Flat in-process index
// ============================================

type flatSnapshot struct {
	ids     []uint
	vectors [][]float32
	dim     int
}

// FlatIndex is an exact inner-product index over L2-normalized catalog
// embeddings. Queries read an immutable snapshot swapped in by Rebuild.
type FlatIndex struct {
	catalog Catalog
	snap    atomic.Pointer[flatSnapshot]
	skipped atomic.Int64
}

// NewFlatIndex creates an empty FlatIndex; call Rebuild to load it.
func NewFlatIndex(catalog Catalog) *FlatIndex {
	idx := &FlatIndex{catalog: catalog}
	idx.snap.Store(&flatSnapshot{})
	return idx
}

// Rebuild loads every destination embedding. The first embedding fixes the
// dimension; embeddings of another size or with a zero norm are skipped.
func (f *FlatIndex) Rebuild(ctx context.Context) error {
	rows, err := f.catalog.Find(ctx, repository.CatalogQuery{
		Match: func(d *domain.Destination) bool { return d.HasEmbedding() },
	})
	if err != nil {
		return fmt.Errorf("failed to load embeddings: %w", err)
	}

	snap := &flatSnapshot{
		ids:     make([]uint, 0, len(rows)),
		vectors: make([][]float32, 0, len(rows)),
	}
	var skipped int64
	for _, d := range rows {
		if snap.dim == 0 {
			snap.dim = len(d.Embedding)
		}
		if len(d.Embedding) != snap.dim {
			skipped++
			continue
		}
		unit, ok := normalizeVector(d.Embedding)
		if !ok {
			skipped++
			continue
		}
		snap.ids = append(snap.ids, d.ID)
		snap.vectors = append(snap.vectors, unit)
	}
	f.snap.Store(snap)
	f.skipped.Store(skipped)
	return nil
}

// Skipped returns how many embeddings the last Rebuild rejected.
func (f *FlatIndex) Skipped() int64 {
	return f.skipped.Load()
}

// Len returns the number of indexed vectors.
func (f *FlatIndex) Len() int {
	return len(f.snap.Load().ids)
}

// Query returns the top-k destinations by cosine similarity. A query vector
// of the wrong dimension is an invariant violation.
func (f *FlatIndex) Query(_ context.Context, vector []float32, k int, exclude []uint) ([]Scored, error) {
	snap := f.snap.Load()
	if len(snap.ids) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != snap.dim {
		return nil, domain.NewInvariantViolation(fmt.Sprintf("query has %d dimensions, index has %d", len(vector), snap.dim))
	}
	query, ok := normalizeVector(vector)
	if !ok {
		return nil, nil
	}

	excluded := idSet(exclude)
	out := make([]Scored, 0, len(snap.ids))
	for i, id := range snap.ids {
		if _, skip := excluded[id]; skip {
			continue
		}
		out = append(out, Scored{ID: id, Score: clampUnit(dot(query, snap.vectors[i]))})
	}
	sortScored(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// ============================================
// Qdrant-backed index
// ============================================

// VectorStore is the subset of the Qdrant repository used by QdrantIndex.
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	Search(ctx context.Context, vector []float32, topK int, filter *repository.VectorFilter) ([]repository.VectorHit, error)
	Count(ctx context.Context) (uint64, error)
}

// QdrantIndex delegates nearest-neighbour search to a Qdrant collection
// configured with cosine distance.
type QdrantIndex struct {
	store VectorStore
	size  atomic.Int64
}

// NewQdrantIndex creates a new QdrantIndex.
func NewQdrantIndex(store VectorStore) *QdrantIndex {
	return &QdrantIndex{store: store}
}

// Rebuild makes sure the collection exists and refreshes the point count.
func (q *QdrantIndex) Rebuild(ctx context.Context) error {
	if err := q.store.EnsureCollection(ctx); err != nil {
		return domain.NewProviderUnavailableError("qdrant", err)
	}
	count, err := q.store.Count(ctx)
	if err != nil {
		return domain.NewProviderUnavailableError("qdrant", err)
	}
	q.size.Store(int64(count))
	return nil
}

// Len returns the point count seen at the last Rebuild.
func (q *QdrantIndex) Len() int {
	return int(q.size.Load())
}

// Query implements VectorIndex.
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, k int, exclude []uint) ([]Scored, error) {
	if k <= 0 {
		return nil, nil
	}
	hits, err := q.store.Search(ctx, vector, k, &repository.VectorFilter{ExcludeIDs: exclude})
	if err != nil {
		return nil, domain.NewProviderUnavailableError("qdrant", err)
	}
	out := make([]Scored, 0, len(hits))
	for _, h := range hits {
		out = append(out, Scored{ID: h.DestinationID, Score: clampUnit(float64(h.Score))})
	}
	sortScored(out)
	return out, nil
}

func idSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
