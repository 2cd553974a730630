package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
)

// Candidate is an (id, text) pair to rank against a query.
type Candidate struct {
	ID   uint
	Text string
}

// Scored is a ranked id with a similarity in [0, 1].
type Scored struct {
	ID    uint
	Score float64
}

// Ranker ranks candidates by cosine similarity to a query.
// Results are sorted by score descending, ties by id ascending.
type Ranker interface {
	Rank(ctx context.Context, query string, candidates []Candidate) ([]Scored, error)
}

// sortScored orders by score desc, then id asc.
func sortScored(items []Scored) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
}

// ============================================
// TF-IDF
// ============================================

// TFIDFRanker vectorizes the query and candidates with a vocabulary built
// from exactly those texts, so rankings depend only on the inputs.
type TFIDFRanker struct{}

// NewTFIDFRanker creates a new TFIDFRanker.
func NewTFIDFRanker() *TFIDFRanker {
	return &TFIDFRanker{}
}

// Rank implements Ranker.
func (r *TFIDFRanker) Rank(_ context.Context, query string, candidates []Candidate) ([]Scored, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([]map[string]float64, len(candidates)+1)
	docs[0] = termCounts(query)
	for i, c := range candidates {
		docs[i+1] = termCounts(c.Text)
	}

	df := make(map[string]int)
	for _, doc := range docs {
		for term := range doc {
			df[term]++
		}
	}
	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log((1+n)/(1+float64(count))) + 1
	}

	vectors := make([]map[string]float64, len(docs))
	for i, doc := range docs {
		vectors[i] = weightAndNormalize(doc, idf)
	}

	queryVec := vectors[0]
	if queryVec == nil {
		return nil, nil
	}

	out := make([]Scored, 0, len(candidates))
	for i, c := range candidates {
		vec := vectors[i+1]
		if vec == nil {
			continue
		}
		out = append(out, Scored{ID: c.ID, Score: clampUnit(sparseDot(queryVec, vec))})
	}
	sortScored(out)
	return out, nil
}

// tokenize lowercases text and splits it on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func termCounts(text string) map[string]float64 {
	counts := make(map[string]float64)
	for _, tok := range tokenize(text) {
		counts[tok]++
	}
	return counts
}

// weightAndNormalize applies idf and L2-normalizes; zero vectors return nil.
func weightAndNormalize(counts map[string]float64, idf map[string]float64) map[string]float64 {
	var norm float64
	vec := make(map[string]float64, len(counts))
	for term, tf := range counts {
		w := tf * idf[term]
		vec[term] = w
		norm += w * w
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for term := range vec {
		vec[term] /= norm
	}
	return vec
}

func sparseDot(a, b map[string]float64) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	var sum float64
	for term, w := range a {
		sum += w * b[term]
	}
	return sum
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ============================================
// Dense embeddings
// ============================================

// EmbeddingRanker embeds the query and compares it with precomputed
// candidate embeddings. Candidates without a usable embedding are skipped.
type EmbeddingRanker struct {
	provider EmbeddingProvider
	lookup   EmbeddingLookup
}

// NewEmbeddingRanker creates a new EmbeddingRanker.
func NewEmbeddingRanker(provider EmbeddingProvider, lookup EmbeddingLookup) *EmbeddingRanker {
	return &EmbeddingRanker{provider: provider, lookup: lookup}
}

// Rank implements Ranker. Provider failures surface as ErrProviderUnavailable.
func (r *EmbeddingRanker) Rank(ctx context.Context, query string, candidates []Candidate) ([]Scored, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	raw, err := r.provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.NewProviderUnavailableError("embedding", err)
	}
	queryVec, ok := normalizeVector(raw)
	if !ok {
		return nil, nil
	}

	ids := make([]uint, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	embeddings, err := r.lookup.Embeddings(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		vec, ok := embeddings[c.ID]
		if !ok || len(vec) != len(queryVec) {
			continue
		}
		unit, ok := normalizeVector(vec)
		if !ok {
			continue
		}
		out = append(out, Scored{ID: c.ID, Score: clampUnit(dot(queryVec, unit))})
	}
	sortScored(out)
	return out, nil
}

// normalizeVector returns the unit-length copy of v, or false for zero,
// NaN or infinite norms.
func normalizeVector(v []float32) ([]float32, bool) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, true
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// FallbackRanker uses primary and falls back to secondary when primary's
// provider is unavailable or it cannot score any candidate.
type FallbackRanker struct {
	primary   Ranker
	secondary Ranker
}

// NewFallbackRanker creates a new FallbackRanker. A nil primary always uses secondary.
func NewFallbackRanker(primary, secondary Ranker) *FallbackRanker {
	return &FallbackRanker{primary: primary, secondary: secondary}
}

// Rank implements Ranker.
func (r *FallbackRanker) Rank(ctx context.Context, query string, candidates []Candidate) ([]Scored, error) {
	if r.primary != nil {
		out, err := r.primary.Rank(ctx, query, candidates)
		if err == nil && len(out) > 0 {
			return out, nil
		}
		if err != nil && !errors.Is(err, domain.ErrProviderUnavailable) {
			return nil, err
		}
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Embedding ranker unavailable, using TF-IDF")
		}
	}
	return r.secondary.Rank(ctx, query, candidates)
}
