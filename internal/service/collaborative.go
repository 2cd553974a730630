package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/repository"
)

// Collaborative filtering constants.
const (
	NeighborThreshold = 0.1
	MaxNeighbors      = 5
	CollabScale       = 50.0

	ContentBlendWeight = 0.6
	CollabBlendWeight  = 0.4

	minProfileOverlap = 2
)

// matrixWeights is the cell value of each interaction kind.
var matrixWeights = map[domain.InteractionKind]float64{
	domain.InteractionView:     1,
	domain.InteractionFavorite: 2,
	domain.InteractionReview:   3,
	domain.InteractionViewPost: 1.5,
}

// DefaultKeyTags pass the collaborative relevance gate on their own.
var DefaultKeyTags = []string{"Romance", "Nature", "Active leisure"}

// InteractionMatrix is a dense user x destination matrix. Cells hold the
// maximum weight among a user's interactions with a destination.
type InteractionMatrix struct {
	Users        []uint
	Destinations []uint
	Cells        [][]float64

	userIndex    map[uint]int
	destIndex    map[uint]int
	destinations map[uint]*domain.Destination
}

// BuildInteractionMatrix builds the matrix over the given catalog. Interactions
// with unknown destinations or kinds without a weight are ignored.
func BuildInteractionMatrix(interactions []domain.UserInteraction, catalog []domain.Destination) *InteractionMatrix {
	m := &InteractionMatrix{
		userIndex:    make(map[uint]int),
		destIndex:    make(map[uint]int, len(catalog)),
		destinations: make(map[uint]*domain.Destination, len(catalog)),
	}
	for i := range catalog {
		m.destinations[catalog[i].ID] = &catalog[i]
		m.Destinations = append(m.Destinations, catalog[i].ID)
	}
	sort.Slice(m.Destinations, func(i, j int) bool { return m.Destinations[i] < m.Destinations[j] })
	for i, id := range m.Destinations {
		m.destIndex[id] = i
	}

	userSet := make(map[uint]struct{})
	for i := range interactions {
		userSet[interactions[i].UserID] = struct{}{}
	}
	for id := range userSet {
		m.Users = append(m.Users, id)
	}
	sort.Slice(m.Users, func(i, j int) bool { return m.Users[i] < m.Users[j] })
	m.Cells = make([][]float64, len(m.Users))
	for i, id := range m.Users {
		m.userIndex[id] = i
		m.Cells[i] = make([]float64, len(m.Destinations))
	}

	for i := range interactions {
		in := &interactions[i]
		w, ok := matrixWeights[in.Kind]
		if !ok {
			continue
		}
		destID, ok := matrixDestination(in)
		if !ok {
			continue
		}
		col, ok := m.destIndex[destID]
		if !ok {
			continue
		}
		row := m.userIndex[in.UserID]
		if w > m.Cells[row][col] {
			m.Cells[row][col] = w
		}
	}
	return m
}

// matrixDestination resolves the destination an interaction counts towards.
// Post views count only when the post links an approved destination.
func matrixDestination(in *domain.UserInteraction) (uint, bool) {
	if in.Kind == domain.InteractionViewPost {
		if in.Post != nil && in.Post.DestinationID != nil {
			return *in.Post.DestinationID, true
		}
		if in.DestinationID != nil {
			return *in.DestinationID, true
		}
		return 0, false
	}
	if in.DestinationID == nil {
		return 0, false
	}
	return *in.DestinationID, true
}

// Row returns the row of a user, or nil for unknown users.
func (m *InteractionMatrix) Row(userID uint) []float64 {
	i, ok := m.userIndex[userID]
	if !ok {
		return nil
	}
	return m.Cells[i]
}

// Cell returns the weight of (user, destination).
func (m *InteractionMatrix) Cell(userID, destID uint) float64 {
	row := m.Row(userID)
	col, ok := m.destIndex[destID]
	if row == nil || !ok {
		return 0
	}
	return row[col]
}

// Destination returns the catalog entry of a matrix column.
func (m *InteractionMatrix) Destination(id uint) *domain.Destination {
	return m.destinations[id]
}

// Neighbor is a similar user.
type Neighbor struct {
	UserID     uint
	Similarity float64
}

// Neighbors returns up to MaxNeighbors users whose rows have cosine similarity
// of at least NeighborThreshold with the target, most similar first (ties by
// user id). A target with a zero row has no neighbors.
func (m *InteractionMatrix) Neighbors(userID uint) []Neighbor {
	target := m.Row(userID)
	targetNorm := rowNorm(target)
	if targetNorm == 0 {
		return nil
	}

	var out []Neighbor
	for i, other := range m.Users {
		if other == userID {
			continue
		}
		norm := rowNorm(m.Cells[i])
		if norm == 0 {
			continue
		}
		var dotp float64
		for j, v := range target {
			dotp += v * m.Cells[i][j]
		}
		sim := dotp / (targetNorm * norm)
		if math.IsNaN(sim) || sim < NeighborThreshold {
			continue
		}
		out = append(out, Neighbor{UserID: other, Similarity: sim})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > MaxNeighbors {
		out = out[:MaxNeighbors]
	}
	return out
}

func rowNorm(row []float64) float64 {
	var sum float64
	for _, v := range row {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// ============================================
// Matrix index
// ============================================

// MatrixIndex provides the interaction matrix.
type MatrixIndex interface {
	Rebuild(ctx context.Context) error
	Matrix() *InteractionMatrix
}

// PerRequestMatrix rebuilds the matrix from the full log and catalog on each
// Rebuild and publishes it as an immutable snapshot.
type PerRequestMatrix struct {
	interactions InteractionLog
	catalog      Catalog
	current      atomic.Pointer[InteractionMatrix]
}

// NewPerRequestMatrix creates a new PerRequestMatrix.
func NewPerRequestMatrix(interactions InteractionLog, catalog Catalog) *PerRequestMatrix {
	idx := &PerRequestMatrix{interactions: interactions, catalog: catalog}
	idx.current.Store(BuildInteractionMatrix(nil, nil))
	return idx
}

// Rebuild implements MatrixIndex.
func (p *PerRequestMatrix) Rebuild(ctx context.Context) error {
	log, err := p.interactions.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load interaction log: %w", err)
	}
	catalog, err := p.catalog.Find(ctx, repository.CatalogQuery{})
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	p.current.Store(BuildInteractionMatrix(log, catalog))
	return nil
}

// Matrix implements MatrixIndex.
func (p *PerRequestMatrix) Matrix() *InteractionMatrix {
	return p.current.Load()
}

// ============================================
// Collaborative filter
// ============================================

// CollaborativeFilter surfaces destinations liked by similar users.
type CollaborativeFilter struct {
	index   MatrixIndex
	keyTags []string
}

// NewCollaborativeFilter creates a new CollaborativeFilter. Empty keyTags
// fall back to DefaultKeyTags.
func NewCollaborativeFilter(index MatrixIndex, keyTags []string) *CollaborativeFilter {
	if len(keyTags) == 0 {
		keyTags = DefaultKeyTags
	}
	return &CollaborativeFilter{index: index, keyTags: keyTags}
}

// Recommend scores destinations seen by neighbors but not by the user as
// cell x similarity x CollabScale, keeping the best neighbor's score.
// Candidates must pass the relevance gate against profile.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: target user.
//   - profile: the user's profile for the relevance gate.
//   - exclude: destinations never to return.
// Returns:
//   - []Scored: candidates sorted by score desc, ties by id asc; nil for a cold-start user.
//   - error: non-nil if the matrix cannot be rebuilt.
func (c *CollaborativeFilter) Recommend(ctx context.Context, userID uint, profile Profile, exclude []uint) ([]Scored, error) {
	if err := c.index.Rebuild(ctx); err != nil {
		return nil, err
	}
	m := c.index.Matrix()

	neighbors := m.Neighbors(userID)
	if len(neighbors) == 0 {
		return nil, nil
	}

	excluded := idSet(exclude)
	best := make(map[uint]float64)
	for _, n := range neighbors {
		for _, destID := range m.Destinations {
			cell := m.Cell(n.UserID, destID)
			if cell == 0 || m.Cell(userID, destID) != 0 {
				continue
			}
			if _, skip := excluded[destID]; skip {
				continue
			}
			score := cell * n.Similarity * CollabScale
			if score > best[destID] {
				best[destID] = score
			}
		}
	}

	out := make([]Scored, 0, len(best))
	for destID, score := range best {
		if !c.passesGate(m.Destination(destID), profile) {
			continue
		}
		out = append(out, Scored{ID: destID, Score: score})
	}
	sortScored(out)
	return out, nil
}

// passesGate requires two tag/vibe overlaps with the profile or one key tag.
func (c *CollaborativeFilter) passesGate(d *domain.Destination, profile Profile) bool {
	if d == nil {
		return false
	}
	for _, tag := range c.keyTags {
		if d.Tags.Contains(tag) {
			return true
		}
	}
	values := append(append([]string{}, d.Tags...), d.Vibes...)
	return profile.Overlap(values) >= minProfileOverlap
}

// Blend merges content and collaborative scores. When both lists are
// non-empty each destination gets 0.6 x content + 0.4 x collab, with a missing
// side counting as zero; when one list is empty the other is returned as is.
func Blend(content, collab []Scored) []Scored {
	if len(collab) == 0 {
		out := append([]Scored(nil), content...)
		sortScored(out)
		return out
	}
	if len(content) == 0 {
		out := append([]Scored(nil), collab...)
		sortScored(out)
		return out
	}

	merged := make(map[uint]float64, len(content)+len(collab))
	for _, s := range content {
		merged[s.ID] += s.Score * ContentBlendWeight
	}
	for _, s := range collab {
		merged[s.ID] += s.Score * CollabBlendWeight
	}
	out := make([]Scored, 0, len(merged))
	for id, score := range merged {
		out = append(out, Scored{ID: id, Score: score})
	}
	sortScored(out)
	return out
}
