package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/wanderlust/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogQuery selects destinations. Scalar criteria are pushed down to SQL,
// Match is evaluated in memory on the remaining rows.
type CatalogQuery struct {
	CountryEquals string
	Seasons       []domain.Season
	Popular       *bool
	ExcludeIDs    []uint
	Match         func(*domain.Destination) bool
	Limit         int
}

// DestinationRepository handles catalog data operations.
type DestinationRepository struct {
	db *gorm.DB
}

// NewDestinationRepository creates a new DestinationRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *DestinationRepository: repository instance bound to db.
func NewDestinationRepository(db *gorm.DB) *DestinationRepository {
	return &DestinationRepository{db: db}
}

// Create inserts a new destination.
func (r *DestinationRepository) Create(ctx context.Context, d *domain.Destination) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// Upsert creates or updates a destination keyed by (name, country).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - d: destination to create or update.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *DestinationRepository) Upsert(ctx context.Context, d *domain.Destination) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}, {Name: "country"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"city", "climate", "season", "activity_types", "languages", "tags", "vibes",
			"comfort_levels", "family_friendly", "visa_required", "is_popular",
			"budget_min", "budget_max", "description", "updated_at",
		}),
	}).Create(d).Error
}

// Get retrieves a destination by ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: destination ID.
// Returns:
//   - *domain.Destination: destination if found.
//   - error: domain NotFound if missing.
func (r *DestinationRepository) Get(ctx context.Context, id uint) (*domain.Destination, error) {
	var d domain.Destination
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("destination %d", id))
	}
	return &d, nil
}

// GetByName retrieves a destination by its (name, country) identity.
func (r *DestinationRepository) GetByName(ctx context.Context, name, country string) (*domain.Destination, error) {
	var d domain.Destination
	if err := r.db.WithContext(ctx).
		Where("name = ? AND country = ?", name, country).
		First(&d).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("destination %s/%s", name, country))
	}
	return &d, nil
}

// Find returns the destinations selected by q ordered by ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - q: catalog query; Limit applies after the in-memory Match.
// Returns:
//   - []domain.Destination: matching destinations.
//   - error: non-nil if the query fails.
func (r *DestinationRepository) Find(ctx context.Context, q CatalogQuery) ([]domain.Destination, error) {
	query := r.db.WithContext(ctx).Model(&domain.Destination{})

	if q.CountryEquals != "" {
		query = query.Where("LOWER(country) = ?", strings.ToLower(strings.TrimSpace(q.CountryEquals)))
	}
	if len(q.Seasons) > 0 {
		query = query.Where("season IN ?", q.Seasons)
	}
	if q.Popular != nil {
		query = query.Where("is_popular = ?", *q.Popular)
	}
	if len(q.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", q.ExcludeIDs)
	}
	if q.Match == nil && q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []domain.Destination
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query destinations: %w", err)
	}

	if q.Match == nil {
		return rows, nil
	}

	matched := make([]domain.Destination, 0, len(rows))
	for i := range rows {
		if !q.Match(&rows[i]) {
			continue
		}
		matched = append(matched, rows[i])
		if q.Limit > 0 && len(matched) >= q.Limit {
			break
		}
	}
	return matched, nil
}

// All returns the full catalog ordered by ID.
func (r *DestinationRepository) All(ctx context.Context) ([]domain.Destination, error) {
	return r.Find(ctx, CatalogQuery{})
}

// Count returns the catalog size.
func (r *DestinationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Destination{}).Count(&count).Error
	return count, err
}

// UpdateEmbedding stores the embedding vector of a destination.
func (r *DestinationRepository) UpdateEmbedding(ctx context.Context, id uint, vector []float32) error {
	return r.db.WithContext(ctx).Model(&domain.Destination{}).
		Where("id = ?", id).
		Update("embedding", domain.Vector(vector)).Error
}

// ListWithoutEmbedding returns up to limit destinations that have no embedding yet.
func (r *DestinationRepository) ListWithoutEmbedding(ctx context.Context, limit int) ([]domain.Destination, error) {
	var rows []domain.Destination
	query := r.db.WithContext(ctx).
		Where("embedding IS NULL OR embedding = '' OR embedding = 'null'").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list destinations without embedding: %w", err)
	}
	return rows, nil
}

// Embeddings returns the stored embeddings of the given destinations keyed by ID.
// Destinations without an embedding are omitted.
func (r *DestinationRepository) Embeddings(ctx context.Context, ids []uint) (map[uint][]float32, error) {
	if len(ids) == 0 {
		return map[uint][]float32{}, nil
	}
	var rows []domain.Destination
	if err := r.db.WithContext(ctx).
		Select("id", "embedding").
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	out := make(map[uint][]float32, len(rows))
	for _, row := range rows {
		if len(row.Embedding) > 0 {
			out[row.ID] = row.Embedding
		}
	}
	return out, nil
}

// CountryCount is a country with its number of destinations.
type CountryCount struct {
	Country string
	Total   int64
}

// TopCountries returns the countries with the most destinations.
func (r *DestinationRepository) TopCountries(ctx context.Context, limit int) ([]CountryCount, error) {
	var rows []CountryCount
	query := r.db.WithContext(ctx).Model(&domain.Destination{}).
		Select("country, COUNT(*) AS total").
		Group("country").
		Order("total DESC, country ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count countries: %w", err)
	}
	return rows, nil
}
