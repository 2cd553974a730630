package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/source"
)

// CatalogWriter is the destination store used by the importer.
type CatalogWriter interface {
	Upsert(ctx context.Context, d *domain.Destination) error
	GetByName(ctx context.Context, name, country string) (*domain.Destination, error)
	UpdateEmbedding(ctx context.Context, id uint, vector []float32) error
	ListWithoutEmbedding(ctx context.Context, limit int) ([]domain.Destination, error)
}

// VectorWriter stores destination vectors in the vector index.
type VectorWriter interface {
	Upsert(ctx context.Context, d *domain.Destination, vector []float32) error
}

// CatalogImporter loads destinations from a source and attaches embeddings.
type CatalogImporter struct {
	catalog   CatalogWriter
	vectors   VectorWriter
	embedding EmbeddingProvider
	logger    *logger.Logger
	workers   int
	batchSize int
}

// ImportConfig holds configuration for the importer.
type ImportConfig struct {
	Workers   int
	BatchSize int
}

// NewCatalogImporter creates a new importer. vectors and embedding may be nil,
// in which case destinations are stored without embeddings.
func NewCatalogImporter(
	catalog CatalogWriter,
	vectors VectorWriter,
	embedding EmbeddingProvider,
	log *logger.Logger,
	cfg *ImportConfig,
) *CatalogImporter {
	workers, batchSize := 4, 50
	if cfg != nil && cfg.Workers > 0 {
		workers = cfg.Workers
	}
	if cfg != nil && cfg.BatchSize > 0 {
		batchSize = cfg.BatchSize
	}
	return &CatalogImporter{
		catalog:   catalog,
		vectors:   vectors,
		embedding: embedding,
		logger:    log,
		workers:   workers,
		batchSize: batchSize,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *CatalogImporter) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// ImportStats holds statistics for an import run
type ImportStats struct {
	TotalItems     int64
	ProcessedItems int64
	EmbeddedItems  int64
	FailedItems    int64
	RejectedRows   int64
	StartTime      time.Time
	EndTime        time.Time
}

// ImportOptions holds options for an import run
type ImportOptions struct {
	SkipEmbeddings bool
}

type importResult struct {
	name     string
	embedded bool
	err      error
}

// ImportFromSource upserts up to limit destinations from src using a pool of
// workers. Embedding failures are logged and leave the destination without a
// vector; EmbedMissing can fill those in later.
func (s *CatalogImporter) ImportFromSource(ctx context.Context, src source.Source, limit int, opts *ImportOptions) (*ImportStats, error) {
	if opts == nil {
		opts = &ImportOptions{}
	}
	stats := &ImportStats{StartTime: time.Now()}

	s.log(ctx).WithFields(logger.Fields{
		"source":          src.GetSourceID(),
		"limit":           limit,
		"skip_embeddings": opts.SkipEmbeddings,
	}).Info("Starting catalog import")

	itemsChan := make(chan domain.Destination, s.workers*2)
	resultsChan := make(chan *importResult, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, itemsChan, resultsChan, opts)
		}()
	}

	done := make(chan struct{})
	go func() {
		for result := range resultsChan {
			atomic.AddInt64(&stats.ProcessedItems, 1)
			if result.embedded {
				atomic.AddInt64(&stats.EmbeddedItems, 1)
			}
			if result.err != nil {
				atomic.AddInt64(&stats.FailedItems, 1)
				s.log(ctx).WithFields(logger.Fields{
					"destination": result.name,
				}).WithError(result.err).Error("Failed to import destination")
			}
		}
		close(done)
	}()

	var fetchErr error
	cursor := ""
	totalFetched := 0
fetch:
	for ctx.Err() == nil {
		batchLimit := s.batchSize
		if limit > 0 {
			remaining := limit - totalFetched
			if remaining <= 0 {
				break
			}
			batchLimit = min(batchLimit, remaining)
		}

		items, nextCursor, err := src.FetchBatch(ctx, cursor, batchLimit)
		if err != nil {
			fetchErr = fmt.Errorf("failed to fetch batch: %w", err)
			break
		}
		if len(items) == 0 {
			break
		}

		atomic.AddInt64(&stats.TotalItems, int64(len(items)))
		totalFetched += len(items)

		for _, item := range items {
			select {
			case itemsChan <- item:
			case <-ctx.Done():
				break fetch
			}
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	close(itemsChan)
	wg.Wait()
	close(resultsChan)
	<-done

	for _, rowErr := range src.Skipped() {
		stats.RejectedRows++
		s.log(ctx).WithField("line", rowErr.Line).WithError(rowErr.Err).Warn("Rejected catalog row")
	}
	stats.EndTime = time.Now()

	s.log(ctx).WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"embedded":  stats.EmbeddedItems,
		"failed":    stats.FailedItems,
		"rejected":  stats.RejectedRows,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Catalog import completed")

	return stats, fetchErr
}

func (s *CatalogImporter) worker(ctx context.Context, items <-chan domain.Destination, results chan<- *importResult, opts *ImportOptions) {
	for item := range items {
		if ctx.Err() != nil {
			results <- &importResult{name: item.Name, err: ctx.Err()}
			continue
		}
		d := item
		result := &importResult{name: d.Name}
		if err := s.store(ctx, &d); err != nil {
			result.err = err
		} else if !opts.SkipEmbeddings {
			embedded, err := s.embed(ctx, &d)
			result.embedded = embedded
			if err != nil {
				s.log(ctx).WithFields(logger.Fields{
					logger.FieldDestinationID: d.ID,
				}).WithError(err).Warn("Failed to embed destination")
			}
		}
		results <- result
	}
}

// store upserts d and resolves its ID when the driver does not return it.
func (s *CatalogImporter) store(ctx context.Context, d *domain.Destination) error {
	if err := s.catalog.Upsert(ctx, d); err != nil {
		return fmt.Errorf("failed to upsert destination: %w", err)
	}
	if d.ID != 0 {
		return nil
	}
	stored, err := s.catalog.GetByName(ctx, d.Name, d.Country)
	if err != nil {
		return fmt.Errorf("failed to resolve destination id: %w", err)
	}
	d.ID = stored.ID
	return nil
}

// embed generates the destination vector and writes it to the vector index
// first, then to the destination row.
func (s *CatalogImporter) embed(ctx context.Context, d *domain.Destination) (bool, error) {
	if s.embedding == nil {
		return false, nil
	}
	vector, err := s.embedding.Embed(ctx, d.EmbeddingText())
	if err != nil {
		return false, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if s.vectors != nil {
		if err := s.vectors.Upsert(ctx, d, vector); err != nil {
			return false, fmt.Errorf("failed to upsert vector: %w", err)
		}
	}
	if err := s.catalog.UpdateEmbedding(ctx, d.ID, vector); err != nil {
		return false, fmt.Errorf("failed to store embedding: %w", err)
	}
	return true, nil
}

// EmbedMissing embeds up to limit destinations that have no stored vector.
func (s *CatalogImporter) EmbedMissing(ctx context.Context, limit int) (*ImportStats, error) {
	stats := &ImportStats{StartTime: time.Now()}
	if s.embedding == nil {
		return nil, fmt.Errorf("embedding provider is not configured")
	}

	rows, err := s.catalog.ListWithoutEmbedding(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list destinations without embeddings: %w", err)
	}
	stats.TotalItems = int64(len(rows))

	for i := range rows {
		if ctx.Err() != nil {
			break
		}
		stats.ProcessedItems++
		if _, err := s.embed(ctx, &rows[i]); err != nil {
			stats.FailedItems++
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldDestinationID: rows[i].ID,
			}).WithError(err).Warn("Failed to embed destination")
			continue
		}
		stats.EmbeddedItems++
	}

	stats.EndTime = time.Now()
	s.log(ctx).WithFields(logger.Fields{
		"total":    stats.TotalItems,
		"embedded": stats.EmbeddedItems,
		"failed":   stats.FailedItems,
		"duration": stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Embedding backfill completed")
	return stats, ctx.Err()
}
