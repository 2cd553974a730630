package source

import (
	"context"
	"fmt"

	"github.com/timmy/wanderlust/internal/domain"
)

// RowError reports a catalog record that could not be parsed.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Source defines the interface for destination catalog sources.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier.
	GetSourceID() string

	// FetchBatch fetches a batch of destinations starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of destinations to fetch.
	// Returns:
	//   - items: batch of destinations (IDs unset).
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []domain.Destination, nextCursor string, err error)

	// Skipped returns the records rejected while loading.
	Skipped() []RowError
}
