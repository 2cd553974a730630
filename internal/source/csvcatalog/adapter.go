package csvcatalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/source"
)

// OpenFunc opens the CSV stream. It is called once, on the first FetchBatch.
type OpenFunc func(ctx context.Context) (io.ReadCloser, error)

// Adapter implements source.Source for a destination catalog CSV with a header row.
// Multi-valued columns hold comma-separated values.
type Adapter struct {
	sourceID string
	open     OpenFunc
	items    []domain.Destination
	skipped  []source.RowError
	loaded   bool
}

// NewAdapter creates a new CSV catalog adapter.
// Parameters:
//   - sourceID: identifier for the catalog source (file path or object key).
//   - open: function returning the CSV stream.
// Returns:
//   - *Adapter: initialized adapter.
func NewAdapter(sourceID string, open OpenFunc) *Adapter {
	return &Adapter{sourceID: sourceID, open: open}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return "csv:" + a.sourceID
}

// Skipped returns the rows rejected while loading.
func (a *Adapter) Skipped() []source.RowError {
	return a.skipped
}

// FetchBatch returns up to limit destinations starting at the cursor index.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]domain.Destination, string, error) {
	if !a.loaded {
		if err := a.load(ctx); err != nil {
			return nil, "", fmt.Errorf("failed to load catalog csv: %w", err)
		}
		a.loaded = true
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
	}
	if startIndex >= len(a.items) {
		return []domain.Destination{}, "", nil
	}

	endIndex := startIndex + limit
	if limit <= 0 || endIndex > len(a.items) {
		endIndex = len(a.items)
	}

	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}
	return a.items[startIndex:endIndex], nextCursor, nil
}

func (a *Adapter) load(ctx context.Context) error {
	rc, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"name", "country"} {
		if _, ok := columns[required]; !ok {
			return fmt.Errorf("missing required column %q", required)
		}
	}

	a.items = nil
	a.skipped = nil
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			a.skipped = append(a.skipped, source.RowError{Line: line, Err: err})
			continue
		}
		line, _ := reader.FieldPos(0)
		dest, err := parseRow(row{columns: columns, record: record})
		if err != nil {
			a.skipped = append(a.skipped, source.RowError{Line: line, Err: err})
			continue
		}
		a.items = append(a.items, *dest)
	}
	return nil
}

type row struct {
	columns map[string]int
	record  []string
}

// get returns the first non-empty value among the column aliases.
func (r row) get(names ...string) string {
	for _, name := range names {
		if i, ok := r.columns[name]; ok && i < len(r.record) {
			if v := strings.TrimSpace(r.record[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

func parseRow(r row) (*domain.Destination, error) {
	d := &domain.Destination{
		Name:        r.get("name", "recommendation", "title"),
		Country:     r.get("country"),
		City:        r.get("city"),
		Description: r.get("description"),
	}
	if d.Name == "" || d.Country == "" {
		return nil, errors.New("name and country are required")
	}

	if v := r.get("climate"); v != "" {
		climate, ok := matchVocabulary(v, domain.Climates)
		if !ok {
			return nil, fmt.Errorf("unknown climate %q", v)
		}
		d.Climate = climate
	}
	if v := r.get("season"); v != "" {
		season, ok := matchVocabulary(v, domain.Seasons)
		if !ok {
			return nil, fmt.Errorf("unknown season %q", v)
		}
		d.Season = season
	}

	d.ActivityTypes = splitList(r.get("activity_types", "activity_type"), domain.ActivityTypes)
	d.Languages = splitList(r.get("languages", "language"), domain.Languages)
	d.Tags = splitList(r.get("tags"), domain.Tags)
	d.Vibes = splitList(r.get("vibes", "vibe"), domain.Vibes)
	d.ComfortLevels = splitList(r.get("comfort_levels", "comfort_level"), domain.ComfortLevels)

	var err error
	if d.FamilyFriendly, err = parseBool(r.get("family_friendly")); err != nil {
		return nil, fmt.Errorf("family_friendly: %w", err)
	}
	if d.VisaRequired, err = parseBool(r.get("visa_required")); err != nil {
		return nil, fmt.Errorf("visa_required: %w", err)
	}
	if d.IsPopular, err = parseBool(r.get("is_popular")); err != nil {
		return nil, fmt.Errorf("is_popular: %w", err)
	}
	if d.BudgetMin, err = parseFloat(r.get("budget_min")); err != nil {
		return nil, fmt.Errorf("budget_min: %w", err)
	}
	if d.BudgetMax, err = parseFloat(r.get("budget_max")); err != nil {
		return nil, fmt.Errorf("budget_max: %w", err)
	}
	if d.BudgetMin != nil && d.BudgetMax != nil && *d.BudgetMin > *d.BudgetMax {
		return nil, errors.New("budget_min exceeds budget_max")
	}
	return d, nil
}

// splitList splits a comma-separated cell, canonicalizing known vocabulary
// values and keeping unknown ones as written.
func splitList(cell string, vocabulary []string) domain.StringArray {
	if cell == "" {
		return domain.StringArray{}
	}
	out := domain.StringArray{}
	for _, part := range strings.Split(cell, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if canonical, ok := matchVocabulary(part, vocabulary); ok {
			part = canonical
		}
		if !out.Contains(part) {
			out = append(out, part)
		}
	}
	return out
}

func matchVocabulary[T ~string](value string, vocabulary []T) (T, bool) {
	for _, v := range vocabulary {
		if strings.EqualFold(string(v), value) {
			return v, true
		}
	}
	return "", false
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "":
		return false, nil
	case "1", "true", "yes", "y":
		return true, nil
	case "0", "false", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

func parseFloat(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	if f < 0 {
		return nil, errors.New("must not be negative")
	}
	return &f, nil
}
