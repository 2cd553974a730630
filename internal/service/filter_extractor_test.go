package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/wanderlust/internal/cache"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/repository"
)

type staticCountries []string

func (s staticCountries) TopCountries(_ context.Context, limit int) ([]repository.CountryCount, error) {
	out := make([]repository.CountryCount, 0, len(s))
	for i, c := range s {
		if i >= limit {
			break
		}
		out = append(out, repository.CountryCount{Country: c, Total: int64(len(s) - i)})
	}
	return out, nil
}

func TestFallbackExtract(t *testing.T) {
	e := NewFilterExtractor(&FilterExtractorConfig{}, nil, nil, staticCountries{"Italy", "Spain"})

	tests := []struct {
		name  string
		text  string
		check func(t *testing.T, fs *domain.FilterSet)
	}{
		{
			name: "full request",
			text: "Romantic beach trip to Italy in summer under $1,500 with kids, visa free",
			check: func(t *testing.T, fs *domain.FilterSet) {
				assert.Equal(t, "Italy", fs.Country)
				assert.Equal(t, []domain.Season{domain.SeasonSummer}, fs.Seasons)
				assert.Equal(t, []string{"Beach holiday"}, fs.ActivityTypes)
				assert.Equal(t, []string{"Romance"}, fs.Tags)
				require.NotNil(t, fs.BudgetMax)
				assert.Equal(t, 1500.0, *fs.BudgetMax)
				assert.Nil(t, fs.BudgetMin)
				require.NotNil(t, fs.FamilyFriendly)
				assert.True(t, *fs.FamilyFriendly)
				require.NotNil(t, fs.VisaRequired)
				assert.False(t, *fs.VisaRequired)
			},
		},
		{
			name: "short stems need whole words",
			text: "seaside season in spain",
			check: func(t *testing.T, fs *domain.FilterSet) {
				assert.Empty(t, fs.Tags)
				assert.Empty(t, fs.ActivityTypes)
				assert.Equal(t, "Spain", fs.Country)
			},
		},
		{
			name: "long stems match as prefixes",
			text: "hiking in the mountains and museums",
			check: func(t *testing.T, fs *domain.FilterSet) {
				assert.ElementsMatch(t, []string{"Hiking", "Sightseeing"}, fs.ActivityTypes)
				assert.Equal(t, []string{"Mountains"}, fs.Tags)
			},
		},
		{
			name: "climate phrase and comfort",
			text: "somewhere hot and humid, luxury hotels",
			check: func(t *testing.T, fs *domain.FilterSet) {
				assert.Equal(t, []domain.Climate{domain.ClimateHotHumid}, fs.Climates)
				assert.Equal(t, []string{"Luxury"}, fs.ComfortLevels)
			},
		},
		{
			name: "inverted budget is discarded",
			text: "at least 900 and under 100",
			check: func(t *testing.T, fs *domain.FilterSet) {
				assert.Nil(t, fs.BudgetMin)
				assert.Nil(t, fs.BudgetMax)
			},
		},
		{
			name: "budget range",
			text: "from 300 up to 800",
			check: func(t *testing.T, fs *domain.FilterSet) {
				require.NotNil(t, fs.BudgetMin)
				require.NotNil(t, fs.BudgetMax)
				assert.Equal(t, 300.0, *fs.BudgetMin)
				assert.Equal(t, 800.0, *fs.BudgetMax)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := e.Extract(context.Background(), tt.text)
			require.NoError(t, err)
			tt.check(t, fs)
		})
	}
}

func TestExtractRejectsBlankText(t *testing.T) {
	_, err := NewFilterExtractor(nil, nil, nil, nil).Extract(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestExtractWithLLMIsCached(t *testing.T) {
	srv, hits := chatServer(t, http.StatusOK, "```json\n{\"country\": \"France\", \"season\": [\"summer\", \"Monsoon\"], \"tags\": [\"sea\"], \"budget_min\": 900, \"budget_max\": 100}\n```")

	store := cache.NewMemoryCache(100, time.Minute)
	e := NewFilterExtractor(&FilterExtractorConfig{
		Enabled: true,
		LLM:     LLMConfig{Model: "m", APIKey: "test-key", BaseURL: srv.URL},
	}, NewProviderGuard("filter_extractor", GuardConfig{}), store, nil)
	require.True(t, e.IsEnabled())

	fs, err := e.Extract(context.Background(), "Summer by the sea in France")
	require.NoError(t, err)
	assert.Equal(t, "France", fs.Country)
	assert.Equal(t, []domain.Season{domain.SeasonSummer}, fs.Seasons, "unknown values are dropped")
	assert.Equal(t, []string{"Sea"}, fs.Tags, "values use canonical spelling")
	assert.Nil(t, fs.BudgetMin)
	assert.Nil(t, fs.BudgetMax)

	again, err := e.Extract(context.Background(), "  summer by the SEA in france ")
	require.NoError(t, err)
	assert.Equal(t, fs, again)
	assert.Equal(t, int64(1), hits.Load())
}

func TestExtractFallsBackWhenLLMFails(t *testing.T) {
	srv, _ := chatServer(t, http.StatusInternalServerError, "")
	store := cache.NewMemoryCache(100, time.Minute)
	e := NewFilterExtractor(&FilterExtractorConfig{
		Enabled: true,
		LLM:     LLMConfig{Model: "m", APIKey: "test-key", BaseURL: srv.URL},
	}, NewProviderGuard("filter_extractor", GuardConfig{}), store, staticCountries{"Greece"})

	fs, err := e.Extract(context.Background(), "island hopping in Greece")
	require.NoError(t, err)
	assert.Equal(t, "Greece", fs.Country)
	assert.Equal(t, []string{"Islands"}, fs.Tags)
	assert.Zero(t, store.Len(), "fallback answers are not memoized")
}

func TestExtractTruncatesLongText(t *testing.T) {
	e := NewFilterExtractor(nil, nil, nil, nil)
	text := strings.Repeat("x", maxExtractorRunes) + " summer"
	fs, err := e.Extract(context.Background(), text)
	require.NoError(t, err)
	assert.Empty(t, fs.Seasons)
}
