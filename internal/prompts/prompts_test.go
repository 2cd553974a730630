package prompts

import (
	"strings"
	"testing"

	"github.com/timmy/wanderlust/internal/domain"
)

func TestFilterExtractionPromptListsVocabularies(t *testing.T) {
	prompt := FilterExtractionSystemPrompt()
	for _, want := range []string{"Cold and snowy", "Autumn", "Beach holiday", "Romance", "Luxury"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestRelevanceJudgeUserPrompt(t *testing.T) {
	d := &domain.Destination{
		Name: "Rome", Country: "Italy", Season: domain.SeasonSummer,
		Tags: domain.StringArray{"History"},
	}
	fs := &domain.FilterSet{
		Country:   "Italy",
		Seasons:   []domain.Season{domain.SeasonSummer},
		BudgetMax: domain.Float(1500),
	}
	prompt := RelevanceJudgeUserPrompt(d, fs)
	for _, want := range []string{"- name: Rome", "- tags: History", "- country: Italy", "- season: [Summer]", "- budget_max: 1500"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
