package prompts

import (
	"fmt"
	"strings"

	"github.com/timmy/wanderlust/internal/domain"
)

// ============================================================================
// Shared Lexicons
// ============================================================================

// SeasonKeywords maps free-text words to seasons for the rule-based extractor.
var SeasonKeywords = map[string]domain.Season{
	"winter": domain.SeasonWinter, "december": domain.SeasonWinter, "january": domain.SeasonWinter,
	"february": domain.SeasonWinter, "snow": domain.SeasonWinter, "christmas": domain.SeasonWinter,
	"spring": domain.SeasonSpring, "march": domain.SeasonSpring, "april": domain.SeasonSpring, "may": domain.SeasonSpring,
	"summer": domain.SeasonSummer, "june": domain.SeasonSummer, "july": domain.SeasonSummer, "august": domain.SeasonSummer,
	"autumn": domain.SeasonAutumn, "fall": domain.SeasonAutumn, "september": domain.SeasonAutumn,
	"october": domain.SeasonAutumn, "november": domain.SeasonAutumn,
}

// ActivityKeywords maps word stems to activity types.
var ActivityKeywords = map[string]string{
	"beach": "Beach holiday", "swim": "Beach holiday", "sunbath": "Beach holiday",
	"sightsee": "Sightseeing", "museum": "Sightseeing", "excursion": "Sightseeing",
	"food": "Gastronomy", "cuisine": "Gastronomy", "wine": "Gastronomy", "restaurant": "Gastronomy",
	"shop": "Shopping", "mall": "Shopping",
	"spa": "Wellness", "wellness": "Wellness", "massage": "Wellness",
	"ski": "Skiing", "snowboard": "Skiing",
	"hike": "Hiking", "hiking": "Hiking", "trek": "Hiking",
	"dive": "Diving", "diving": "Diving", "snorkel": "Diving",
	"club": "Nightlife", "nightlife": "Nightlife",
	"active": "Active leisure", "adventure": "Active leisure",
}

// TagKeywords maps word stems to destination tags.
var TagKeywords = map[string]string{
	"romantic": "Romance", "romance": "Romance", "honeymoon": "Romance", "couple": "Romance",
	"nature": "Nature", "forest": "Nature", "park": "Nature", "wildlife": "Nature",
	"mountain": "Mountains", "alps": "Mountains",
	"sea": "Sea", "ocean": "Sea", "coast": "Sea",
	"island": "Islands",
	"history": "History", "historic": "History", "ancient": "History", "castle": "History",
	"culture": "Culture", "art": "Culture", "theatre": "Culture",
	"architecture": "Architecture", "cathedral": "Architecture",
	"relax": "Relax", "calm": "Relax", "quiet": "Relax",
}

// ComfortKeywords maps word stems to comfort levels.
var ComfortKeywords = map[string]string{
	"cheap": "Budget", "budget": "Budget", "hostel": "Budget", "backpack": "Budget",
	"standard": "Standard",
	"comfort": "Comfort", "cozy": "Comfort",
	"luxury": "Luxury", "luxurious": "Luxury", "premium": "Luxury", "five-star": "Luxury",
}

// FamilyKeywords mark a family-friendly request.
var FamilyKeywords = []string{"family", "kids", "children", "child", "toddler"}

// NoVisaKeywords mark a request for visa-free destinations.
var NoVisaKeywords = []string{"visa-free", "visa free", "no visa", "without visa"}

// ============================================================================
// NL-to-Filters Prompt
// ============================================================================

// FilterExtractionSystemPrompt returns the system prompt that turns a travel
// request into a filter object restricted to the catalog vocabularies.
func FilterExtractionSystemPrompt() string {
	climates := make([]string, len(domain.Climates))
	for i, c := range domain.Climates {
		climates[i] = string(c)
	}
	seasons := make([]string, len(domain.Seasons))
	for i, s := range domain.Seasons {
		seasons[i] = string(s)
	}

	return fmt.Sprintf(`You turn a traveller's free-text request into search filters for a destination catalog.

Output a single JSON object and nothing else. Omit every key the request does not mention.

Keys:
- "country": country name in English
- "climate": list, values from [%s]
- "season": list, values from [%s]
- "activity_types": list, values from [%s]
- "vibe": list, values from [%s]
- "comfort_level": list, values from [%s]
- "language": list, values from [%s]
- "tags": list, values from [%s]
- "family_friendly": true only if the request mentions children or family
- "visa_required": false only if the request asks for visa-free travel
- "budget_min", "budget_max": numbers in the request's currency

Use only the listed values. Return {} when nothing applies.

Example:
Input: romantic beach trip to Greece in July, nothing too expensive
{"country":"Greece","season":["Summer"],"activity_types":["Beach holiday"],"tags":["Romance","Sea"],"comfort_level":["Standard"]}`,
		strings.Join(climates, ", "),
		strings.Join(seasons, ", "),
		strings.Join(domain.ActivityTypes, ", "),
		strings.Join(domain.Vibes, ", "),
		strings.Join(domain.ComfortLevels, ", "),
		strings.Join(domain.Languages, ", "),
		strings.Join(domain.Tags, ", "),
	)
}

// ============================================================================
// Relevance Judge Prompt
// ============================================================================

// RelevanceJudgeSystemPrompt asks the model for a single 0-100 score.
const RelevanceJudgeSystemPrompt = `You rate how well a travel destination fits a traveller's search filters.

Answer with a JSON object {"score": N} where N is an integer from 0 (unrelated) to 100 (perfect fit).
Weigh country and season most, then climate and activities, then tags and vibe.
Do not explain.`

// RelevanceJudgeUserPrompt describes the destination and the filters to rate.
func RelevanceJudgeUserPrompt(d *domain.Destination, filters *domain.FilterSet) string {
	var b strings.Builder
	b.WriteString("Destination:\n")
	fmt.Fprintf(&b, "- name: %s\n- country: %s\n", d.Name, d.Country)
	if d.Climate != "" {
		fmt.Fprintf(&b, "- climate: %s\n", d.Climate)
	}
	if d.Season != "" {
		fmt.Fprintf(&b, "- best season: %s\n", d.Season)
	}
	writeList(&b, "activities", d.ActivityTypes)
	writeList(&b, "tags", d.Tags)
	writeList(&b, "vibe", d.Vibes)
	writeList(&b, "comfort", d.ComfortLevels)
	fmt.Fprintf(&b, "- family friendly: %t\n- visa required: %t\n", d.FamilyFriendly, d.VisaRequired)
	if d.Description != "" {
		fmt.Fprintf(&b, "- description: %s\n", d.Description)
	}

	b.WriteString("\nFilters:\n")
	pairs := filters.Pairs()
	for _, key := range filters.ActiveCriteria() {
		switch key {
		case domain.FilterBudget:
			if filters.BudgetMin != nil {
				fmt.Fprintf(&b, "- budget_min: %v\n", *filters.BudgetMin)
			}
			if filters.BudgetMax != nil {
				fmt.Fprintf(&b, "- budget_max: %v\n", *filters.BudgetMax)
			}
		case domain.FilterCountry:
			fmt.Fprintf(&b, "- country: %s\n", filters.Country)
		default:
			fmt.Fprintf(&b, "- %s: %v\n", key, pairs[key])
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, label string, values []string) {
	if len(values) > 0 {
		fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(values, ", "))
	}
}
