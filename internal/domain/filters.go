package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Filter criterion names. They double as JSON keys and filters-hash keys.
const (
	FilterCountry        = "country"
	FilterClimate        = "climate"
	FilterSeason         = "season"
	FilterActivityTypes  = "activity_types"
	FilterVibe           = "vibe"
	FilterComfortLevel   = "comfort_level"
	FilterLanguage       = "language"
	FilterTags           = "tags"
	FilterFamilyFriendly = "family_friendly"
	FilterVisaRequired   = "visa_required"
	FilterBudget         = "budget"
)

// FilterSet is a typed set of search criteria. Empty values are inactive.
type FilterSet struct {
	Country        string    `json:"country,omitempty"`
	Climates       []Climate `json:"climate,omitempty" binding:"omitempty,dive,climate"`
	Seasons        []Season  `json:"season,omitempty" binding:"omitempty,dive,season"`
	ActivityTypes  []string  `json:"activity_types,omitempty"`
	Vibes          []string  `json:"vibe,omitempty"`
	ComfortLevels  []string  `json:"comfort_level,omitempty"`
	Languages      []string  `json:"language,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	FamilyFriendly *bool     `json:"family_friendly,omitempty"`
	VisaRequired   *bool     `json:"visa_required,omitempty"`
	BudgetMin      *float64  `json:"budget_min,omitempty" binding:"omitempty,gte=0"`
	BudgetMax      *float64  `json:"budget_max,omitempty" binding:"omitempty,gte=0"`
}

// Normalize trims values, drops empty entries and removes duplicates.
func (f *FilterSet) Normalize() {
	f.Country = strings.TrimSpace(f.Country)
	f.Climates = normalizeTyped(f.Climates)
	f.Seasons = normalizeTyped(f.Seasons)
	f.ActivityTypes = normalizeTyped(f.ActivityTypes)
	f.Vibes = normalizeTyped(f.Vibes)
	f.ComfortLevels = normalizeTyped(f.ComfortLevels)
	f.Languages = normalizeTyped(f.Languages)
	f.Tags = normalizeTyped(f.Tags)
}

func normalizeTyped[T ~string](values []T) []T {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(string(v))
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, T(trimmed))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// HasBudget reports whether a budget range criterion is present.
func (f *FilterSet) HasBudget() bool {
	return f.BudgetMin != nil || f.BudgetMax != nil
}

// ActiveCriteria returns the names of the active criteria in a fixed order.
func (f *FilterSet) ActiveCriteria() []string {
	var active []string
	if strings.TrimSpace(f.Country) != "" {
		active = append(active, FilterCountry)
	}
	if len(f.Climates) > 0 {
		active = append(active, FilterClimate)
	}
	if len(f.Seasons) > 0 {
		active = append(active, FilterSeason)
	}
	if len(f.ActivityTypes) > 0 {
		active = append(active, FilterActivityTypes)
	}
	if len(f.Vibes) > 0 {
		active = append(active, FilterVibe)
	}
	if len(f.ComfortLevels) > 0 {
		active = append(active, FilterComfortLevel)
	}
	if len(f.Languages) > 0 {
		active = append(active, FilterLanguage)
	}
	if len(f.Tags) > 0 {
		active = append(active, FilterTags)
	}
	if f.FamilyFriendly != nil {
		active = append(active, FilterFamilyFriendly)
	}
	if f.VisaRequired != nil {
		active = append(active, FilterVisaRequired)
	}
	if f.HasBudget() {
		active = append(active, FilterBudget)
	}
	return active
}

// IsEmpty reports whether no criterion is active.
func (f *FilterSet) IsEmpty() bool {
	return f == nil || len(f.ActiveCriteria()) == 0
}

// Validate checks structural constraints that the type system cannot express.
func (f *FilterSet) Validate() error {
	if f.BudgetMin != nil && *f.BudgetMin < 0 {
		return NewValidationError("budget_min must not be negative")
	}
	if f.BudgetMax != nil && *f.BudgetMax < 0 {
		return NewValidationError("budget_max must not be negative")
	}
	if f.BudgetMin != nil && f.BudgetMax != nil && *f.BudgetMin > *f.BudgetMax {
		return NewValidationError("budget_min must not exceed budget_max")
	}
	return nil
}

// Pairs returns the filter set as key/value pairs suitable for hashing.
func (f *FilterSet) Pairs() map[string]any {
	pairs := map[string]any{
		FilterCountry:       strings.ToLower(strings.TrimSpace(f.Country)),
		FilterClimate:       foldList(f.Climates),
		FilterSeason:        foldList(f.Seasons),
		FilterActivityTypes: foldList(f.ActivityTypes),
		FilterVibe:          foldList(f.Vibes),
		FilterComfortLevel:  foldList(f.ComfortLevels),
		FilterLanguage:      foldList(f.Languages),
		FilterTags:          foldList(f.Tags),
	}
	if f.FamilyFriendly != nil {
		pairs[FilterFamilyFriendly] = *f.FamilyFriendly
	}
	if f.VisaRequired != nil {
		pairs[FilterVisaRequired] = *f.VisaRequired
	}
	if f.BudgetMin != nil {
		pairs["budget_min"] = *f.BudgetMin
	}
	if f.BudgetMax != nil {
		pairs["budget_max"] = *f.BudgetMax
	}
	return pairs
}

// Hash returns the stable filters hash of the set.
func (f *FilterSet) Hash() string {
	return HashFilterPairs(f.Pairs())
}

// foldList lowercases and dedups list values; matching ignores case, so the
// hash does too.
func foldList[T ~string](values []T) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		folded := strings.ToLower(strings.TrimSpace(string(v)))
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}
		out = append(out, folded)
	}
	return out
}

// HashFilterPairs computes the 32-hex-char MD5 digest of the sorted, stringified,
// non-empty key/value pairs. Nil values, blank strings and empty lists are dropped.
func HashFilterPairs(pairs map[string]any) string {
	keys := make([]string, 0, len(pairs))
	values := make(map[string]string, len(pairs))
	for k, v := range pairs {
		s, ok := stringifyFilterValue(v)
		if !ok {
			continue
		}
		keys = append(keys, k)
		values[k] = s
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(values[k])
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func stringifyFilterValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		trimmed := strings.TrimSpace(val)
		return trimmed, trimmed != ""
	case []string:
		return joinSorted(val)
	case StringArray:
		return joinSorted(val)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := stringifyFilterValue(item); ok {
				items = append(items, s)
			}
		}
		return joinSorted(items)
	case bool:
		return strconv.FormatBool(val), true
	case *bool:
		if val == nil {
			return "", false
		}
		return strconv.FormatBool(*val), true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case *float64:
		if val == nil {
			return "", false
		}
		return strconv.FormatFloat(*val, 'g', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	default:
		s := strings.TrimSpace(fmt.Sprint(val))
		return s, s != ""
	}
}

func joinSorted(items []string) (string, bool) {
	kept := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	if len(kept) == 0 {
		return "", false
	}
	sort.Strings(kept)
	return strings.Join(kept, ","), true
}

// FiltersFromDestination synthesizes a filter set describing a destination.
func FiltersFromDestination(d *Destination) FilterSet {
	family := d.FamilyFriendly
	visa := d.VisaRequired
	fs := FilterSet{
		Country:        d.Country,
		ActivityTypes:  append([]string(nil), d.ActivityTypes...),
		Vibes:          append([]string(nil), d.Vibes...),
		ComfortLevels:  append([]string(nil), d.ComfortLevels...),
		Languages:      append([]string(nil), d.Languages...),
		Tags:           append([]string(nil), d.Tags...),
		FamilyFriendly: &family,
		VisaRequired:   &visa,
	}
	if d.Climate != "" {
		fs.Climates = []Climate{d.Climate}
	}
	if d.Season != "" {
		fs.Seasons = []Season{d.Season}
	}
	fs.Normalize()
	return fs
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}

// Float returns a pointer to f.
func Float(f float64) *float64 {
	return &f
}
