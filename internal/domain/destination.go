package domain

import (
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Climate is the declared climate of a destination.
type Climate string

const (
	ClimateHotDry       Climate = "Hot and dry"
	ClimateHotHumid     Climate = "Hot and humid"
	ClimateWarm         Climate = "Warm and temperate"
	ClimateCool         Climate = "Cool and fresh"
	ClimateOvercastRain Climate = "Overcast and rainy"
	ClimateColdSnowy    Climate = "Cold and snowy"
)

// Climates lists every known climate value.
var Climates = []Climate{
	ClimateHotDry, ClimateHotHumid, ClimateWarm, ClimateCool, ClimateOvercastRain, ClimateColdSnowy,
}

// Season is the best travel season of a destination.
type Season string

const (
	SeasonWinter Season = "Winter"
	SeasonSpring Season = "Spring"
	SeasonSummer Season = "Summer"
	SeasonAutumn Season = "Autumn"
)

// Seasons lists every season in calendar order.
var Seasons = []Season{SeasonWinter, SeasonSpring, SeasonSummer, SeasonAutumn}

// Opposite returns the season half a year away.
func (s Season) Opposite() Season {
	switch s {
	case SeasonWinter:
		return SeasonSummer
	case SeasonSummer:
		return SeasonWinter
	case SeasonSpring:
		return SeasonAutumn
	case SeasonAutumn:
		return SeasonSpring
	}
	return ""
}

// SeasonForMonth maps a calendar month to its (northern hemisphere) season.
func SeasonForMonth(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

// Fixed vocabularies for the multi-valued destination attributes.
var (
	ActivityTypes = []string{
		"Beach holiday", "Sightseeing", "Active leisure", "Gastronomy", "Shopping",
		"Wellness", "Skiing", "Hiking", "Diving", "Nightlife",
	}
	Languages = []string{
		"English", "Spanish", "French", "German", "Italian", "Russian", "Chinese", "Arabic", "Japanese", "Turkish",
	}
	Tags = []string{
		"Romance", "Nature", "Active leisure", "History", "Culture", "Mountains", "Sea",
		"Islands", "Architecture", "Food", "Adventure", "Relax",
	}
	Vibes = []string{
		"Calm", "Energetic", "Romantic", "Exotic", "Cozy", "Luxurious", "Authentic", "Party",
	}
	ComfortLevels = []string{
		"Budget", "Standard", "Comfort", "Luxury",
	}
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	raw, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		raw = []byte(str)
	}
	return json.Unmarshal(raw, a)
}

// Contains reports whether the array holds v, ignoring case.
func (a StringArray) Contains(v string) bool {
	for _, item := range a {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// Vector is a dense float32 embedding stored as a JSON array.
type Vector []float32

// Value implements the driver.Valuer interface.
func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface.
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	var raw []byte
	switch val := value.(type) {
	case []byte:
		raw = val
	case string:
		raw = []byte(val)
	default:
		return errors.New("failed to scan Vector")
	}
	if len(raw) == 0 {
		*v = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]float32)(v))
}

// Destination is a travel destination in the catalog.
type Destination struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	Name           string      `gorm:"type:text;not null;uniqueIndex:idx_destinations_name_country" json:"name"`
	Country        string      `gorm:"type:text;not null;index:idx_destinations_country;uniqueIndex:idx_destinations_name_country" json:"country"`
	City           string      `gorm:"type:text" json:"city,omitempty"`
	Climate        Climate     `gorm:"type:text" json:"climate"`
	Season         Season      `gorm:"type:text;index:idx_destinations_season" json:"season"`
	ActivityTypes  StringArray `gorm:"type:text" json:"activity_types"`
	Languages      StringArray `gorm:"type:text" json:"languages"`
	Tags           StringArray `gorm:"type:text" json:"tags"`
	Vibes          StringArray `gorm:"type:text" json:"vibes"`
	ComfortLevels  StringArray `gorm:"type:text" json:"comfort_levels"`
	FamilyFriendly bool        `json:"family_friendly"`
	VisaRequired   bool        `json:"visa_required"`
	IsPopular      bool        `gorm:"index:idx_destinations_popular" json:"is_popular"`
	BudgetMin      *float64    `json:"budget_min,omitempty"`
	BudgetMax      *float64    `json:"budget_max,omitempty"`
	Description    string      `gorm:"type:text" json:"description"`
	Embedding      Vector      `gorm:"type:text" json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Destination.
func (Destination) TableName() string {
	return "destinations"
}

// HasEmbedding reports whether a precomputed embedding is attached.
func (d *Destination) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// EmbeddingText is the text handed to the embedding provider for this destination.
func (d *Destination) EmbeddingText() string {
	parts := []string{d.Country, string(d.Season)}
	parts = append(parts, d.ActivityTypes...)
	parts = append(parts, d.Tags...)
	parts = append(parts, d.Description, d.Name)
	return joinNonEmpty(parts, " ")
}

// SearchText is the text used for corpus-local TF-IDF similarity.
func (d *Destination) SearchText() string {
	parts := []string{d.Name, d.Country, d.City, string(d.Climate), string(d.Season)}
	parts = append(parts, d.ActivityTypes...)
	parts = append(parts, d.Tags...)
	parts = append(parts, d.Vibes...)
	parts = append(parts, d.ComfortLevels...)
	parts = append(parts, d.Description)
	return joinNonEmpty(parts, " ")
}

func joinNonEmpty(parts []string, sep string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// ScoredDestination is a destination with a ranking score.
type ScoredDestination struct {
	Destination     Destination `json:"destination"`
	Score           float64     `json:"score"`
	ScorePercentage float64     `json:"score_percentage"`
	IsPopular       bool        `json:"is_popular"`
	IsRecommended   bool        `json:"is_recommended"`
	IsExactMatch    bool        `json:"is_exact_match"`
	Rating          float64     `json:"rating"`
	AIRelevance     *float64    `json:"ai_relevance,omitempty"`
}
