package domain

import (
	"strings"
	"time"
)

// InspirationPost is a user-authored travel story tied to a destination.
// Exactly one of DestinationID and PendingDestinationID is set.
type InspirationPost struct {
	ID                   uint                `gorm:"primaryKey" json:"id"`
	UserID               uint                `gorm:"not null;index:idx_posts_user" json:"user_id"`
	DestinationID        *uint               `gorm:"index:idx_posts_destination" json:"destination_id,omitempty"`
	Destination          *Destination        `gorm:"foreignKey:DestinationID;constraint:OnDelete:CASCADE" json:"destination,omitempty"`
	PendingDestinationID *uint               `json:"pending_destination_id,omitempty"`
	PendingDestination   *PendingDestination `gorm:"foreignKey:PendingDestinationID;constraint:OnDelete:SET NULL" json:"pending_destination,omitempty"`
	Description          string              `gorm:"type:text" json:"description"`
	Tags                 StringArray         `gorm:"type:text" json:"tags"`
	Vibes                StringArray         `gorm:"type:text" json:"vibes"`
	Reactions            []PostReaction      `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt            time.Time           `gorm:"index:idx_posts_created" json:"created_at"`
}

// TableName returns the database table name for InspirationPost.
func (InspirationPost) TableName() string {
	return "inspiration_posts"
}

// Validate enforces the destination xor pending-destination rule.
func (p *InspirationPost) Validate() error {
	hasDest := p.DestinationID != nil
	hasPending := p.PendingDestinationID != nil
	if hasDest == hasPending {
		return NewValidationError("post must reference exactly one of destination or pending destination")
	}
	return nil
}

// Country returns the country of the linked destination, if any.
func (p *InspirationPost) Country() string {
	if p.Destination != nil {
		return p.Destination.Country
	}
	if p.PendingDestination != nil {
		return p.PendingDestination.Country
	}
	return ""
}

// SearchText is the text compared against a user profile.
func (p *InspirationPost) SearchText() string {
	parts := append([]string{}, p.Tags...)
	parts = append(parts, p.Vibes...)
	parts = append(parts, p.Country(), p.Description)
	return joinNonEmpty(parts, " ")
}

// ReactionKind is a like or a save on a post.
type ReactionKind string

const (
	ReactionLike ReactionKind = "like"
	ReactionSave ReactionKind = "save"
)

// PostReaction records that a user liked or saved a post.
type PostReaction struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	PostID    uint         `gorm:"not null;uniqueIndex:idx_post_reactions_unique" json:"post_id"`
	UserID    uint         `gorm:"not null;uniqueIndex:idx_post_reactions_unique" json:"user_id"`
	Kind      ReactionKind `gorm:"type:text;not null;uniqueIndex:idx_post_reactions_unique" json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

// TableName returns the database table name for PostReaction.
func (PostReaction) TableName() string {
	return "post_reactions"
}

// PendingStatus is the moderation state of a proposed destination.
type PendingStatus string

const (
	PendingStatusPending  PendingStatus = "pending"
	PendingStatusApproved PendingStatus = "approved"
	PendingStatusRejected PendingStatus = "rejected"
)

// PendingDestination is a user-proposed destination awaiting moderation.
type PendingDestination struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	UserID      uint          `gorm:"not null" json:"user_id"`
	Name        string        `gorm:"type:text" json:"name"`
	Country     string        `gorm:"type:text" json:"country"`
	City        string        `gorm:"type:text" json:"city,omitempty"`
	Description string        `gorm:"type:text" json:"description"`
	Climate     Climate       `gorm:"type:text" json:"climate"`
	Season      Season        `gorm:"type:text" json:"season"`
	Tags        StringArray   `gorm:"type:text" json:"tags"`
	Vibes       StringArray   `gorm:"type:text" json:"vibes"`
	Status      PendingStatus `gorm:"type:text;default:pending;index" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// TableName returns the database table name for PendingDestination.
func (PendingDestination) TableName() string {
	return "pending_destinations"
}

// ApproveToDestination converts the proposal into a catalog destination.
// All descriptive fields must be filled in.
func (p *PendingDestination) ApproveToDestination() (*Destination, error) {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Country) == "" {
		missing = append(missing, "country")
	}
	if p.Climate == "" {
		missing = append(missing, "climate")
	}
	if p.Season == "" {
		missing = append(missing, "season")
	}
	if strings.TrimSpace(p.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return nil, NewValidationError("pending destination is missing: " + strings.Join(missing, ", "))
	}

	return &Destination{
		Name:        strings.TrimSpace(p.Name),
		Country:     strings.TrimSpace(p.Country),
		City:        strings.TrimSpace(p.City),
		Climate:     p.Climate,
		Season:      p.Season,
		Tags:        append(StringArray{}, p.Tags...),
		Vibes:       append(StringArray{}, p.Vibes...),
		Description: p.Description,
	}, nil
}

// Review is a user's rating of a destination.
type Review struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_reviews_user_destination" json:"user_id"`
	DestinationID uint      `gorm:"not null;uniqueIndex:idx_reviews_user_destination;index" json:"destination_id"`
	Rating        int       `gorm:"not null" json:"rating" validate:"required,min=1,max=5"`
	Text          string    `gorm:"type:text" json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for Review.
func (Review) TableName() string {
	return "reviews"
}

// RelevanceScore caches a relevance judgement for a (destination, filters hash) pair.
type RelevanceScore struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	DestinationID uint      `gorm:"not null;uniqueIndex:idx_relevance_destination_hash" json:"destination_id"`
	FiltersHash   string    `gorm:"type:char(32);not null;uniqueIndex:idx_relevance_destination_hash" json:"filters_hash"`
	Score         float64   `gorm:"not null" json:"score"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for RelevanceScore.
func (RelevanceScore) TableName() string {
	return "relevance_scores"
}
