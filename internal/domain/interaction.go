package domain

import (
	"time"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

// InteractionKind is the type of a recorded user action.
type InteractionKind string

const (
	InteractionView     InteractionKind = "view"
	InteractionFavorite InteractionKind = "favorite"
	InteractionReview   InteractionKind = "review"
	InteractionSearch   InteractionKind = "search"
	InteractionViewPost InteractionKind = "view_post"
	InteractionSavePost InteractionKind = "save_post"
	InteractionLikePost InteractionKind = "like_post"
)

// Valid reports whether k is a known interaction kind.
func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionView, InteractionFavorite, InteractionReview, InteractionSearch,
		InteractionViewPost, InteractionSavePost, InteractionLikePost:
		return true
	}
	return false
}

// IsPostKind reports whether the kind targets an inspiration post.
func (k InteractionKind) IsPostKind() bool {
	return k == InteractionViewPost || k == InteractionSavePost || k == InteractionLikePost
}

// PostSnapshot captures the tags and vibes of a post at interaction time.
type PostSnapshot struct {
	Tags  []string `json:"tags,omitempty"`
	Vibes []string `json:"vibes,omitempty"`
}

// UserInteraction is an immutable record of a user action.
type UserInteraction struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UserID        uint             `gorm:"not null;index:idx_interactions_user_created,priority:1" json:"user_id"`
	DestinationID *uint            `gorm:"index:idx_interactions_destination" json:"destination_id,omitempty"`
	Destination   *Destination     `gorm:"foreignKey:DestinationID;constraint:OnDelete:CASCADE" json:"destination,omitempty"`
	PostID        *uint            `gorm:"index:idx_interactions_post" json:"post_id,omitempty"`
	Post          *InspirationPost `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"post,omitempty"`
	Kind          InteractionKind  `gorm:"type:text;not null;index:idx_interactions_kind" json:"kind"`
	SearchFilters datatypes.JSON   `json:"search_filters,omitempty"`
	PostFilters   datatypes.JSON   `json:"post_filters,omitempty"`
	CreatedAt     time.Time        `gorm:"index:idx_interactions_user_created,priority:2;index:idx_interactions_created" json:"created_at"`
}

// TableName returns the database table name for UserInteraction.
func (UserInteraction) TableName() string {
	return "user_interactions"
}

// Filters decodes the search filter snapshot. A missing snapshot yields nil.
func (i *UserInteraction) Filters() (*FilterSet, error) {
	if len(i.SearchFilters) == 0 || string(i.SearchFilters) == "null" {
		return nil, nil
	}
	var fs FilterSet
	if err := json.Unmarshal(i.SearchFilters, &fs); err != nil {
		return nil, err
	}
	fs.Normalize()
	return &fs, nil
}

// SetFilters stores fs as the search filter snapshot.
func (i *UserInteraction) SetFilters(fs *FilterSet) error {
	if fs == nil {
		i.SearchFilters = nil
		return nil
	}
	raw, err := json.Marshal(fs)
	if err != nil {
		return err
	}
	i.SearchFilters = datatypes.JSON(raw)
	return nil
}

// PostTags decodes the post tag/vibe snapshot.
func (i *UserInteraction) PostTags() (*PostSnapshot, error) {
	if len(i.PostFilters) == 0 || string(i.PostFilters) == "null" {
		return nil, nil
	}
	var snap PostSnapshot
	if err := json.Unmarshal(i.PostFilters, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SetPostTags stores the tag/vibe snapshot of a post.
func (i *UserInteraction) SetPostTags(snap *PostSnapshot) error {
	if snap == nil {
		i.PostFilters = nil
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	i.PostFilters = datatypes.JSON(raw)
	return nil
}
