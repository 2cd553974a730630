package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/repository"
)

// profileWeights is the static contribution of each interaction kind.
var profileWeights = map[domain.InteractionKind]float64{
	domain.InteractionSavePost: 3.0,
	domain.InteractionLikePost: 2.0,
	domain.InteractionView:     0.5,
	domain.InteractionViewPost: 0.5,
	domain.InteractionFavorite: 2.5,
	domain.InteractionReview:   2.0,
	domain.InteractionSearch:   1.5,
}

// Profile sizes: the short profile gates collaborative candidates, the long
// one drives content ranking.
const (
	ProfileTopNShort = 5
	ProfileTopNLong  = 10

	defaultProfileHistory = 200
)

// WeightedToken is a profile token with its cumulative weight.
type WeightedToken struct {
	Token  string  `json:"token"`
	Weight float64 `json:"weight"`
}

// Profile is a user's inferred preferences, heaviest token first.
type Profile struct {
	Tokens []WeightedToken `json:"tokens"`
}

// IsEmpty reports a cold-start profile.
func (p Profile) IsEmpty() bool {
	return len(p.Tokens) == 0
}

// Top returns the n heaviest tokens.
func (p Profile) Top(n int) Profile {
	if n <= 0 || len(p.Tokens) <= n {
		return p
	}
	return Profile{Tokens: p.Tokens[:n]}
}

// Text joins the tokens for text similarity.
func (p Profile) Text() string {
	parts := make([]string, len(p.Tokens))
	for i, t := range p.Tokens {
		parts[i] = t.Token
	}
	return strings.Join(parts, " ")
}

// Contains reports whether token is in the profile, ignoring case.
func (p Profile) Contains(token string) bool {
	for _, t := range p.Tokens {
		if strings.EqualFold(t.Token, token) {
			return true
		}
	}
	return false
}

// Overlap counts the distinct values also present in the profile.
func (p Profile) Overlap(values []string) int {
	seen := make(map[string]struct{}, len(values))
	n := 0
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if p.Contains(v) {
			n++
		}
	}
	return n
}

// ProfileBuilder synthesizes profiles from the interaction log.
type ProfileBuilder struct {
	interactions InteractionLog
	history      int
}

// NewProfileBuilder creates a new ProfileBuilder reading at most history
// recent interactions per user (0 means the default).
func NewProfileBuilder(interactions InteractionLog, history int) *ProfileBuilder {
	if history <= 0 {
		history = defaultProfileHistory
	}
	return &ProfileBuilder{interactions: interactions, history: history}
}

// Build returns the top-N profile of a user. No history yields an empty profile.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: acting user.
//   - topN: number of tokens to keep.
// Returns:
//   - Profile: weighted tokens, heaviest first.
//   - error: non-nil if the interaction query fails.
func (b *ProfileBuilder) Build(ctx context.Context, userID uint, topN int) (Profile, error) {
	rows, err := b.interactions.Query(ctx, repository.InteractionQuery{UserID: &userID, Limit: b.history})
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load profile history: %w", err)
	}
	return BuildProfile(rows, topN), nil
}

// BuildProfile sums kind weights per token across interactions and keeps the
// top-N tokens (ties by token ascending). A token counts once per interaction.
func BuildProfile(interactions []domain.UserInteraction, topN int) Profile {
	weights := make(map[string]float64)
	display := make(map[string]string)

	for i := range interactions {
		in := &interactions[i]
		w, ok := profileWeights[in.Kind]
		if !ok {
			continue
		}
		for key, token := range interactionTokens(in) {
			weights[key] += w
			if _, seen := display[key]; !seen {
				display[key] = token
			}
		}
	}

	tokens := make([]WeightedToken, 0, len(weights))
	for key, w := range weights {
		tokens = append(tokens, WeightedToken{Token: display[key], Weight: w})
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Weight != tokens[j].Weight {
			return tokens[i].Weight > tokens[j].Weight
		}
		return strings.ToLower(tokens[i].Token) < strings.ToLower(tokens[j].Token)
	})
	if topN > 0 && len(tokens) > topN {
		tokens = tokens[:topN]
	}
	if len(tokens) == 0 {
		return Profile{}
	}
	return Profile{Tokens: tokens}
}

// interactionTokens returns the distinct tokens of one interaction keyed by
// their lowercase form.
func interactionTokens(in *domain.UserInteraction) map[string]string {
	out := make(map[string]string)
	add := func(values ...string) {
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			key := strings.ToLower(v)
			if _, ok := out[key]; !ok {
				out[key] = v
			}
		}
	}
	addDestination := func(d *domain.Destination) {
		if d == nil {
			return
		}
		add(d.Tags...)
		add(d.Vibes...)
		add(d.Country, string(d.Climate))
	}

	addDestination(in.Destination)

	if in.Post != nil {
		add(in.Post.Tags...)
		add(in.Post.Vibes...)
		addDestination(in.Post.Destination)
	}
	if snap, err := in.PostTags(); err == nil && snap != nil {
		add(snap.Tags...)
		add(snap.Vibes...)
	}
	if fs, err := in.Filters(); err == nil && fs != nil {
		add(fs.Tags...)
		add(fs.Vibes...)
		add(fs.Country)
		for _, c := range fs.Climates {
			add(string(c))
		}
	}
	return out
}
