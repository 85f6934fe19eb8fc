package model

import "time"

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

const (
	GenerationCompleted = "completed"
	GenerationFailed    = "failed"
)

// Profile is an account as seen by the API. TokenBalance is only populated
// when the viewer is the profile owner.
type Profile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username,omitempty"`
	DisplayName    string    `json:"display_name,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	FollowerCount  int64     `json:"follower_count"`
	FollowingCount int64     `json:"following_count"`
	TokenBalance   int64     `json:"token_balance,omitempty"`
	IsFollowing    bool      `json:"is_following,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AuthorInfo is the slice of a profile embedded in feed responses.
type AuthorInfo struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type Post struct {
	ID               string      `json:"id"`
	AuthorID         string      `json:"author_id"`
	Content          string      `json:"content"`
	Prompt           string      `json:"prompt,omitempty"`
	MediaURL         string      `json:"media_url,omitempty"`
	MediaType        MediaType   `json:"media_type,omitempty"`
	TokenCost        int64       `json:"token_cost"`
	IsAIGenerated    bool        `json:"is_ai_generated"`
	GenerationStatus string      `json:"generation_status,omitempty"`
	LikeCount        int64       `json:"like_count"`
	CommentCount     int64       `json:"comment_count"`
	CreatedAt        time.Time   `json:"created_at"`
	Author           *AuthorInfo `json:"author,omitempty"`
}

type GeneratePostRequest struct {
	Prompt    string    `json:"prompt"`
	MediaType MediaType `json:"media_type"`
	Content   string    `json:"content,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	// IdempotencyKey comes from the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

type GeneratePostResult struct {
	Post            *Post `json:"post"`
	TokensSpent     int64 `json:"tokens_spent"`
	RemainingTokens int64 `json:"remaining_tokens"`
}

type FeedTab string

const (
	FeedForYou    FeedTab = "for-you"
	FeedTrending  FeedTab = "trending"
	FeedFollowing FeedTab = "following"
	FeedRecent    FeedTab = "recent"
)

// ProfileUpdate carries the editable profile fields; nil means "leave as is".
type ProfileUpdate struct {
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}
