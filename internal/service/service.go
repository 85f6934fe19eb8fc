package service

import (
	"context"

	"sparkfeed/internal/gateway"
	"sparkfeed/internal/model"
	"sparkfeed/internal/repository"
)

// PostService and ProfileService are what the transport layers (HTTP, NATS)
// depend on, never the concrete implementations.
type PostService interface {
	CreateGeneratedPost(ctx context.Context, accountID string, req model.GeneratePostRequest) (*model.GeneratePostResult, error)
	CreateTextPost(ctx context.Context, accountID, content string) (*model.Post, error)
	ListFeed(ctx context.Context, tab model.FeedTab, viewerID string, limit int) ([]*model.Post, error)
	ListByAuthor(ctx context.Context, authorID string, limit int) ([]*model.Post, error)
	SearchPosts(ctx context.Context, query string, limit int) ([]*model.Post, error)
	LikePost(ctx context.Context, accountID, postID string) error
	UnlikePost(ctx context.Context, accountID, postID string) error
}

type ProfileService interface {
	EnsureProfile(ctx context.Context, accountID string) error
	GetProfile(ctx context.Context, viewerID, accountID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, accountID string, update model.ProfileUpdate) (*model.Profile, error)
	Follow(ctx context.Context, followerID, followingID string) error
	Unfollow(ctx context.Context, followerID, followingID string) error
	GetBalance(ctx context.Context, accountID string) (int64, error)
	Recharge(ctx context.Context, accountID string, amount int64) error
}

// Dependency interfaces, satisfied by the repository and gateway packages.

type Ledger interface {
	Spend(ctx context.Context, accountID, idempotencyKey string, amount int64, reason string) (*repository.LedgerResult, error)
	Credit(ctx context.Context, accountID, idempotencyKey string, amount int64, reason string) (*repository.LedgerResult, error)
	Balance(ctx context.Context, accountID string) (int64, error)
	InitBalance(ctx context.Context, accountID string, amount int64) error
}

type Generator interface {
	Generate(ctx context.Context, req gateway.GenerationRequest) (*gateway.GeneratedMedia, error)
}

type PostStore interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	ListRecent(ctx context.Context, limit int) ([]*model.Post, error)
	ListTrending(ctx context.Context, limit int) ([]*model.Post, error)
	ListFollowing(ctx context.Context, viewerID string, limit int) ([]*model.Post, error)
	ListByAuthor(ctx context.Context, authorID string, limit int) ([]*model.Post, error)
	Search(ctx context.Context, query string, limit int) ([]*model.Post, error)
	Like(ctx context.Context, accountID, postID string) error
	Unlike(ctx context.Context, accountID, postID string) error
}

type ProfileStore interface {
	Ensure(ctx context.Context, accountID string) (bool, error)
	Get(ctx context.Context, accountID string) (*model.Profile, error)
	Update(ctx context.Context, accountID string, update model.ProfileUpdate) (*model.Profile, error)
	Follow(ctx context.Context, followerID, followingID string) error
	Unfollow(ctx context.Context, followerID, followingID string) error
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
}
