package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"sparkfeed/internal/gateway"
	"sparkfeed/internal/model"
	"sparkfeed/internal/repository"
)

const (
	promptMinLen  = 10
	promptMaxLen  = 1000
	captionMaxLen = 5000

	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

// Posts orchestrates post creation. The paid path runs
// validate -> atomic debit -> generate -> persist; the debit is the single
// point of no return.
type Posts struct {
	ledger          Ledger
	generator       Generator
	store           PostStore
	videoEnabled    bool
	refundOnFailure bool
}

func NewPosts(ledger Ledger, generator Generator, store PostStore, videoEnabled, refundOnFailure bool) *Posts {
	return &Posts{
		ledger:          ledger,
		generator:       generator,
		store:           store,
		videoEnabled:    videoEnabled,
		refundOnFailure: refundOnFailure,
	}
}

func (s *Posts) CreateGeneratedPost(ctx context.Context, accountID string, req model.GeneratePostRequest) (*model.GeneratePostResult, error) {
	if accountID == "" {
		return nil, ErrUnauthenticated
	}

	// Validation must run before anything that can charge the account.
	promptLen := utf8.RuneCountInString(req.Prompt)
	if promptLen < promptMinLen || promptLen > promptMaxLen {
		return nil, fmt.Errorf("%w: prompt must be %d-%d characters", ErrInvalidInput, promptMinLen, promptMaxLen)
	}
	if utf8.RuneCountInString(req.Content) > captionMaxLen {
		return nil, fmt.Errorf("%w: caption must be at most %d characters", ErrInvalidInput, captionMaxLen)
	}
	cost, known := model.TokenCost(req.MediaType)
	if !known {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMedia, req.MediaType)
	}
	if req.MediaType == model.MediaVideo && !s.videoEnabled {
		return nil, fmt.Errorf("%w: video generation is currently disabled", ErrUnsupportedMedia)
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	// Single atomic conditional decrement. Never read-compare-write here.
	spendRes, err := s.ledger.Spend(ctx, accountID, idempotencyKey, cost, "generation:"+string(req.MediaType))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficient):
			var observed int64
			if spendRes != nil {
				observed = spendRes.Balance
			}
			return nil, &InsufficientTokensError{Required: cost, Balance: observed}
		case errors.Is(err, repository.ErrAlreadyProcessed):
			return nil, fmt.Errorf("%w: idempotency key already used", ErrDuplicateRequest)
		case errors.Is(err, repository.ErrNotFoundInDB):
			return nil, ErrUnauthenticated
		default:
			return nil, fmt.Errorf("ledger spend: %w", err)
		}
	}
	remaining := spendRes.Balance

	media, err := s.generator.Generate(ctx, gateway.GenerationRequest{
		Prompt:    req.Prompt,
		MediaType: req.MediaType,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		s.settleFailure(ctx, accountID, idempotencyKey, cost, "generation", err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	content := req.Content
	if content == "" {
		content = fmt.Sprintf("Generated with AI: %q", req.Prompt)
	}

	post := &model.Post{
		ID:               uuid.NewString(),
		AuthorID:         accountID,
		Content:          content,
		Prompt:           req.Prompt,
		MediaURL:         media.URL,
		MediaType:        req.MediaType,
		TokenCost:        cost,
		IsAIGenerated:    true,
		GenerationStatus: model.GenerationCompleted,
	}
	if err := s.store.Create(ctx, post); err != nil {
		s.settleFailure(ctx, accountID, idempotencyKey, cost, "persistence", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	return &model.GeneratePostResult{
		Post:            post,
		TokensSpent:     cost,
		RemainingTokens: remaining,
	}, nil
}

// settleFailure handles the charged-but-unfulfilled state: the account was
// debited but no post exists. Logged distinctly from validation rejections;
// when refunds are enabled the cost is credited back.
func (s *Posts) settleFailure(ctx context.Context, accountID, idempotencyKey string, cost int64, stage string, cause error) {
	slog.Error("post creation failed after debit",
		"stage", stage,
		"account_id", accountID,
		"key", idempotencyKey,
		"cost", cost,
		"refund", s.refundOnFailure,
		"error", cause,
	)
	if !s.refundOnFailure {
		return
	}
	if _, err := s.ledger.Credit(ctx, accountID, idempotencyKey+":refund", cost, "refund:"+stage); err != nil {
		slog.Error("refund failed",
			"account_id", accountID,
			"key", idempotencyKey,
			"cost", cost,
			"error", err,
		)
	}
}

func (s *Posts) CreateTextPost(ctx context.Context, accountID, content string) (*model.Post, error) {
	if accountID == "" {
		return nil, ErrUnauthenticated
	}
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > captionMaxLen {
		return nil, fmt.Errorf("%w: content must be at most %d characters", ErrInvalidInput, captionMaxLen)
	}

	post := &model.Post{
		ID:       uuid.NewString(),
		AuthorID: accountID,
		Content:  content,
	}
	if err := s.store.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	return post, nil
}

func (s *Posts) ListFeed(ctx context.Context, tab model.FeedTab, viewerID string, limit int) ([]*model.Post, error) {
	limit = clampLimit(limit)
	switch tab {
	case model.FeedTrending:
		return s.store.ListTrending(ctx, limit)
	case model.FeedFollowing:
		if viewerID == "" {
			return nil, ErrUnauthenticated
		}
		return s.store.ListFollowing(ctx, viewerID, limit)
	case model.FeedRecent, model.FeedForYou, "":
		return s.store.ListRecent(ctx, limit)
	default:
		return nil, fmt.Errorf("%w: unknown feed tab %q", ErrInvalidInput, tab)
	}
}

func (s *Posts) ListByAuthor(ctx context.Context, authorID string, limit int) ([]*model.Post, error) {
	if authorID == "" {
		return nil, fmt.Errorf("%w: author id is required", ErrInvalidInput)
	}
	return s.store.ListByAuthor(ctx, authorID, clampLimit(limit))
}

func (s *Posts) SearchPosts(ctx context.Context, query string, limit int) ([]*model.Post, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidInput)
	}
	return s.store.Search(ctx, query, clampLimit(limit))
}

func (s *Posts) LikePost(ctx context.Context, accountID, postID string) error {
	if accountID == "" {
		return ErrUnauthenticated
	}
	if _, err := s.store.GetByID(ctx, postID); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return fmt.Errorf("%w: post %s", ErrNotFound, postID)
		}
		return err
	}
	return s.store.Like(ctx, accountID, postID)
}

func (s *Posts) UnlikePost(ctx context.Context, accountID, postID string) error {
	if accountID == "" {
		return ErrUnauthenticated
	}
	return s.store.Unlike(ctx, accountID, postID)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultFeedLimit
	}
	if limit > maxFeedLimit {
		return maxFeedLimit
	}
	return limit
}
