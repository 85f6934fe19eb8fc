package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkfeed/internal/auth"
	"sparkfeed/internal/model"
	"sparkfeed/internal/service"
)

type mockPostService struct {
	generateResult *model.GeneratePostResult
	generateErr    error
	textPost       *model.Post
	textErr        error
	feedPosts      []*model.Post
	likeErr        error

	lastAccountID string
	lastRequest   model.GeneratePostRequest
}

func (m *mockPostService) CreateGeneratedPost(ctx context.Context, accountID string, req model.GeneratePostRequest) (*model.GeneratePostResult, error) {
	m.lastAccountID = accountID
	m.lastRequest = req
	return m.generateResult, m.generateErr
}
func (m *mockPostService) CreateTextPost(ctx context.Context, accountID, content string) (*model.Post, error) {
	m.lastAccountID = accountID
	return m.textPost, m.textErr
}
func (m *mockPostService) ListFeed(ctx context.Context, tab model.FeedTab, viewerID string, limit int) ([]*model.Post, error) {
	return m.feedPosts, nil
}
func (m *mockPostService) ListByAuthor(ctx context.Context, authorID string, limit int) ([]*model.Post, error) {
	return m.feedPosts, nil
}
func (m *mockPostService) SearchPosts(ctx context.Context, query string, limit int) ([]*model.Post, error) {
	return m.feedPosts, nil
}
func (m *mockPostService) LikePost(ctx context.Context, accountID, postID string) error {
	return m.likeErr
}
func (m *mockPostService) UnlikePost(ctx context.Context, accountID, postID string) error {
	return m.likeErr
}

type mockProfileService struct {
	profile     *model.Profile
	balance     int64
	ensureErr   error
	followErr   error
	rechargeErr error
}

func (m *mockProfileService) EnsureProfile(ctx context.Context, accountID string) error {
	return m.ensureErr
}
func (m *mockProfileService) GetProfile(ctx context.Context, viewerID, accountID string) (*model.Profile, error) {
	return m.profile, nil
}
func (m *mockProfileService) UpdateProfile(ctx context.Context, accountID string, update model.ProfileUpdate) (*model.Profile, error) {
	return m.profile, nil
}
func (m *mockProfileService) Follow(ctx context.Context, followerID, followingID string) error {
	return m.followErr
}
func (m *mockProfileService) Unfollow(ctx context.Context, followerID, followingID string) error {
	return m.followErr
}
func (m *mockProfileService) GetBalance(ctx context.Context, accountID string) (int64, error) {
	return m.balance, nil
}
func (m *mockProfileService) Recharge(ctx context.Context, accountID string, amount int64) error {
	return m.rechargeErr
}

func newTestMux(posts service.PostService, profiles service.ProfileService) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(posts, profiles, true).Register(mux)
	return mux
}

func authed(req *http.Request, accountID string) *http.Request {
	return req.WithContext(auth.WithAccountID(req.Context(), accountID))
}

func TestGeneratePost_Success(t *testing.T) {
	posts := &mockPostService{
		generateResult: &model.GeneratePostResult{
			Post:            &model.Post{ID: "p1", TokenCost: 10, IsAIGenerated: true},
			TokensSpent:     10,
			RemainingTokens: 40,
		},
	}
	mux := newTestMux(posts, &mockProfileService{})

	body, _ := json.Marshal(map[string]string{
		"prompt":     "a magical forest at sunset",
		"media_type": "image",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/posts/generate", bytes.NewReader(body))
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authed(req, "alice"))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success         bool        `json:"success"`
		Post            *model.Post `json:"post"`
		TokensSpent     int64       `json:"tokens_spent"`
		RemainingTokens int64       `json:"remaining_tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(10), resp.TokensSpent)
	assert.Equal(t, int64(40), resp.RemainingTokens)
	assert.Equal(t, "p1", resp.Post.ID)

	assert.Equal(t, "alice", posts.lastAccountID)
	assert.Equal(t, "key-1", posts.lastRequest.IdempotencyKey)
}

func TestGeneratePost_Unauthenticated(t *testing.T) {
	mux := newTestMux(&mockPostService{}, &mockProfileService{})

	body, _ := json.Marshal(map[string]string{"prompt": "a magical forest", "media_type": "image"})
	req := httptest.NewRequest(http.MethodPost, "/api/posts/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req) // no account in context

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGeneratePost_InsufficientTokens(t *testing.T) {
	posts := &mockPostService{
		generateErr: &service.InsufficientTokensError{Required: 10, Balance: 5},
	}
	mux := newTestMux(posts, &mockProfileService{})

	body, _ := json.Marshal(map[string]string{"prompt": "a magical forest at sunset", "media_type": "image"})
	req := httptest.NewRequest(http.MethodPost, "/api/posts/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authed(req, "alice"))

	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var resp struct {
		Error    string `json:"error"`
		Required int64  `json:"required"`
		Balance  int64  `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_tokens", resp.Error)
	assert.Equal(t, int64(10), resp.Required)
	assert.Equal(t, int64(5), resp.Balance)
}

func TestGeneratePost_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid input", service.ErrInvalidInput, http.StatusBadRequest},
		{"unsupported media", service.ErrUnsupportedMedia, http.StatusBadRequest},
		{"duplicate", service.ErrDuplicateRequest, http.StatusConflict},
		{"generation failed", service.ErrGenerationFailed, http.StatusBadGateway},
		{"persistence failed", service.ErrPersistenceFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := newTestMux(&mockPostService{generateErr: tc.err}, &mockProfileService{})

			body, _ := json.Marshal(map[string]string{"prompt": "a magical forest at sunset", "media_type": "image"})
			req := httptest.NewRequest(http.MethodPost, "/api/posts/generate", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, authed(req, "alice"))

			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestCreateTextPost(t *testing.T) {
	posts := &mockPostService{textPost: &model.Post{ID: "p2", Content: "hello"}}
	mux := newTestMux(posts, &mockProfileService{})

	body, _ := json.Marshal(map[string]string{"content": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/posts", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authed(req, "alice"))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestFeed_Public(t *testing.T) {
	posts := &mockPostService{feedPosts: []*model.Post{{ID: "p1"}, {ID: "p2"}}}
	mux := newTestMux(posts, &mockProfileService{})

	req := httptest.NewRequest(http.MethodGet, "/api/feed?tab=recent", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req) // anonymous

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Posts []*model.Post `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Posts, 2)
}

func TestFeed_EmptyIsArray(t *testing.T) {
	mux := newTestMux(&mockPostService{}, &mockProfileService{})

	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"posts":[]}`, rec.Body.String())
}

// The pricing endpoint must expose exactly the table the charge step uses.
func TestPricingEndpoint(t *testing.T) {
	mux := newTestMux(&mockPostService{}, &mockProfileService{})

	req := httptest.NewRequest(http.MethodGet, "/api/pricing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Pricing      map[model.MediaType]int64 `json:"pricing"`
		VideoEnabled bool                      `json:"video_enabled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.Pricing(), resp.Pricing)
	assert.True(t, resp.VideoEnabled)
}

func TestLikePost(t *testing.T) {
	mux := newTestMux(&mockPostService{}, &mockProfileService{})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/p1/like", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authed(req, "alice"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGetBalance(t *testing.T) {
	mux := newTestMux(&mockPostService{}, &mockProfileService{balance: 42})

	req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authed(req, "alice"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"balance":42}`, rec.Body.String())
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	var hits int
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))

	// Burst of 1: the first mutating request passes, the second is rejected.
	req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
	req = authed(req, "alice")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Reads are never limited.
	getReq := authed(httptest.NewRequest(http.MethodGet, "/api/feed", nil), "alice")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, getReq)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 2, hits)
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
