package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"sparkfeed/internal/auth"
	"sparkfeed/internal/model"
	"sparkfeed/internal/service"
)

type Handler struct {
	posts        service.PostService
	profiles     service.ProfileService
	videoEnabled bool
}

func NewHandler(posts service.PostService, profiles service.ProfileService, videoEnabled bool) *Handler {
	return &Handler{posts: posts, profiles: profiles, videoEnabled: videoEnabled}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/pricing", h.Pricing)
	mux.HandleFunc("GET /api/feed", h.Feed)
	mux.HandleFunc("GET /api/posts/search", h.Search)
	mux.HandleFunc("GET /api/profiles/{id}", h.GetProfile)
	mux.HandleFunc("GET /api/profiles/{id}/posts", h.AuthorPosts)

	protected := func(fn http.HandlerFunc) http.Handler {
		return auth.RequireAuth(h.ensureProfile(fn))
	}
	mux.Handle("POST /api/posts/generate", protected(h.GeneratePost))
	mux.Handle("POST /api/posts", protected(h.CreateTextPost))
	mux.Handle("POST /api/posts/{id}/like", protected(h.LikePost))
	mux.Handle("DELETE /api/posts/{id}/like", protected(h.UnlikePost))
	mux.Handle("PATCH /api/profiles/me", protected(h.UpdateProfile))
	mux.Handle("POST /api/profiles/{id}/follow", protected(h.Follow))
	mux.Handle("DELETE /api/profiles/{id}/follow", protected(h.Unfollow))
	mux.Handle("GET /api/balance", protected(h.GetBalance))
	mux.Handle("POST /api/recharge", protected(h.Recharge))
}

// ensureProfile provisions the profile row (and signup bonus) on an
// account's first authenticated request.
func (h *Handler) ensureProfile(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accountID := auth.AccountID(r.Context()); accountID != "" {
			if err := h.profiles.EnsureProfile(r.Context(), accountID); err != nil {
				h.respondServiceError(w, err)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Pricing exposes the charge table so UI cost previews can never drift from
// what the handler actually debits.
func (h *Handler) Pricing(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"pricing":       model.Pricing(),
		"video_enabled": h.videoEnabled,
	})
}

func (h *Handler) GeneratePost(w http.ResponseWriter, r *http.Request) {
	var req model.GeneratePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	result, err := h.posts.CreateGeneratedPost(r.Context(), auth.AccountID(r.Context()), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"post":             result.Post,
		"tokens_spent":     result.TokensSpent,
		"remaining_tokens": result.RemainingTokens,
	})
}

func (h *Handler) CreateTextPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	post, err := h.posts.CreateTextPost(r.Context(), auth.AccountID(r.Context()), req.Content)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"post":    post,
	})
}

func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	tab := model.FeedTab(r.URL.Query().Get("tab"))
	posts, err := h.posts.ListFeed(r.Context(), tab, auth.AccountID(r.Context()), queryLimit(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondPosts(w, posts)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.SearchPosts(r.Context(), r.URL.Query().Get("q"), queryLimit(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondPosts(w, posts)
}

func (h *Handler) AuthorPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListByAuthor(r.Context(), r.PathValue("id"), queryLimit(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondPosts(w, posts)
}

func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request) {
	err := h.posts.LikePost(r.Context(), auth.AccountID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	err := h.posts.UnlikePost(r.Context(), auth.AccountID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetProfile(r.Context(), auth.AccountID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, profile)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update model.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	profile, err := h.profiles.UpdateProfile(r.Context(), auth.AccountID(r.Context()), update)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, profile)
}

func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	err := h.profiles.Follow(r.Context(), auth.AccountID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	err := h.profiles.Unfollow(r.Context(), auth.AccountID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.profiles.GetBalance(r.Context(), auth.AccountID(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (h *Handler) Recharge(w http.ResponseWriter, r *http.Request) {
	var req model.RechargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := h.profiles.Recharge(r.Context(), auth.AccountID(r.Context()), req.Amount); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) respondPosts(w http.ResponseWriter, posts []*model.Post) {
	if posts == nil {
		posts = []*model.Post{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

// respondServiceError maps the service error taxonomy onto status classes.
// Insufficient balance gets its own payload so the UI can show the
// required/available numbers.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var insufficient *service.InsufficientTokensError
	switch {
	case errors.As(err, &insufficient):
		h.respondJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":    "insufficient_tokens",
			"required": insufficient.Required,
			"balance":  insufficient.Balance,
		})
	case errors.Is(err, service.ErrUnauthenticated):
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrUnsupportedMedia):
		h.respondError(w, http.StatusBadRequest, "unsupported_media")
	case errors.Is(err, service.ErrInvalidInput):
		h.respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "invalid_input",
			"message": err.Error(),
		})
	case errors.Is(err, service.ErrDuplicateRequest):
		h.respondError(w, http.StatusConflict, "duplicate_request")
	case errors.Is(err, service.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, service.ErrGenerationFailed):
		h.respondError(w, http.StatusBadGateway, "generation_failed")
	case errors.Is(err, service.ErrPersistenceFailed):
		h.respondError(w, http.StatusInternalServerError, "persistence_failed")
	default:
		slog.Error("unhandled service error", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal_error")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}
