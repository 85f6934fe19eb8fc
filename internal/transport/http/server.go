package http

import (
	"context"
	"net/http"
	"time"

	"sparkfeed/internal/auth"
	"sparkfeed/internal/service"
)

type Server struct {
	srv *http.Server
}

func NewServer(addr string, posts service.PostService, profiles service.ProfileService,
	verifier *auth.Verifier, limiter *RateLimiter, videoEnabled bool) *Server {

	mux := http.NewServeMux()
	h := NewHandler(posts, profiles, videoEnabled)
	h.Register(mux)

	// auth runs first so the rate limiter can key by account.
	var handler http.Handler = mux
	handler = limiter.Middleware(handler)
	handler = verifier.Middleware(handler)

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	return s.srv.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
