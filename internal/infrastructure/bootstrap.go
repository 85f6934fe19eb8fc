package infrastructure

import (
	"context"

	"sparkfeed/internal/auth"
	"sparkfeed/internal/config"
	"sparkfeed/internal/gateway"
	"sparkfeed/internal/repository"
	"sparkfeed/internal/service"
	transportHTTP "sparkfeed/internal/transport/http"
	transportNATS "sparkfeed/internal/transport/nats"
	"sparkfeed/internal/worker"
)

// Bootstrap initialises all dependencies from config and wires up the
// application. Returns the App, a cleanup function, or an error.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	db, err := connectPostgres(cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	rdb, err := connectRedis(cfg.RedisAddr())
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, func() {
		db.Close()
		_ = rdb.Close()
	})

	nc, err := connectNats(cfg.NatsAddr())
	if err != nil {
		return nil, runCleanup(cleanupFns), err
	}
	cleanupFns = append(cleanupFns, nc.Close)

	// ── Repositories ──────────────────────────────────────────────────────
	bus := transportNATS.NewBus(nc)
	ledgerRepo := repository.NewLedgerRepo(rdb, db, bus)
	postRepo := repository.NewPostRepo(db)
	profileRepo := repository.NewProfileRepo(db)

	// ── Services ──────────────────────────────────────────────────────────
	gen := gateway.NewClient(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewayModel, cfg.GatewayTimeout)
	var posts service.PostService = service.NewPosts(ledgerRepo, gen, postRepo, cfg.VideoEnabled, cfg.RefundOnFailure)
	var profiles service.ProfileService = service.NewProfiles(profileRepo, ledgerRepo, cfg.SignupBonus)

	// ── Servers ───────────────────────────────────────────────────────────
	verifier := auth.NewVerifier(cfg.AuthJWTSecret)
	limiter := transportHTTP.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	servers := []Server{
		transportHTTP.NewServer(cfg.ApiAddr(), posts, profiles, verifier, limiter, cfg.VideoEnabled),
		transportNATS.NewHandler(profiles, nc),
		worker.NewLedgerWorker(ledgerRepo, nc),
	}

	return NewApp(servers), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in
// reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
