package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"sparkfeed/internal/model"
	"sparkfeed/internal/service"
)

// Handler subscribes to command topics and delegates to the profile service.
// The billing pipeline publishes recharge commands here after a purchase
// clears.
type Handler struct {
	profiles service.ProfileService
	nc       *nats.Conn
	subs     []*nats.Subscription
}

func NewHandler(profiles service.ProfileService, nc *nats.Conn) *Handler {
	return &Handler{profiles: profiles, nc: nc}
}

// Start subscribes to command topics and blocks until ctx is cancelled.
func (h *Handler) Start(ctx context.Context) error {
	sub, err := h.nc.QueueSubscribe("commands.recharge", "sparkfeed_group", func(m *nats.Msg) {
		var req model.RechargeRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			slog.Error("nats: failed to unmarshal recharge command", "error", err)
			return
		}
		if err := h.profiles.Recharge(ctx, req.AccountID, req.Amount); err != nil {
			slog.Error("nats: recharge failed", "error", err, "account_id", req.AccountID)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, sub)

	slog.Info("NATS command handler is running")

	<-ctx.Done()
	slog.Info("NATS command handler shutting down, draining subscriptions...")

	for _, s := range h.subs {
		_ = s.Drain()
	}
	return nil
}

func (h *Handler) Stop(ctx context.Context) error {
	for _, s := range h.subs {
		_ = s.Unsubscribe()
	}
	return nil
}
