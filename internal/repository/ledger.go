package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"sparkfeed/internal/model"
)

//go:embed spend.lua
var spendLuaScript string

//go:embed credit.lua
var creditLuaScript string

// idempotencyTTL bounds how long a processed key blocks replays.
const idempotencyTTL = 24 * time.Hour

var (
	ErrAlreadyProcessed = errors.New("request already processed (idempotency)")
	ErrCacheMiss        = errors.New("balance not found in cache")
	ErrInsufficient     = errors.New("insufficient funds")
	ErrNotFoundInDB     = errors.New("account not found in database")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
)

// LedgerRepo holds token balances. Redis is the authoritative hot store and
// the linearization point for debits; Postgres is the durable mirror, synced
// by the worker from published LedgerEvents.
type LedgerRepo struct {
	redisClient *redis.Client
	dbPool      *pgxpool.Pool
	bus         MessageBus
}

func NewLedgerRepo(rdb *redis.Client, db *pgxpool.Pool, bus MessageBus) *LedgerRepo {
	return &LedgerRepo{
		redisClient: rdb,
		dbPool:      db,
		bus:         bus,
	}
}

// LedgerResult reports the balance as observed atomically by the Lua script.
// On ErrInsufficient, Balance is the balance at the moment of the check.
type LedgerResult struct {
	Balance int64
}

// Spend atomically decrements the balance by amount iff balance >= amount.
// The whole check-and-decrement runs as a single Lua script, so two
// concurrent spends against a balance equal to amount produce exactly one
// success. If the cache is cold, the balance is warmed from Postgres and the
// script is retried once.
func (r *LedgerRepo) Spend(ctx context.Context, accountID, idempotencyKey string, amount int64, reason string) (*LedgerResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	res, err := r.executeScript(ctx, spendLuaScript, accountID, idempotencyKey, amount)
	if errors.Is(err, ErrCacheMiss) {
		slog.Info("ledger: cold start, warming balance from postgres", "account_id", accountID)
		if err := r.warmUpCache(ctx, accountID); err != nil {
			return nil, err
		}
		res, err = r.executeScript(ctx, spendLuaScript, accountID, idempotencyKey, amount)
	}
	if err != nil {
		return res, err
	}

	r.publish(accountID, idempotencyKey, amount, model.LedgerKindSpend, reason)
	return res, nil
}

// Credit atomically increments the balance. Used by recharges and by the
// refund-on-failure path.
func (r *LedgerRepo) Credit(ctx context.Context, accountID, idempotencyKey string, amount int64, reason string) (*LedgerResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	res, err := r.executeScript(ctx, creditLuaScript, accountID, idempotencyKey, amount)
	if errors.Is(err, ErrCacheMiss) {
		if err := r.warmUpCache(ctx, accountID); err != nil {
			return nil, err
		}
		res, err = r.executeScript(ctx, creditLuaScript, accountID, idempotencyKey, amount)
	}
	if err != nil {
		return res, err
	}

	r.publish(accountID, idempotencyKey, amount, model.LedgerKindCredit, reason)
	return res, nil
}

// Balance returns the current balance, warming the cache on a miss.
func (r *LedgerRepo) Balance(ctx context.Context, accountID string) (int64, error) {
	bal, err := r.redisClient.Get(ctx, balanceKey(accountID)).Int64()
	if err == nil {
		return bal, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("redis get balance: %w", err)
	}
	if err := r.warmUpCache(ctx, accountID); err != nil {
		return 0, err
	}
	return r.redisClient.Get(ctx, balanceKey(accountID)).Int64()
}

// InitBalance provisions a durable balance row (signup bonus) and seeds the
// cache. No-op if the account already has a row.
func (r *LedgerRepo) InitBalance(ctx context.Context, accountID string, amount int64) error {
	tag, err := r.dbPool.Exec(ctx,
		`INSERT INTO balances (account_id, amount) VALUES ($1, $2) ON CONFLICT (account_id) DO NOTHING`,
		accountID, amount)
	if err != nil {
		return fmt.Errorf("init balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	if err := r.redisClient.Set(ctx, balanceKey(accountID), amount, 0).Err(); err != nil {
		return fmt.Errorf("seed balance cache: %w", err)
	}
	return nil
}

// SyncLedgerEvent replays a bus event into the Postgres journal and balance
// mirror. The unique idempotency_key makes redelivery safe: a duplicate event
// inserts nothing and mutates nothing.
func (r *LedgerRepo) SyncLedgerEvent(ctx context.Context, event model.LedgerEvent) error {
	tx, err := r.dbPool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin sync tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO transactions (account_id, amount, kind, reason, idempotency_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (idempotency_key) DO NOTHING`,
		event.AccountID, event.Amount, event.Kind, event.Reason, event.IdempotencyKey, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil // already synced
	}

	delta := event.Amount
	if event.Kind == model.LedgerKindSpend {
		delta = -delta
	}
	if _, err := tx.Exec(ctx,
		`UPDATE balances SET amount = amount + $1 WHERE account_id = $2`,
		delta, event.AccountID); err != nil {
		return fmt.Errorf("update balance mirror: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *LedgerRepo) executeScript(ctx context.Context, script, accountID, idempotencyKey string, amount int64) (*LedgerResult, error) {
	keys := []string{balanceKey(accountID), idemKey(idempotencyKey)}
	args := []interface{}{amount, int64(idempotencyTTL.Seconds())}

	result, err := r.redisClient.Eval(ctx, script, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("error executing lua script: %w", err)
	}

	resArray, ok := result.([]interface{})
	if !ok || len(resArray) < 2 {
		return nil, errors.New("unexpected response format from redis")
	}

	statusCode, _ := resArray[0].(int64)
	balance, _ := resArray[1].(int64)

	switch statusCode {
	case 1:
		return &LedgerResult{Balance: balance}, nil
	case 0:
		return &LedgerResult{Balance: balance}, ErrAlreadyProcessed
	case -1:
		return nil, ErrCacheMiss
	case -2:
		return &LedgerResult{Balance: balance}, ErrInsufficient
	default:
		return nil, fmt.Errorf("unknown status from lua: %d", statusCode)
	}
}

// warmUpCache fetches the balance from Postgres and puts it into Redis.
// No TTL: Redis is the primary cache, not an expiring one.
func (r *LedgerRepo) warmUpCache(ctx context.Context, accountID string) error {
	var currentBalance int64
	err := r.dbPool.QueryRow(ctx,
		`SELECT amount FROM balances WHERE account_id = $1`, accountID).Scan(&currentBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFoundInDB
		}
		return fmt.Errorf("database query error: %w", err)
	}

	if err := r.redisClient.Set(ctx, balanceKey(accountID), currentBalance, 0).Err(); err != nil {
		return fmt.Errorf("failed to save balance to redis: %w", err)
	}
	return nil
}

func (r *LedgerRepo) publish(accountID, idempotencyKey string, amount int64, kind, reason string) {
	event := model.LedgerEvent{
		AccountID:      accountID,
		Amount:         amount,
		Kind:           kind,
		Reason:         reason,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	data, _ := json.Marshal(event)
	if err := r.bus.Publish(TopicLedgerEvents, data); err != nil {
		slog.Error("ledger: failed to publish event",
			"account_id", accountID, "key", idempotencyKey, "error", err)
	}
}

func balanceKey(accountID string) string {
	return fmt.Sprintf("balance:%s", accountID)
}

func idemKey(key string) string {
	return fmt.Sprintf("idem:%s", key)
}
