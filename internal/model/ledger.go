package model

import "time"

const (
	LedgerKindSpend  = "spend"
	LedgerKindCredit = "credit"
)

// LedgerEvent is published to the bus after every successful balance mutation
// and replayed by the worker into the durable Postgres journal.
type LedgerEvent struct {
	AccountID      string    `json:"account_id"`
	Amount         int64     `json:"amount"`
	Kind           string    `json:"kind"`
	Reason         string    `json:"reason,omitempty"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
}

type RechargeRequest struct {
	AccountID string `json:"account_id,omitempty"`
	Amount    int64  `json:"amount"`
}
