package repository

// MessageBus decouples the ledger from the concrete transport (NATS in prod,
// a mock in tests).
type MessageBus interface {
	Publish(topic string, data []byte) error
}

// TopicLedgerEvents carries LedgerEvent payloads consumed by the sync worker.
const TopicLedgerEvents = "ledger.events"
