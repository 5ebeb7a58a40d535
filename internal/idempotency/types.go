package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/imrishuroy/go-storefront-orderflow/internal/dispatch"
)

// Status values for ledger entries
const (
	StatusPending     = "PENDING"     // accepted, waiting for a dispatch worker
	StatusDispatching = "DISPATCHING" // claimed by a worker
	StatusDone        = "DONE"
	StatusFailed      = "FAILED" // could not be scheduled; the key may be retried
)

// ErrNotFound is returned when an update targets a missing or expired record.
var ErrNotFound = errors.New("ledger record not found")

// Record is the shape persisted per accepted order.
type Record struct {
	OrderID        string           `dynamodbav:"order_id" json:"order_id"` // PK
	IdempotencyKey string           `dynamodbav:"idempotency_key,omitempty" json:"idempotency_key,omitempty"`
	ConsultantID   string           `dynamodbav:"consultant_id" json:"consultant_id"`
	Status         string           `dynamodbav:"status" json:"status"`
	Ack            string           `dynamodbav:"ack,omitempty" json:"-"` // set once the order is scheduled; replayed for duplicate keys
	Email          *dispatch.Result `dynamodbav:"email,omitempty" json:"email,omitempty"`
	WhatsApp       *dispatch.Result `dynamodbav:"whatsapp,omitempty" json:"whatsapp,omitempty"`
	Note           string           `dynamodbav:"note,omitempty" json:"note,omitempty"`
	CreatedAt      time.Time        `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `dynamodbav:"updated_at" json:"updated_at"`
	ExpiresAt      int64            `dynamodbav:"expires_at" json:"-"` // TTL epoch seconds
}

// Ledger is implemented by Store and MemoryStore.
type Ledger interface {
	dispatch.Ledger
	CreateIfNotExists(ctx context.Context, rec Record) (bool, error)
	Accept(ctx context.Context, orderID, ack string) error
	Get(ctx context.Context, orderID string) (*Record, error)
	MarkFailed(ctx context.Context, orderID, note string) error
}
