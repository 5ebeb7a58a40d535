package dispatch

import (
	"context"
	"time"

	"github.com/imrishuroy/go-storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/go-storefront-orderflow/internal/compose"
	"github.com/imrishuroy/go-storefront-orderflow/internal/orders"
)

// Channel names
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

// Status is the result of one delivery attempt.
type Status string

const (
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
	StatusSkipped   Status = "SKIPPED"
)

// Result is the per-channel outcome. Provider errors end up in Reason, they
// are never returned to the caller.
type Result struct {
	Channel    string `json:"channel" dynamodbav:"channel"`
	Status     Status `json:"status" dynamodbav:"status"`
	Reason     string `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms" dynamodbav:"duration_ms"`
}

// Outcome groups both channel results for one order.
type Outcome struct {
	OrderID   string    `json:"order_id"`
	Email     Result    `json:"email"`
	WhatsApp  Result    `json:"whatsapp"`
	Duplicate bool      `json:"duplicate,omitempty"`
	Finished  time.Time `json:"finished_at"`
}

// Results returns the channel results in a fixed order.
func (o Outcome) Results() []Result {
	return []Result{o.Email, o.WhatsApp}
}

// Job is one accepted order waiting for notification. It is also the SQS
// message body in remote mode.
type Job struct {
	OrderID    string             `json:"order_id"`
	Order      orders.Order       `json:"order"`
	Consultant catalog.Consultant `json:"consultant"`
	ReceivedAt time.Time          `json:"received_at"`
	RequestID  string             `json:"request_id,omitempty"`
}

// EmailSender delivers a composed email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg compose.Email) error
}

// MessageSender delivers a text to a messaging-gateway chat.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Ledger records the dispatch lifecycle of an order. Claim reports false when
// another attempt already took the order.
type Ledger interface {
	Claim(ctx context.Context, orderID string) (bool, error)
	Complete(ctx context.Context, orderID string, out Outcome) error
}

// Metrics observes finished dispatches.
type Metrics interface {
	RecordOutcome(ctx context.Context, out Outcome) error
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordOutcome(context.Context, Outcome) error { return nil }
