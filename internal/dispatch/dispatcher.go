// Package dispatch delivers composed order notifications to the email and
// messaging providers, off the request path.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-storefront-orderflow/internal/compose"
)

const defaultTimeout = 10 * time.Second

// Options configures a Dispatcher. A nil Email or WhatsApp sender disables
// that channel; its result is then Skipped.
type Options struct {
	Composer   compose.Composer
	Email      EmailSender
	WhatsApp   MessageSender
	ChatSuffix string
	Timeout    time.Duration // per provider call
	Ledger     Ledger
	Metrics    Metrics
}

// Dispatcher performs the two outbound calls for a job.
type Dispatcher struct {
	composer   compose.Composer
	email      EmailSender
	whatsapp   MessageSender
	chatSuffix string
	timeout    time.Duration
	ledger     Ledger
	metrics    Metrics
	log        *zap.Logger
	nowFunc    func() time.Time
}

// New returns a Dispatcher.
func New(opts Options, log *zap.Logger) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		composer:   opts.Composer,
		email:      opts.Email,
		whatsapp:   opts.WhatsApp,
		chatSuffix: opts.ChatSuffix,
		timeout:    opts.Timeout,
		ledger:     opts.Ledger,
		metrics:    opts.Metrics,
		log:        log.Named("dispatch"),
		nowFunc:    time.Now,
	}
}

// EmailEnabled reports whether an email provider is configured.
func (d *Dispatcher) EmailEnabled() bool { return d.email != nil }

// WhatsAppEnabled reports whether a messaging gateway is configured.
func (d *Dispatcher) WhatsAppEnabled() bool { return d.whatsapp != nil }

// ChatID builds the gateway chat id from a phone number: every non-digit is
// dropped and suffix appended. It returns "" when phone has no digits.
func ChatID(phone, suffix string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return ""
	}
	return digits + suffix
}

// Dispatch sends the email and the WhatsApp message for job concurrently.
// It always returns an Outcome; a failing channel never stops the other one.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) Outcome {
	log := d.log.With(
		zap.String("order_id", job.OrderID),
		zap.String("consultant_id", job.Consultant.ID),
		zap.String("request_id", job.RequestID),
	)

	if d.ledger != nil {
		claimed, err := d.ledger.Claim(ctx, job.OrderID)
		switch {
		case err != nil:
			// at-least-once: a ledger outage must not drop the notification
			log.Warn("ledger claim failed, dispatching anyway", zap.Error(err))
		case !claimed:
			log.Info("order already dispatched, skipping")
			return Outcome{
				OrderID:   job.OrderID,
				Email:     skipped(ChannelEmail, "already dispatched"),
				WhatsApp:  skipped(ChannelWhatsApp, "already dispatched"),
				Duplicate: true,
				Finished:  d.nowFunc(),
			}
		}
	}

	artifacts, composeErr := d.composer.Compose(job.Order, job.Consultant)
	if composeErr != nil {
		artifacts.WhatsApp = compose.WhatsAppText(job.Order, job.Consultant)
	}

	out := Outcome{OrderID: job.OrderID}
	var g errgroup.Group
	g.Go(func() error {
		if composeErr != nil {
			out.Email = Result{Channel: ChannelEmail, Status: StatusFailed, Reason: composeErr.Error()}
			return nil
		}
		out.Email = d.sendEmail(ctx, artifacts.Email)
		return nil
	})
	g.Go(func() error {
		out.WhatsApp = d.sendWhatsApp(ctx, ChatID(job.Consultant.Phone, d.chatSuffix), artifacts.WhatsApp)
		return nil
	})
	_ = g.Wait()
	out.Finished = d.nowFunc()

	for _, r := range out.Results() {
		fields := []zap.Field{
			zap.String("channel", r.Channel),
			zap.String("status", string(r.Status)),
			zap.Int64("duration_ms", r.DurationMS),
		}
		switch r.Status {
		case StatusFailed:
			log.Error("notification failed", append(fields, zap.String("reason", r.Reason))...)
		case StatusSkipped:
			log.Info("notification skipped", append(fields, zap.String("reason", r.Reason))...)
		default:
			log.Info("notification delivered", fields...)
		}
	}

	if d.ledger != nil {
		if err := d.ledger.Complete(ctx, job.OrderID, out); err != nil {
			log.Warn("ledger complete failed", zap.Error(err))
		}
	}
	if err := d.metrics.RecordOutcome(ctx, out); err != nil {
		log.Warn("record metrics failed", zap.Error(err))
	}
	return out
}

func (d *Dispatcher) sendEmail(ctx context.Context, msg compose.Email) Result {
	if d.email == nil {
		return skipped(ChannelEmail, "email provider disabled")
	}
	if len(msg.To) == 0 {
		return skipped(ChannelEmail, "no recipients")
	}
	return d.attempt(ctx, ChannelEmail, func(ctx context.Context) error {
		return d.email.SendEmail(ctx, msg)
	})
}

func (d *Dispatcher) sendWhatsApp(ctx context.Context, chatID, text string) Result {
	if d.whatsapp == nil {
		return skipped(ChannelWhatsApp, "whatsapp gateway disabled")
	}
	if chatID == "" {
		return skipped(ChannelWhatsApp, "consultant has no phone")
	}
	return d.attempt(ctx, ChannelWhatsApp, func(ctx context.Context) error {
		return d.whatsapp.SendMessage(ctx, chatID, text)
	})
}

// attempt runs one bounded provider call. Panics are reported as failures.
func (d *Dispatcher) attempt(ctx context.Context, channel string, call func(context.Context) error) (res Result) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := d.nowFunc()
	defer func() {
		if p := recover(); p != nil {
			res = Result{Channel: channel, Status: StatusFailed, Reason: fmt.Sprintf("panic: %v", p)}
		}
		res.DurationMS = d.nowFunc().Sub(start).Milliseconds()
	}()

	if err := call(ctx); err != nil {
		return Result{Channel: channel, Status: StatusFailed, Reason: err.Error()}
	}
	return Result{Channel: channel, Status: StatusDelivered}
}

func skipped(channel, reason string) Result {
	return Result{Channel: channel, Status: StatusSkipped, Reason: reason}
}
