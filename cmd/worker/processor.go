package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orderflow/internal/dispatch"
)

// Processor runs the dispatcher for each SQS message published by the API.
type Processor struct {
	runner dispatch.Runner
	log    *zap.Logger
}

// NewProcessor creates a new worker processor.
func NewProcessor(runner dispatch.Runner, log *zap.Logger) *Processor {
	return &Processor{runner: runner, log: log.Named("worker")}
}

// Handle processes an SQS batch. Undecodable messages are reported as batch
// item failures so the queue's redrive policy moves them to the DLQ; provider
// failures are recorded in the ledger and never retried.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.log.Error("worker error", zap.String("message_id", rec.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var job dispatch.Job
	if err := json.Unmarshal([]byte(rec.Body), &job); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if job.OrderID == "" {
		return fmt.Errorf("message %s has no order_id", rec.MessageId)
	}

	p.log.Info("received order",
		zap.String("order_id", job.OrderID),
		zap.String("request_id", job.RequestID),
		zap.String("receive_count", rec.Attributes["ApproximateReceiveCount"]),
	)

	out := p.runner.Dispatch(ctx, job)
	if out.Duplicate {
		p.log.Info("duplicate delivery for order", zap.String("order_id", job.OrderID))
	}
	return nil
}
