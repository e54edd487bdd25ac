// Package events bridges domain events onto the asynq queue. Delivery is
// at-least-once; producers treat publication as fire-and-forget.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stockledger/stockledger/internal/inventory"
)

const (
	// TaskTypePrefix namespaces event tasks so the worker can route them
	// with a single prefix handler.
	TaskTypePrefix = "events:"
	// Queue is the asynq queue event tasks are enqueued on.
	Queue = "default"
)

// TaskType returns the asynq task type for an event kind.
func TaskType(kind inventory.EventKind) string {
	return TaskTypePrefix + string(kind)
}

// Metrics counts published events. Implemented by observability.Metrics;
// nil-safe.
type Metrics interface {
	EventPublished(kind string)
}

// Publisher enqueues domain events as asynq tasks.
type Publisher struct {
	client  *asynq.Client
	logger  *slog.Logger
	metrics Metrics
}

// NewPublisher constructs a Publisher backed by the given redis address.
func NewPublisher(redisAddr string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	return &Publisher{client: client, logger: logger}
}

// WithMetrics attaches a publish counter.
func (p *Publisher) WithMetrics(m Metrics) *Publisher {
	if p != nil {
		p.metrics = m
	}
	return p
}

// Publish serialises the event and enqueues it. Consumers may observe an
// event more than once; payloads carry the event id for dedup.
func (p *Publisher) Publish(ctx context.Context, evt inventory.Event) error {
	if p == nil || p.client == nil || evt == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskType(evt.Kind()), payload, asynq.Queue(Queue))
	info, err := p.client.EnqueueContext(ctx, task, asynq.MaxRetry(5))
	if err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.EventPublished(string(evt.Kind()))
	}
	p.logger.Debug("event enqueued",
		slog.String("kind", string(evt.Kind())),
		slog.String("task_id", info.ID),
	)
	return nil
}

// Close releases the underlying client.
func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// NopPublisher discards events. Used in tests and when redis is not
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, inventory.Event) error { return nil }
