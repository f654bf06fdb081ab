package pipeline

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/resilience"
)

// BuildCompleted is published once the shards are finalized.
type BuildCompleted struct {
	BuildID     string         `json:"build_id"`
	Documents   int            `json:"documents"`
	Postings    int            `json:"postings"`
	Shards      map[string]int `json:"shard_terms"`
	DurationMS  int64          `json:"duration_ms"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Notifier announces finished builds. A failed notification never fails the
// build.
type Notifier interface {
	Notify(ctx context.Context, event BuildCompleted) error
}

// Publisher is the subset of the Kafka producer the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type KafkaNotifier struct {
	publisher Publisher
	timeout   time.Duration
	retry     resilience.RetryConfig
}

func NewKafkaNotifier(publisher Publisher) *KafkaNotifier {
	return &KafkaNotifier{
		publisher: publisher,
		timeout:   5 * time.Second,
	}
}

// Notify publishes the event keyed by build id, retrying transient failures.
func (n *KafkaNotifier) Notify(ctx context.Context, event BuildCompleted) error {
	return resilience.Retry(ctx, "notify-build", n.retry, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, n.timeout, "kafka-publish", func(ctx context.Context) error {
			return n.publisher.Publish(ctx, kafka.Event{Key: event.BuildID, Value: event})
		})
	})
}
