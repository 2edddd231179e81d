// Package events broadcasts cache-invalidation events over Kafka so other
// engine instances and the surrounding CRUD services can drop their views.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/order-engine/internal/core/domain"
)

const DefaultTopic = "cache.invalidations"

type InvalidationEvent struct {
	Regions    []string  `json:"regions"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher struct {
	writer *kafka.Writer
	source string
}

// NewPublisher builds a publisher for brokersCSV, a comma-separated broker
// list. Returns nil when the list is empty; a nil publisher is valid and
// means invalidations stay local.
func NewPublisher(brokersCSV, topic, source string) *Publisher {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		source: source,
	}
}

func (p *Publisher) PublishInvalidation(ctx context.Context, regions []domain.CacheRegion) error {
	names := make([]string, len(regions))
	for i, region := range regions {
		names[i] = string(region)
	}

	data, err := json.Marshal(InvalidationEvent{
		Regions:    names,
		Source:     p.source,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(p.source),
		Value: data,
		Time:  time.Now().UTC(),
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
