// Package events publishes document lifecycle events to Kafka. Publishing is
// best effort: a broker outage never fails the operation that produced the
// event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"cymbalrag/internal/database/kafka"
	"cymbalrag/pkg/logger"
)

// Event types emitted over the document lifecycle.
const (
	EventValidated   = "document.validated"
	EventUploaded    = "document.uploaded"
	EventProcessed   = "document.processed"
	EventReprocessed = "document.reprocessed"
	EventFailed      = "document.failed"
	EventDeleted     = "document.deleted"
)

// LifecycleEvent is the JSON payload written to the event topic.
type LifecycleEvent struct {
	Type          string    `json:"type"`
	FileID        string    `json:"file_id,omitempty"`
	Filename      string    `json:"filename,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher sends lifecycle events. A nil *Publisher is valid and drops
// every event, which is how the service runs with Kafka disabled.
type Publisher struct {
	writer *kafkago.Writer
	log    *logger.Logger
}

// NewPublisher wraps the shared Kafka client's writer.
func NewPublisher(client *kafka.KafkaClient, log *logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{writer: client.Writer, log: log}
}

// Publish writes the event keyed by file ID. Errors are logged and swallowed.
func (p *Publisher) Publish(ctx context.Context, ev LifecycleEvent) {
	if p == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.WithError(err).Error("cannot marshal lifecycle event")
		return
	}
	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(ev.FileID),
		Value: payload,
	})
	if err != nil {
		p.log.WithError(fmt.Errorf("writing lifecycle event: %w", err)).
			WithField("event_type", ev.Type).
			Error("event publish failed, continuing")
	}
}

// Close shuts down the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
