package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ReckonAssist/internal/config"
	"ReckonAssist/internal/rag/interfaces"
	"ReckonAssist/internal/rag/schema"
)

// QueryLogPublisher ships query analytics events to Kafka. The orchestrator
// calls it fire-and-forget; a publish failure never reaches the user.
type QueryLogPublisher struct {
	writer *kafka.Writer
}

// NewQueryLogPublisher creates a publisher for the configured topic.
func NewQueryLogPublisher(cfg *config.KafkaConfig) *QueryLogPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	})
	return &QueryLogPublisher{writer: writer}
}

// LogQuery serializes the entry as JSON and writes it to the topic.
func (p *QueryLogPublisher) LogQuery(ctx context.Context, entry *schema.QueryLogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal query log entry: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.Language),
		Value: jsonData,
	}); err != nil {
		return fmt.Errorf("failed to write query log to kafka: %w", err)
	}
	return nil
}

// Close shuts down the underlying writer.
func (p *QueryLogPublisher) Close() error {
	return p.writer.Close()
}

var _ interfaces.QueryLogger = (*QueryLogPublisher)(nil)
