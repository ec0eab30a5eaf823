package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/jellyfish-risk-service/internal/config"
	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
)

// Publisher produces risk report events to a Kafka topic.
// It implements pipeline.ReportPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured reports topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaReportsTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes one report event. Reports for the same rounded coordinate
// share a key and therefore a partition.
func (p *Publisher) Publish(ctx context.Context, report domain.RiskReport) error {
	msg, err := serializeToMessage(report)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write report %s: %w", report.ID, err)
	}
	p.logger.Debug("report published", "report_id", report.ID, "topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a RiskReport into a Kafka message.
func serializeToMessage(report domain.RiskReport) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize risk report: %w", err)
	}
	key := domain.Coordinate{Lat: report.Latitude, Lon: report.Longitude}.Key()
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "risk_level", Value: []byte(report.RiskLevel.String())},
			{Key: "computed_at", Value: []byte(report.ComputedAt.UTC().Format(time.RFC3339))},
			{Key: "report_id", Value: []byte(report.ID)},
		},
	}, nil
}
