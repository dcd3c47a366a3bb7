package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"water-monitoring/internal/config"
	"water-monitoring/internal/model"

	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by Writer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces water level alerts to a Kafka topic.
// It implements service.AlertPublisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured alert topic.
func NewWriter(cfg config.KafkaConfig, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.AlertTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishAlert serializes and publishes one alert, keyed by station so a
// station's alerts stay ordered within a partition.
func (w *Writer) PublishAlert(ctx context.Context, alert model.LevelAlert) error {
	msg, err := serializeToMessage(alert)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish level alert: %w", err)
	}
	w.logger.Debug("level alert published",
		"measurement_id", alert.MeasurementID,
		"location_id", alert.LocationID,
		"status", alert.Status,
	)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a LevelAlert into a Kafka message.
func serializeToMessage(alert model.LevelAlert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize level alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.LocationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_status", Value: []byte(alert.Status)},
			{Key: "recorded_at", Value: []byte(alert.RecordedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
