package export

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/PraWek/BusinessTelemetry/internal/config"
	"github.com/PraWek/BusinessTelemetry/internal/report"
)

const defaultReportsTopic = "telemetry.reports"

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes every report row as a JSON message
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
}

// NewKafkaPublisher creates a publisher for the "reports" topic
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	topic := cfg.Topics["reports"]
	if topic == "" {
		topic = defaultReportsTopic
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           time.Millisecond * 10,
		AllowAutoTopicCreation: true,
	}
	log.Info().Str("topic", topic).Strs("brokers", cfg.Brokers).Msg("Kafka report writer initialized")

	return NewKafkaPublisherWithWriter(writer, topic)
}

// NewKafkaPublisherWithWriter wraps an existing writer
func NewKafkaPublisherWithWriter(w MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// Write publishes one message per table row, keyed by run id so a run stays
// on one partition.
func (p *KafkaPublisher) Write(ctx context.Context, r *report.Report) error {
	for _, t := range r.Tables() {
		msgs, err := Messages(r, t)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			continue
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		log.Debug().Str("table", t.Name).Int("count", len(msgs)).Msg("Report rows published to Kafka")
	}
	return nil
}

// Messages encodes the rows of t as Kafka messages
func Messages(r *report.Report, t report.Table) ([]kafka.Message, error) {
	key := []byte(r.RunID.String())
	names := t.ColumnNames()

	msgs := make([]kafka.Message, 0, len(t.Rows))
	for _, row := range t.Rows {
		values := make(map[string]interface{}, len(names))
		for i, name := range names {
			if i < len(row) {
				values[name] = jsonValue(row[i])
			}
		}
		payload := map[string]interface{}{
			"run_id":       r.RunID.String(),
			"table":        t.Name,
			"generated_at": r.GeneratedAt.UnixMilli(),
			"row":          values,
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   key,
			Value: data,
			Headers: []kafka.Header{
				{Key: "table", Value: []byte(t.Name)},
			},
		})
	}
	return msgs, nil
}

// jsonValue maps undefined ratios and missing timestamps to null
func jsonValue(v any) interface{} {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x.Format(time.RFC3339Nano)
	default:
		return x
	}
}

// Close closes the underlying writer
func (p *KafkaPublisher) Close() error {
	log.Info().Msg("Closing Kafka report writer")
	return p.writer.Close()
}
