package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/segmentio/kafka-go"
)

type Metrics struct {
	ReadErrorCounter    *metrics.Counter
	ProcessErrorCounter *metrics.Counter
	SuccessCounter      *metrics.Counter
}

// NewMetrics registers the reader counters for one message type.
func NewMetrics(messageType string) Metrics {
	return Metrics{
		ReadErrorCounter:    metrics.GetOrCreateCounter(`relay_reader_total{result="read_error",type="` + messageType + `"}`),
		ProcessErrorCounter: metrics.GetOrCreateCounter(`relay_reader_total{result="process_error",type="` + messageType + `"}`),
		SuccessCounter:      metrics.GetOrCreateCounter(`relay_reader_total{result="success",type="` + messageType + `"}`),
	}
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func NewReader(kafkaURL, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: strings.Split(kafkaURL, ","),
		GroupID: groupID,
		Topic:   topic,
	})
}

// ReadMessages feeds every message to process until ctx is done. A failed
// message is counted and skipped.
func ReadMessages(ctx context.Context, reader MessageReader, logger *slog.Logger, process func(context.Context, kafka.Message) error, kafkaMetrics Metrics) {
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				logger.InfoContext(ctx, "Context done, stopping Kafka reader")
				return
			}
			logger.ErrorContext(ctx, "Error reading message", "error", err)
			kafkaMetrics.ReadErrorCounter.Inc()
			continue
		}
		logger.DebugContext(ctx, "Received message", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset)

		if err := process(ctx, m); err != nil {
			logger.ErrorContext(ctx, "Error processing message", "topic", m.Topic, "offset", m.Offset, "error", err)
			kafkaMetrics.ProcessErrorCounter.Inc()
			continue
		}
		kafkaMetrics.SuccessCounter.Inc()
	}
}
