package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"payment-webhook-service/internal/config"
	"payment-webhook-service/internal/logcontext"
	"payment-webhook-service/internal/model"
)

var (
	// producer batch metrics
	producerErrorFetchingCounter = metrics.GetOrCreateCounter(`outbox_producer_total{result="fetching_failed"}`)
	producerErrorKafkaCounter    = metrics.GetOrCreateCounter(`outbox_producer_total{result="publish_failed"}`)
	producerSuccessCounter       = metrics.GetOrCreateCounter(`outbox_producer_total{result="success"}`)

	producerProcessDurationHistogram = metrics.GetOrCreateHistogram(`outbox_producer_duration_milliseconds`)

	// producer per event metrics
	producerEventsPublishedCounter   = metrics.GetOrCreateCounter(`outbox_producer_events_total{result="published"}`)
	producerEventsMaxAttemptsCounter = metrics.GetOrCreateCounter(`outbox_producer_events_total{result="max_attempts_reached"}`)
	producerEventsRescheduledCounter = metrics.GetOrCreateCounter(`outbox_producer_events_total{result="rescheduled"}`)
)

type Store interface {
	ClaimBatch(ctx context.Context, limit int, fn func(ctx context.Context, events []*model.OutboxEvent) error) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Producer moves sale events from the outbox table to Kafka.
type Producer struct {
	store              Store
	writer             MessageWriter
	pollingInterval    time.Duration
	fetchSize          int
	retryDelay         time.Duration
	maxPublishAttempts int
	logger             *slog.Logger
	now                func() time.Time
}

func NewProducer(store Store, writer MessageWriter, cfg config.Outbox, logger *slog.Logger) *Producer {
	return &Producer{
		store:              store,
		writer:             writer,
		pollingInterval:    time.Duration(cfg.PollingIntervalMs) * time.Millisecond,
		fetchSize:          cfg.FetchSize,
		retryDelay:         time.Duration(cfg.RescheduleDelayMs) * time.Millisecond,
		maxPublishAttempts: cfg.MaxPublishAttempts,
		logger:             logger,
		now:                time.Now,
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.pollingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.process(ctx)
			case <-ctx.Done():
				p.logger.InfoContext(ctx, "Context done, stopping outbox producer")
				return
			}
		}
	}()
}

func (p *Producer) process(ctx context.Context) {
	startTime := time.Now()
	defer func() {
		producerProcessDurationHistogram.Update(float64(time.Since(startTime).Milliseconds()))
	}()

	// set runId as a correlation id for all logs in scope
	ctx = logcontext.AppendCtx(ctx, slog.String("runId", uuid.New().String()))

	err := p.store.ClaimBatch(ctx, p.fetchSize, func(ctx context.Context, events []*model.OutboxEvent) error {
		p.logger.InfoContext(ctx, "Publishing sale events", "count", len(events))

		publishErr := p.writer.WriteMessages(ctx, p.toKafkaMessages(ctx, events)...)
		if publishErr != nil {
			p.logger.ErrorContext(ctx, "Error writing messages to Kafka", "error", publishErr)
			producerErrorKafkaCounter.Inc()
		}

		for _, e := range events {
			p.apply(ctx, e, publishErr)
		}
		return nil
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "Error processing outbox batch", "error", err)
		producerErrorFetchingCounter.Inc()
		return
	}
	producerSuccessCounter.Inc()
}

// apply records the publish outcome on e. Failed events are rescheduled with
// a linear backoff until maxPublishAttempts, then parked.
func (p *Producer) apply(ctx context.Context, e *model.OutboxEvent, publishErr error) {
	eventCtx := logcontext.AppendCtx(ctx, slog.String("id", e.ID.String()))

	e.PublishAttempts++

	if publishErr == nil {
		now := p.now()
		e.PublishedAt = &now
		e.ScheduledAt = nil
		e.Error = nil
		producerEventsPublishedCounter.Inc()
		return
	}

	errMsg := publishErr.Error()
	e.Error = &errMsg

	if e.PublishAttempts >= p.maxPublishAttempts {
		p.logger.WarnContext(eventCtx, "Max publish attempts reached for sale event")
		e.ScheduledAt = nil
		producerEventsMaxAttemptsCounter.Inc()
		return
	}

	scheduledAt := p.now().Add(time.Duration(e.PublishAttempts) * p.retryDelay)
	e.ScheduledAt = &scheduledAt
	producerEventsRescheduledCounter.Inc()
}

func (p *Producer) toKafkaMessages(ctx context.Context, events []*model.OutboxEvent) []kafka.Message {
	kafkaMessages := make([]kafka.Message, 0, len(events))

	for _, e := range events {
		p.logger.DebugContext(ctx, "Preparing Kafka message for sale event", "id", e.ID)

		value, _ := json.Marshal(e.Event)

		kafkaMessages = append(kafkaMessages, kafka.Message{
			// sale id as key keeps the events of one sale ordered
			Key:   []byte(e.Event.SaleID.String()),
			Value: value,
			Headers: []kafka.Header{
				{Key: "tenantId", Value: []byte(e.Event.TenantID.String())},
				{Key: "action", Value: []byte(e.Event.Action)},
			},
		})
	}
	return kafkaMessages
}
