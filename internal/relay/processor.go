package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"payment-webhook-service/internal/logcontext"
	"payment-webhook-service/internal/tenant"
	"payment-webhook-service/internal/webhook"
)

const defaultParallelism = 16

var (
	relayHandledCounter  = metrics.GetOrCreateCounter(`relay_deliveries_total{result="handled"}`)
	relayRejectedCounter = metrics.GetOrCreateCounter(`relay_deliveries_total{result="rejected"}`)
)

// Envelope is a webhook delivery forwarded through Kafka by an edge relay.
type Envelope struct {
	Gateway        string            `json:"gateway"`
	OrganizationID string            `json:"organizationId,omitempty"`
	Secret         string            `json:"secret,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           json.RawMessage   `json:"body"`
}

type Handler interface {
	Handle(ctx context.Context, req webhook.Request) webhook.Response
}

// Processor runs relayed deliveries through the webhook pipeline with
// bounded parallelism.
type Processor struct {
	handler Handler
	sem     chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func NewProcessor(handler Handler, parallelism int, logger *slog.Logger) *Processor {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	return &Processor{
		handler: handler,
		sem:     make(chan struct{}, parallelism),
		logger:  logger,
	}
}

// Process decodes m and schedules it. It blocks while all slots are busy.
// Scheduled deliveries run to completion even after ctx is cancelled.
func (p *Processor) Process(ctx context.Context, m kafka.Message) error {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return errors.Wrap(err, "decode relay envelope")
	}
	if env.Gateway == "" {
		return errors.New("relay envelope without gateway")
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		p.handle(context.WithoutCancel(ctx), env, m.Offset)
	}()
	return nil
}

func (p *Processor) handle(ctx context.Context, env Envelope, offset int64) {
	ctx = logcontext.AppendCtx(ctx, slog.String("requestId", uuid.NewString()))
	ctx = logcontext.AppendCtx(ctx, slog.Int64("offset", offset))

	resp := p.handler.Handle(ctx, webhook.Request{
		Gateway: env.Gateway,
		Credentials: tenant.Credentials{
			OrganizationID: env.OrganizationID,
			Secret:         env.Secret,
		},
		Headers: env.Headers,
		Body:    env.Body,
	})

	if resp.Status >= 300 {
		relayRejectedCounter.Inc()
		p.logger.WarnContext(ctx, "Relayed webhook rejected", "status", resp.Status, "response", resp.Body)
		return
	}
	relayHandledCounter.Inc()
	p.logger.InfoContext(ctx, "Relayed webhook handled", "status", resp.Status)
}

// Wait blocks until every scheduled delivery finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}
