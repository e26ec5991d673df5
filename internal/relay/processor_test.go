package relay

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-webhook-service/internal/webhook"
)

type recordingHandler struct {
	mu       sync.Mutex
	requests []webhook.Request
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (h *recordingHandler) Handle(_ context.Context, req webhook.Request) webhook.Response {
	n := h.inFlight.Add(1)
	defer h.inFlight.Add(-1)
	for {
		peak := h.peak.Load()
		if n <= peak || h.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(h.delay)

	h.mu.Lock()
	h.requests = append(h.requests, req)
	h.mu.Unlock()
	return webhook.Response{Status: http.StatusOK}
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestProcessor_DecodesEnvelope(t *testing.T) {
	h := &recordingHandler{}
	p := NewProcessor(h, 2, discard)

	value := `{"gateway": "kiwify", "secret": "s3cr3t", "headers": {"X-Kiwify": "1"}, "body": {"order_id": "kw_1"}}`
	require.NoError(t, p.Process(context.Background(), kafka.Message{Value: []byte(value)}))
	p.Wait()

	require.Len(t, h.requests, 1)
	req := h.requests[0]
	assert.Equal(t, "kiwify", req.Gateway)
	assert.Equal(t, "s3cr3t", req.Credentials.Secret)
	assert.Empty(t, req.Credentials.OrganizationID)
	assert.Equal(t, "1", req.Headers["X-Kiwify"])
	assert.JSONEq(t, `{"order_id": "kw_1"}`, string(req.Body))
}

func TestProcessor_RejectsBadEnvelopes(t *testing.T) {
	p := NewProcessor(&recordingHandler{}, 1, discard)

	assert.Error(t, p.Process(context.Background(), kafka.Message{Value: []byte(`{nope`)}))
	assert.Error(t, p.Process(context.Background(), kafka.Message{Value: []byte(`{"body": {}}`)}))
}

func TestProcessor_BoundsParallelism(t *testing.T) {
	h := &recordingHandler{delay: 20 * time.Millisecond}
	p := NewProcessor(h, 3, discard)

	for i := 0; i < 12; i++ {
		require.NoError(t, p.Process(context.Background(), kafka.Message{Value: []byte(`{"gateway": "pagarme", "body": {}}`)}))
	}
	p.Wait()

	assert.Len(t, h.requests, 12)
	assert.LessOrEqual(t, h.peak.Load(), int32(3))
}
