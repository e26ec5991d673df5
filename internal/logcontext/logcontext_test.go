package logcontext

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendCtx(t *testing.T) {
	base := AppendCtx(context.Background(), slog.String("requestId", "r1"))
	a := AppendCtx(base, slog.String("gateway", "pagarme"))
	b := AppendCtx(base, slog.String("gateway", "hotmart"))

	assert.Equal(t, []slog.Attr{slog.String("requestId", "r1")}, Attrs(base))
	assert.Equal(t, []slog.Attr{slog.String("requestId", "r1"), slog.String("gateway", "pagarme")}, Attrs(a))
	assert.Equal(t, []slog.Attr{slog.String("requestId", "r1"), slog.String("gateway", "hotmart")}, Attrs(b))
	assert.Nil(t, Attrs(context.Background()))
}
