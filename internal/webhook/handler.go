package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"payment-webhook-service/internal/logcontext"
	"payment-webhook-service/internal/tenant"
)

const defaultMaxBodyBytes = 1 << 20

var redactedHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
}

type Handler struct {
	service      *Service
	maxBodyBytes int64
	logger       *slog.Logger
}

func NewHandler(service *Service, maxBodyBytes int64, logger *slog.Logger) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{service: service, maxBodyBytes: maxBodyBytes, logger: logger}
}

// Register mounts one POST and one GET route per registered gateway plus the
// generic forms that carry the gateway, and optionally the secret, in the path.
func (h *Handler) Register(mux *http.ServeMux) {
	for _, name := range h.service.registry.Names() {
		gw := name
		mux.HandleFunc("POST /api/webhooks/"+gw, func(w http.ResponseWriter, r *http.Request) {
			h.receive(w, r, gw, "")
		})
		mux.HandleFunc("GET /api/webhooks/"+gw, h.liveness)
	}

	mux.HandleFunc("POST /api/webhooks/{gateway}", func(w http.ResponseWriter, r *http.Request) {
		h.receive(w, r, r.PathValue("gateway"), "")
	})
	mux.HandleFunc("POST /api/webhooks/{gateway}/{secret}", func(w http.ResponseWriter, r *http.Request) {
		h.receive(w, r, r.PathValue("gateway"), r.PathValue("secret"))
	})
	mux.HandleFunc("GET /api/webhooks/{gateway}", h.liveness)
	mux.HandleFunc("GET /api/webhooks/{gateway}/{secret}", h.liveness)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request, gw, pathSecret string) {
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx := logcontext.AppendCtx(r.Context(), slog.String("requestId", requestID))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.logger.ErrorContext(ctx, "Error reading request body", "error", err)
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	creds := tenant.Credentials{
		OrganizationID: r.URL.Query().Get("organizationId"),
		Secret:         r.URL.Query().Get("secret"),
	}
	if pathSecret != "" {
		creds.Secret = pathSecret
	}

	resp := h.service.Handle(ctx, Request{
		Gateway:     gw,
		Credentials: creds,
		Headers:     flattenHeaders(r.Header),
		Body:        body,
	})
	w.Header().Set("X-Request-Id", requestID)
	writeJSON(w, resp.Status, resp.Body)
}

func (h *Handler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Webhook endpoint is active"})
}

func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for k, v := range header {
		if _, secret := redactedHeaders[strings.ToLower(k)]; secret {
			out[k] = "[redacted]"
			continue
		}
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorBody{Error: msg})
}
