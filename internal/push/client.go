package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"payment-webhook-service/internal/model"
)

const defaultTimeoutMs = 10_000

// Error codes reported per token by the push provider.
const (
	CodeUnregistered = "UNREGISTERED"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeUnavailable  = "UNAVAILABLE"
	CodeInternal     = "INTERNAL"
)

type multicastRequest struct {
	Tokens       []string          `json:"tokens"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type multicastResponse struct {
	Responses []struct {
		Token   string `json:"token"`
		Success bool   `json:"success"`
		Error   *struct {
			Code string `json:"code"`
		} `json:"error,omitempty"`
	} `json:"responses"`
}

// Client sends one multicast request per call to an HTTP push provider.
type Client struct {
	client *http.Client
	url    string
	apiKey string
	logger *slog.Logger
}

func NewClient(url, apiKey string, timeoutMs int, logger *slog.Logger) *Client {
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}
	return &Client{
		client: &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		url:    url,
		apiKey: apiKey,
		logger: logger,
	}
}

// SendPush returns one result per token in the order given. Tokens missing
// from the provider response are reported as INTERNAL.
func (c *Client) SendPush(ctx context.Context, tokens []string, msg model.PushMessage) ([]model.PushResult, error) {
	c.logger.InfoContext(ctx, "Sending push", "url", c.url, "tokens", len(tokens))

	payload, err := json.Marshal(multicastRequest{
		Tokens:       tokens,
		Notification: notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode push request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, errors.Wrap(err, "create push request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send push")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read push response")
	}

	c.logger.DebugContext(ctx, "Push response", "status", resp.Status, "body", string(respBody))

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("error response: %s", resp.Status)
	}

	var decoded multicastResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, errors.Wrap(err, "decode push response")
	}

	byToken := make(map[string]string, len(decoded.Responses))
	for _, r := range decoded.Responses {
		code := ""
		if !r.Success {
			code = CodeInternal
			if r.Error != nil && r.Error.Code != "" {
				code = r.Error.Code
			}
		}
		byToken[r.Token] = code
	}

	results := make([]model.PushResult, 0, len(tokens))
	for _, token := range tokens {
		code, ok := byToken[token]
		if !ok {
			code = CodeInternal
		}
		results = append(results, model.PushResult{Token: token, ErrorCode: code})
	}
	return results, nil
}

// IsPermanent reports whether code means the token will never work again.
func IsPermanent(code string) bool {
	return code == CodeUnregistered || code == CodeInvalidToken
}
