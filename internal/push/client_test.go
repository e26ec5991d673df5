package push

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-webhook-service/internal/model"
)

const pushURL = "http://push.example.com/v1/send"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestClient_SendPush(t *testing.T) {
	tests := []struct {
		name           string
		mockResponse   func()
		timeoutMs      int
		expectedError  bool
		expectedErrMsg string
		expected       []model.PushResult
	}{
		{
			name: "Mixed results",
			mockResponse: func() {
				gock.New("http://push.example.com").
					Post("/v1/send").
					MatchHeader("Authorization", "Bearer key").
					JSON(map[string]any{
						"tokens":       []string{"a", "b", "c"},
						"notification": map[string]string{"title": "Venda aprovada", "body": "ok"},
					}).
					Reply(200).
					JSON(map[string]any{"responses": []map[string]any{
						{"token": "a", "success": true},
						{"token": "b", "success": false, "error": map[string]string{"code": "UNREGISTERED"}},
						{"token": "c", "success": false},
					}})
			},
			expected: []model.PushResult{
				{Token: "a"},
				{Token: "b", ErrorCode: CodeUnregistered},
				{Token: "c", ErrorCode: CodeInternal},
			},
		},
		{
			name: "Missing token in response",
			mockResponse: func() {
				gock.New("http://push.example.com").
					Post("/v1/send").
					Reply(200).
					JSON(map[string]any{"responses": []map[string]any{{"token": "a", "success": true}}})
			},
			expected: []model.PushResult{
				{Token: "a"},
				{Token: "b", ErrorCode: CodeInternal},
				{Token: "c", ErrorCode: CodeInternal},
			},
		},
		{
			name: "Error",
			mockResponse: func() {
				gock.New("http://push.example.com").
					Post("/v1/send").
					Reply(503).
					JSON(map[string]string{"error": "unavailable"})
			},
			expectedError:  true,
			expectedErrMsg: "503",
		},
		{
			name: "Timeout",
			mockResponse: func() {
				gock.New("http://push.example.com").
					Post("/v1/send").
					Reply(200).
					Delay(2 * time.Second)
			},
			timeoutMs:      200,
			expectedError:  true,
			expectedErrMsg: "Client.Timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mockResponse()

			client := NewClient(pushURL, "key", tt.timeoutMs, discard)
			gock.InterceptClient(client.client)
			defer gock.RestoreClient(client.client)

			results, err := client.SendPush(context.Background(), []string{"a", "b", "c"},
				model.PushMessage{Title: "Venda aprovada", Body: "ok"})
			if tt.expectedError {
				require.Error(t, err)
				if tt.expectedErrMsg != "" {
					assert.Contains(t, err.Error(), tt.expectedErrMsg)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, results)
			}
			assert.True(t, gock.IsDone())
		})
	}
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(CodeUnregistered))
	assert.True(t, IsPermanent(CodeInvalidToken))
	assert.False(t, IsPermanent(CodeUnavailable))
	assert.False(t, IsPermanent(""))
}
