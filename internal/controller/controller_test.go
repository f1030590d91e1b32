package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nearmiss-bot/internal/dto"
	"nearmiss-bot/internal/pkg/logger"
	"nearmiss-bot/pkg/telegram"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	events []dto.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, event dto.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func TestAlive(t *testing.T) {
	app := fiber.New()
	NewHealthController().RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Bot is alive!", string(body))
}

func newWebhookApp(pub *capturePublisher, secret string) *fiber.App {
	app := fiber.New()
	NewWebhookController(pub, secret, logger.NewNopLogger()).RegisterRoutes(app)
	return app
}

func webhookRequest(body, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(telegram.SecretHeader, secret)
	}
	return req
}

const callbackUpdate = `{"update_id":10,"callback_query":{"id":"cb-9","from":{"id":42,"is_bot":false,"first_name":"A"},"data":"severity|High"}}`

func TestWebhook(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		secret     string
		sent       string
		pubErr     error
		wantStatus int
		wantEvents int
	}{
		{
			name:       "queues callback",
			body:       callbackUpdate,
			wantStatus: http.StatusOK,
			wantEvents: 1,
		},
		{
			name:       "accepts matching secret",
			body:       callbackUpdate,
			secret:     "s3cret",
			sent:       "s3cret",
			wantStatus: http.StatusOK,
			wantEvents: 1,
		},
		{
			name:       "rejects wrong secret",
			body:       callbackUpdate,
			secret:     "s3cret",
			sent:       "guess",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "ignores unsupported update",
			body:       `{"update_id":11,"edited_message":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"},"text":"x"}}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "rejects malformed json",
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "publish failure asks for redelivery",
			body:       callbackUpdate,
			pubErr:     errors.New("bus closed"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &capturePublisher{err: tt.pubErr}
			app := newWebhookApp(pub, tt.secret)

			resp, err := app.Test(webhookRequest(tt.body, tt.sent))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			require.Len(t, pub.events, tt.wantEvents)
			if tt.wantEvents > 0 {
				assert.Equal(t, dto.Event{
					UserID:       "42",
					Kind:         dto.EventKindButton,
					CallbackID:   "cb-9",
					CallbackData: "severity|High",
				}, pub.events[0])
			}
		})
	}
}
