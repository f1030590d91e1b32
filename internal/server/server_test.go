package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nearmiss-bot/internal/bootstrap"
	"nearmiss-bot/internal/config"
	"nearmiss-bot/internal/controller"
	"nearmiss-bot/internal/pkg/logger"
	"nearmiss-bot/internal/pkg/metrics"
	"nearmiss-bot/internal/service"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noFiles struct{}

func (noFiles) FileURL(string) (string, error) { return "", errors.New("no files") }

func newTestServer(t *testing.T, mode string) *Server {
	cfg := &config.Config{
		App:      config.AppConfig{Port: "0", EventTopic: "test.events"},
		Telegram: config.TelegramConfig{Mode: mode},
	}
	bus := service.NewEventBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	reg := prometheus.NewRegistry()
	metrics.NewPrometheusRecorder(reg).IncCommitted()

	log := logger.NewNopLogger()
	c := &bootstrap.Container{
		Config:            cfg,
		Logger:            log,
		Registry:          reg,
		HealthController:  controller.NewHealthController(),
		WebhookController: controller.NewWebhookController(service.NewEventPublisher(bus, "test.events"), "", log),
		MediaController:   controller.NewMediaController(noFiles{}, http.DefaultClient, log),
	}
	return New(cfg, c)
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t, config.BotModePolling)

	resp, err := srv.GetApp().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.GetApp().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "nearmiss_reports_committed_total 1")

	resp, err = srv.GetApp().Test(httptest.NewRequest(http.MethodGet, "/media/unknown", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = srv.GetApp().Test(httptest.NewRequest(http.MethodPost, controller.WebhookPath, strings.NewReader("{}")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebhookRouteInWebhookMode(t *testing.T) {
	srv := newTestServer(t, config.BotModeWebhook)

	req := httptest.NewRequest(http.MethodPost, controller.WebhookPath, strings.NewReader(`{"update_id":1}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.GetApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
