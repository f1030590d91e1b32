package controller

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"nearmiss-bot/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLocator map[string]string

func (m mapLocator) FileURL(fileID string) (string, error) {
	link, ok := m[fileID]
	if !ok {
		return "", errors.New("file not found")
	}
	return link, nil
}

func newMediaApp(t *testing.T) *fiber.App {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/file/botTOKEN/broken.jpg" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	t.Cleanup(upstream.Close)

	locator := mapLocator{
		"AgACAgU-x_1": upstream.URL + "/file/botTOKEN/photos/p.jpg",
		"broken":      upstream.URL + "/file/botTOKEN/broken.jpg",
	}
	app := fiber.New()
	NewMediaController(locator, upstream.Client(), logger.NewNopLogger()).RegisterRoutes(app)
	return app
}

func TestMediaStreamsWithoutRedirect(t *testing.T) {
	app := newMediaApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/media/AgACAgU-x_1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Empty(t, resp.Header.Get("Location"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(body))
	assert.NotContains(t, string(body), "TOKEN")
}

func TestMediaErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "unknown file", path: "/media/missing", wantStatus: http.StatusNotFound},
		{name: "malformed id", path: "/media/a.b", wantStatus: http.StatusBadRequest},
		{name: "upstream failure", path: "/media/broken", wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newMediaApp(t)
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.NotContains(t, string(body), "TOKEN")
		})
	}
}
