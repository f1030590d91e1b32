// FILE: internal/controller/media_controller.go
package controller

import (
	"net/http"
	"regexp"

	"nearmiss-bot/internal/pkg/logger"
	"nearmiss-bot/internal/pkg/serverutils"
	"nearmiss-bot/pkg/telegram"

	"github.com/gofiber/fiber/v2"
)

// Telegram file ids are URL-safe base64.
var fileIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// IFileLocator looks up the current download link of a Telegram file.
type IFileLocator interface {
	FileURL(fileID string) (string, error)
}

type IMediaController interface {
	RegisterRoutes(r fiber.Router)
	Serve(ctx *fiber.Ctx) error
}

type mediaController struct {
	files  IFileLocator
	client *http.Client
	logger logger.ILogger
}

func NewMediaController(files IFileLocator, client *http.Client, log logger.ILogger) IMediaController {
	return &mediaController{
		files:  files,
		client: client,
		logger: log,
	}
}

func (c *mediaController) RegisterRoutes(r fiber.Router) {
	r.Get(telegram.MediaPathPrefix+":file_id", c.Serve)
}

// Serve streams the attachment so the download link, which carries the
// bot token, never reaches the caller.
func (c *mediaController) Serve(ctx *fiber.Ctx) error {
	fileID := ctx.Params("file_id")
	if !fileIDPattern.MatchString(fileID) {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid file id"))
	}

	link, err := c.files.FileURL(fileID)
	if err != nil {
		c.logger.Warn("SERVER", "Media lookup failed", map[string]interface{}{
			"file_id": fileID,
			"error":   err.Error(),
		})
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Media not found"))
	}

	req, err := http.NewRequestWithContext(ctx.UserContext(), http.MethodGet, link, nil)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, "Failed to build media request"))
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("SERVER", "Media download failed", map[string]interface{}{"file_id": fileID})
		return ctx.Status(fiber.StatusBadGateway).JSON(serverutils.ErrorResponse(502, "Media download failed"))
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		c.logger.Error("SERVER", "Media download rejected", map[string]interface{}{
			"file_id": fileID,
			"status":  resp.StatusCode,
		})
		return ctx.Status(fiber.StatusBadGateway).JSON(serverutils.ErrorResponse(502, "Media download failed"))
	}

	if ct := resp.Header.Get(fiber.HeaderContentType); ct != "" {
		ctx.Set(fiber.HeaderContentType, ct)
	}
	ctx.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return ctx.Status(fiber.StatusOK).SendStream(resp.Body, int(resp.ContentLength))
}
