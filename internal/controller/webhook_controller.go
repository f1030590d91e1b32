// FILE: internal/controller/webhook_controller.go
package controller

import (
	"encoding/json"

	"nearmiss-bot/internal/pkg/logger"
	"nearmiss-bot/internal/pkg/serverutils"
	"nearmiss-bot/internal/service"
	"nearmiss-bot/pkg/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
)

const WebhookPath = "/telegram/webhook"

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	Receive(ctx *fiber.Ctx) error
}

type webhookController struct {
	publisher service.IEventPublisher
	secret    string
	logger    logger.ILogger
}

func NewWebhookController(publisher service.IEventPublisher, secret string, log logger.ILogger) IWebhookController {
	return &webhookController{
		publisher: publisher,
		secret:    secret,
		logger:    log,
	}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	r.Post(WebhookPath, serverutils.SecretHeaderMiddleware(telegram.SecretHeader, c.secret), c.Receive)
}

// Receive queues the update and answers right away. Telegram redelivers
// on any non-2xx status, so only a failed hand-off returns an error.
func (c *webhookController) Receive(ctx *fiber.Ctx) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(ctx.Body(), &update); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid update payload"))
	}

	event, ok := telegram.ToEvent(update)
	if !ok {
		return ctx.SendStatus(fiber.StatusOK)
	}

	if err := c.publisher.Publish(ctx.UserContext(), event); err != nil {
		c.logger.Error("SERVER", "Failed to queue webhook update", map[string]interface{}{
			"update_id": update.UpdateID,
			"error":     err.Error(),
		})
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, "Failed to queue update"))
	}
	return ctx.SendStatus(fiber.StatusOK)
}
