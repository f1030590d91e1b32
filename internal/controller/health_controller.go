// FILE: internal/controller/health_controller.go
package controller

import (
	"github.com/gofiber/fiber/v2"
)

const aliveMessage = "Bot is alive!"

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Alive(ctx *fiber.Ctx) error
}

type healthController struct{}

func NewHealthController() IHealthController {
	return &healthController{}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/", c.Alive)
}

func (c *healthController) Alive(ctx *fiber.Ctx) error {
	return ctx.SendString(aliveMessage)
}
