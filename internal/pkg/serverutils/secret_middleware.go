// FILE: internal/pkg/serverutils/secret_middleware.go
package serverutils

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// SecretHeaderMiddleware rejects requests whose header does not carry secret.
// An empty secret disables the check.
func SecretHeaderMiddleware(header, secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if secret == "" {
			return ctx.Next()
		}
		got := ctx.Get(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid secret token"))
		}
		return ctx.Next()
	}
}
