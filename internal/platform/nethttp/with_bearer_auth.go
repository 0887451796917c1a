package nethttp

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// WithBearerSecret authenticates the scheduler tick entry point (§6):
// "Authorization: Bearer <tick secret>". A constant-time compare avoids
// leaking the secret's length or prefix through response timing.
func WithBearerSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)

		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			return Unauthorized(c, "0042", "Missing Bearer Token", "A valid Authorization: Bearer token is required.")
		}

		provided := strings.TrimPrefix(auth, prefix)

		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return Unauthorized(c, "0042", "Invalid Bearer Token", "The provided tick secret does not match.")
		}

		return c.Next()
	}
}
