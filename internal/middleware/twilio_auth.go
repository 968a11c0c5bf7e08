package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/twilio/twilio-go/client"
	"go.uber.org/zap"
)

// ValidateTwilioSignature validates that the webhook request is from Twilio. publicURL,
// when set, replaces the scheme and host seen by the server, which differ behind a proxy.
func ValidateTwilioSignature(authToken, publicURL string, logger *zap.Logger) fiber.Handler {
	validator := client.NewRequestValidator(authToken)
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		signature := c.Get("X-Twilio-Signature")
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}
		if authToken == "" {
			logger.Error("TWILIO_AUTH_TOKEN not set, rejecting webhook")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		params := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})

		url := requestURL(c, publicURL)
		if !validator.Validate(url, params, signature) {
			logger.Warn("invalid Twilio signature", zap.String("url", url), zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}
		return c.Next()
	}
}

// requestURL rebuilds the URL Twilio signed.
func requestURL(c *fiber.Ctx, publicURL string) string {
	if publicURL != "" {
		return publicURL + c.OriginalURL()
	}
	protocol := "https"
	if c.Protocol() == "http" && c.Get("X-Forwarded-Proto") != "https" {
		protocol = "http"
	}
	return protocol + "://" + c.Hostname() + c.OriginalURL()
}
