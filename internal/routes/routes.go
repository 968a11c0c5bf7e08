package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/agrobot-backend/internal/handlers"
	"github.com/Ananth-NQI/agrobot-backend/internal/middleware"
)

// Deps are the handlers and settings the routes need.
type Deps struct {
	WhatsApp *handlers.WhatsAppHandler
	Health   *handlers.HealthHandler
	Metrics  http.Handler

	// MediaDir is served under /media when quotes are published locally.
	MediaDir string

	// SkipWebhookValidation disables the Twilio signature check, for ngrok tunnels.
	SkipWebhookValidation bool
	TwilioAuthToken       string
	PublicURL             string

	// TestRoutes exposes POST /test/whatsapp.
	TestRoutes bool

	Logger *zap.Logger
}

// NewApp creates the fiber app with the error handler and the common middleware.
func NewApp(name string, accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	if accessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	return app
}

// SetupRoutes configures all routes
func SetupRoutes(app *fiber.App, d Deps) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	app.Get("/", d.Health.Info)
	app.Get("/health", d.Health.Check)
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics))
	}
	if d.MediaDir != "" {
		app.Static("/media", d.MediaDir, fiber.Static{Browse: false})
	}

	webhooks := app.Group("/webhook")
	if d.SkipWebhookValidation {
		log.Warn("WhatsApp webhook signature validation DISABLED")
		webhooks.Post("/whatsapp", d.WhatsApp.HandleWebhook)
	} else {
		webhooks.Post("/whatsapp",
			middleware.ValidateTwilioSignature(d.TwilioAuthToken, d.PublicURL, log),
			d.WhatsApp.HandleWebhook)
	}

	if d.TestRoutes {
		app.Post("/test/whatsapp", d.WhatsApp.HandleTestWebhook)
	}
}
