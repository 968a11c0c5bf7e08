package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// Pinger reports whether the database answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StageCounter counts stored sessions per stage.
type StageCounter interface {
	CountByStage(ctx context.Context) (map[models.Stage]int64, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version     string
	Environment string
	Storage     string
	Twilio      bool

	db       Pinger
	sessions StageCounter
}

// NewHealthHandler creates a new health handler. db and sessions may be nil when the
// service runs without postgres.
func NewHealthHandler(version, environment, storage string, twilio bool, db Pinger, sessions StageCounter) *HealthHandler {
	return &HealthHandler{
		Version:     version,
		Environment: environment,
		Storage:     storage,
		Twilio:      twilio,
		db:          db,
		sessions:    sessions,
	}
}

func (h *HealthHandler) dbStatus(ctx context.Context) (string, bool) {
	if h.db == nil {
		return "not used", true
	}
	if err := h.db.PingContext(ctx); err != nil {
		return "error: " + err.Error(), false
	}
	return "connected", true
}

// Check returns 503 when the database is configured but unreachable.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	_, healthy := h.dbStatus(c.UserContext())
	status, code := "healthy", fiber.StatusOK
	if !healthy {
		status, code = "unhealthy", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"services": fiber.Map{
			"database": healthy,
			"twilio":   h.Twilio,
		},
	})
}

// Info describes the service, with session counts per stage when available.
func (h *HealthHandler) Info(c *fiber.Ctx) error {
	dbStatus, _ := h.dbStatus(c.UserContext())
	resp := fiber.Map{
		"service":     "Agrobot WhatsApp intake",
		"version":     h.Version,
		"status":      "healthy",
		"environment": h.Environment,
		"storage":     h.Storage,
		"database":    dbStatus,
		"whatsapp": fiber.Map{
			"configured": h.Twilio,
		},
		"endpoints": fiber.Map{
			"health":        "/health",
			"webhook":       "/webhook/whatsapp",
			"test_whatsapp": "/test/whatsapp",
			"metrics":       "/metrics",
		},
	}
	if h.sessions != nil {
		counts, err := h.sessions.CountByStage(c.UserContext())
		if err != nil {
			resp["sessions"] = fiber.Map{"error": err.Error()}
		} else {
			resp["sessions"] = counts
		}
	}
	return c.JSON(resp)
}
