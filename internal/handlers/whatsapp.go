package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// turnTimeout bounds one inbound event, including outbound sends.
const turnTimeout = 25 * time.Second

// Turner handles one inbound event.
type Turner interface {
	Handle(ctx context.Context, ev models.InboundEvent) error
}

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	engine Turner
	logger *zap.Logger
	now    func() time.Time
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(engine Turner, logger *zap.Logger) *WhatsAppHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhatsAppHandler{engine: engine, logger: logger.Named("webhook"), now: time.Now}
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid        string `form:"MessageSid"`
	AccountSid        string `form:"AccountSid"`
	From              string `form:"From"` // whatsapp:+5492364555123
	To                string `form:"To"`
	Body              string `form:"Body"`
	MessageType       string `form:"MessageType"`
	ButtonPayload     string `form:"ButtonPayload"`
	ButtonText        string `form:"ButtonText"`
	ListID            string `form:"ListId"`
	ListTitle         string `form:"ListTitle"`
	Latitude          string `form:"Latitude"`
	Longitude         string `form:"Longitude"`
	NumMedia          string `form:"NumMedia"`
	MediaURL0         string `form:"MediaUrl0"`
	MediaContentType0 string `form:"MediaContentType0"`
	ProfileName       string `form:"ProfileName"`
	MessageStatus     string `form:"MessageStatus"`
}

// Event converts the form payload. ok is false for status callbacks and empty payloads.
func (p TwilioWebhookPayload) Event(now time.Time) (models.InboundEvent, bool) {
	if p.From == "" || p.MessageSid == "" || p.MessageStatus != "" {
		return models.InboundEvent{}, false
	}
	ev := models.InboundEvent{
		ID:          p.MessageSid,
		From:        strings.TrimPrefix(p.From, "whatsapp:"),
		Type:        models.EventText,
		Text:        p.Body,
		ProfileName: p.ProfileName,
		ReceivedAt:  now,
	}
	lat, latErr := strconv.ParseFloat(p.Latitude, 64)
	lng, lngErr := strconv.ParseFloat(p.Longitude, 64)
	media, _ := strconv.Atoi(p.NumMedia)

	switch {
	case p.ListID != "":
		ev.Type = models.EventInteractive
		ev.SelectionID = p.ListID
		ev.Text = firstNonEmpty(p.ListTitle, p.Body)
	case p.ButtonPayload != "" || p.ButtonText != "":
		ev.Type = models.EventButton
		ev.SelectionID = p.ButtonPayload
		ev.Text = firstNonEmpty(p.ButtonText, p.Body)
	case latErr == nil && lngErr == nil:
		ev.Type = models.EventLocation
		ev.Latitude, ev.Longitude = lat, lng
	case media > 0 && p.MediaURL0 != "":
		ev.Type = models.EventImage
		ev.MediaURL = p.MediaURL0
		ev.MediaType = p.MediaContentType0
	case p.Body == "":
		return models.InboundEvent{}, false
	}
	return ev, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// HandleWebhook processes incoming WhatsApp messages. Twilio always gets a 200 once the
// payload parsed, so a failing turn is not redelivered.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.Warn("invalid webhook payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	ev, ok := payload.Event(h.now())
	if !ok {
		return c.SendStatus(fiber.StatusOK)
	}
	h.logger.Info("inbound message",
		zap.String("from", ev.From), zap.String("sid", ev.ID), zap.String("type", string(ev.Type)))

	_ = h.dispatch(c.UserContext(), ev)
	return c.SendStatus(fiber.StatusOK)
}

func (h *WhatsAppHandler) dispatch(parent context.Context, ev models.InboundEvent) error {
	ctx, cancel := context.WithTimeout(parent, turnTimeout)
	defer cancel()
	if err := h.engine.Handle(ctx, ev); err != nil {
		h.logger.Error("turn failed", zap.String("from", ev.From), zap.String("sid", ev.ID), zap.Error(err))
		return err
	}
	return nil
}

// HandleTestWebhook accepts an InboundEvent as JSON, for development without Twilio.
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var ev models.InboundEvent
	if err := c.BodyParser(&ev); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}
	if ev.From == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from is required",
		})
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = h.now()
	}
	if ev.Type == "" {
		ev.Type = models.EventText
		if ev.SelectionID != "" {
			ev.Type = models.EventInteractive
		}
	}

	if err := h.dispatch(c.UserContext(), ev); err != nil {
		return c.JSON(fiber.Map{"success": false, "id": ev.ID, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "id": ev.ID})
}
