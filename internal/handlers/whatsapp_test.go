package handlers

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

type fakeTurner struct {
	events []models.InboundEvent
	err    error
}

func (f *fakeTurner) Handle(_ context.Context, ev models.InboundEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestPayloadEvent(t *testing.T) {
	base := TwilioWebhookPayload{MessageSid: "SM1", From: "whatsapp:+5492364555123"}
	tests := []struct {
		name   string
		mutate func(p *TwilioWebhookPayload)
		want   models.InboundEvent
		ok     bool
	}{
		{
			name:   "text",
			mutate: func(p *TwilioWebhookPayload) { p.Body = "hola"; p.ProfileName = "Juan" },
			want:   models.InboundEvent{Type: models.EventText, Text: "hola", ProfileName: "Juan"},
			ok:     true,
		},
		{
			name:   "list reply",
			mutate: func(p *TwilioWebhookPayload) { p.ListID = "region_1"; p.ListTitle = "Córdoba"; p.Body = "Córdoba" },
			want:   models.InboundEvent{Type: models.EventInteractive, SelectionID: "region_1", Text: "Córdoba"},
			ok:     true,
		},
		{
			name:   "quick reply",
			mutate: func(p *TwilioWebhookPayload) { p.ButtonPayload = "quote_confirm"; p.ButtonText = "Generar cotización" },
			want:   models.InboundEvent{Type: models.EventButton, SelectionID: "quote_confirm", Text: "Generar cotización"},
			ok:     true,
		},
		{
			name:   "location",
			mutate: func(p *TwilioWebhookPayload) { p.Latitude = "-31.4201"; p.Longitude = "-64.1888" },
			want:   models.InboundEvent{Type: models.EventLocation, Latitude: -31.4201, Longitude: -64.1888},
			ok:     true,
		},
		{
			name: "image",
			mutate: func(p *TwilioWebhookPayload) {
				p.NumMedia = "1"
				p.MediaURL0 = "https://api.twilio.com/media/ME1"
				p.MediaContentType0 = "image/jpeg"
			},
			want: models.InboundEvent{Type: models.EventImage, MediaURL: "https://api.twilio.com/media/ME1", MediaType: "image/jpeg"},
			ok:   true,
		},
		{name: "status callback", mutate: func(p *TwilioWebhookPayload) { p.MessageStatus = "delivered" }},
		{name: "empty body", mutate: func(p *TwilioWebhookPayload) {}},
		{name: "missing sender", mutate: func(p *TwilioWebhookPayload) { p.From = ""; p.Body = "hola" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			ev, ok := p.Event(fixedNow)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			tt.want.ID = "SM1"
			tt.want.From = "+5492364555123"
			tt.want.ReceivedAt = fixedNow
			assert.Equal(t, tt.want, ev)
		})
	}
}

func newTestApp(t *testing.T, turner Turner) *fiber.App {
	h := NewWhatsAppHandler(turner, zaptest.NewLogger(t))
	h.now = func() time.Time { return fixedNow }
	app := fiber.New()
	app.Post("/webhook/whatsapp", h.HandleWebhook)
	app.Post("/test/whatsapp", h.HandleTestWebhook)
	return app
}

func postForm(t *testing.T, app *fiber.App, form url.Values) int {
	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestHandleWebhookAlwaysAcks(t *testing.T) {
	turner := &fakeTurner{err: errors.New("boom")}
	app := newTestApp(t, turner)

	code := postForm(t, app, url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+54"}, "Body": {"hola"}})
	assert.Equal(t, fiber.StatusOK, code)
	require.Len(t, turner.events, 1)
	assert.Equal(t, "hola", turner.events[0].Text)

	code = postForm(t, app, url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+54"}, "MessageStatus": {"read"}})
	assert.Equal(t, fiber.StatusOK, code)
	assert.Len(t, turner.events, 1)
}

func TestHandleTestWebhook(t *testing.T) {
	turner := &fakeTurner{}
	app := newTestApp(t, turner)

	req := httptest.NewRequest("POST", "/test/whatsapp", strings.NewReader(`{"from":"+54","selection_id":"region_1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"success":true`)

	require.Len(t, turner.events, 1)
	ev := turner.events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, models.EventInteractive, ev.Type)
	assert.Equal(t, fixedNow, ev.ReceivedAt)

	req = httptest.NewRequest("POST", "/test/whatsapp", strings.NewReader(`{"text":"hola"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

type stubPinger struct{ err error }

func (s stubPinger) PingContext(context.Context) error { return s.err }

type stubCounter map[models.Stage]int64

func (s stubCounter) CountByStage(context.Context) (map[models.Stage]int64, error) { return s, nil }

func TestHealth(t *testing.T) {
	h := NewHealthHandler("1.0.0", "production", "postgres", true, stubPinger{}, stubCounter{models.StageClosed: 3})
	app := fiber.New()
	app.Get("/", h.Info)
	app.Get("/health", h.Check)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"closed":3`)
	assert.Contains(t, string(body), `"database":"connected"`)

	down := NewHealthHandler("1.0.0", "production", "postgres", true, stubPinger{err: errors.New("refused")}, nil)
	app = fiber.New()
	app.Get("/health", down.Check)
	resp, err = app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
