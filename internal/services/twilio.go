package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/agrobot-backend/internal/config"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

const targetTwilio = "twilio"

// messageAPI is the part of the Twilio REST client used here.
type messageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioService sends WhatsApp messages through the Twilio Messages API.
type TwilioService struct {
	api       messageAPI
	from      string // whatsapp:+14155238886
	templates *TemplateRegistry
	logger    *zap.Logger
}

// NewTwilioService creates a messenger from the Twilio settings.
func NewTwilioService(cfg config.Twilio, logger *zap.Logger) (*TwilioService, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("missing Twilio credentials: TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_WHATSAPP_FROM are required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioService(client.Api, cfg.From, NewTemplateRegistry(cfg.ContentSIDs), logger), nil
}

func newTwilioService(api messageAPI, from string, templates *TemplateRegistry, logger *zap.Logger) *TwilioService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}
	if templates == nil {
		templates = NewTemplateRegistry(nil)
	}
	return &TwilioService{api: api, from: from, templates: templates, logger: logger.Named("twilio")}
}

func (t *TwilioService) params(to string) *twilioApi.CreateMessageParams {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo("whatsapp:" + strings.TrimPrefix(to, "whatsapp:"))
	return params
}

func (t *TwilioService) send(kind string, params *twilioApi.CreateMessageParams) models.Outcome {
	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return models.Failed(targetTwilio, fmt.Errorf("send %s: %w", kind, err))
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return models.Failed(targetTwilio, fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg))
	}
	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	t.logger.Debug("message sent", zap.String("kind", kind), zap.String("sid", sid))
	return models.Succeeded(targetTwilio)
}

// SendText sends a plain WhatsApp message.
func (t *TwilioService) SendText(_ context.Context, to, body string) models.Outcome {
	params := t.params(to)
	params.SetBody(body)
	return t.send("text", params)
}

// SendMenu sends the menu as a content template when one is registered for its name,
// and as a text list otherwise.
func (t *TwilioService) SendMenu(_ context.Context, to string, menu models.Menu) models.Outcome {
	params := t.params(to)
	if tpl, ok := t.templates.Lookup(menu.Name); ok {
		vars, err := tpl.Variables(menu)
		if err != nil {
			return models.Failed(targetTwilio, err)
		}
		params.SetContentSid(tpl.SID)
		params.SetContentVariables(vars)
		return t.send("template", params)
	}
	params.SetBody(RenderMenuText(menu))
	return t.send("menu", params)
}

// SendImage sends an image with an optional caption.
func (t *TwilioService) SendImage(_ context.Context, to, mediaURL, caption string) models.Outcome {
	return t.sendMedia("image", to, mediaURL, caption)
}

// SendDocument sends a document, e.g. the quote PDF.
func (t *TwilioService) SendDocument(_ context.Context, to, mediaURL, caption string) models.Outcome {
	return t.sendMedia("document", to, mediaURL, caption)
}

func (t *TwilioService) sendMedia(kind, to, mediaURL, caption string) models.Outcome {
	if mediaURL == "" {
		return models.Failed(targetTwilio, fmt.Errorf("send %s: empty media url", kind))
	}
	params := t.params(to)
	params.SetMediaUrl([]string{mediaURL})
	if caption != "" {
		params.SetBody(caption)
	}
	return t.send(kind, params)
}

// RenderMenuText renders a menu for channels without interactive templates.
func RenderMenuText(menu models.Menu) string {
	var b strings.Builder
	b.WriteString(menu.Body)
	if len(menu.Options) > 0 {
		b.WriteString("\n")
	}
	for i, opt := range menu.Options {
		b.WriteString("\n")
		if menu.Numbered {
			fmt.Fprintf(&b, "%d. %s", i+1, opt.Title)
		} else {
			b.WriteString("• " + opt.Title)
		}
	}
	return b.String()
}
