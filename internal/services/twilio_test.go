package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap/zaptest"

	"github.com/Ananth-NQI/agrobot-backend/internal/config"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

type fakeAPI struct {
	calls []*twilioApi.CreateMessageParams
	err   error
	code  int
}

func (f *fakeAPI) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	msg := &twilioApi.ApiV2010Message{Sid: &sid}
	if f.code != 0 {
		text := "rejected"
		msg.ErrorCode = &f.code
		msg.ErrorMessage = &text
	}
	return msg, nil
}

func (f *fakeAPI) last() *twilioApi.CreateMessageParams {
	return f.calls[len(f.calls)-1]
}

var regionMenu = models.Menu{
	Name:     "region",
	Body:     "¿De qué provincia?",
	Numbered: true,
	Options: []models.MenuOption{
		{ID: "region_0", Title: "Buenos Aires"},
		{ID: "region_1", Title: "Córdoba"},
	},
}

func TestTwilioSendText(t *testing.T) {
	api := &fakeAPI{}
	svc := newTwilioService(api, "+14155238886", nil, zaptest.NewLogger(t))

	out := svc.SendText(context.Background(), "whatsapp:+5492364555123", "hola")
	require.True(t, out.OK())
	p := api.last()
	assert.Equal(t, "whatsapp:+14155238886", *p.From)
	assert.Equal(t, "whatsapp:+5492364555123", *p.To)
	assert.Equal(t, "hola", *p.Body)
}

func TestTwilioSendMenuFallsBackToText(t *testing.T) {
	api := &fakeAPI{}
	svc := newTwilioService(api, "whatsapp:+1", nil, zaptest.NewLogger(t))

	require.True(t, svc.SendMenu(context.Background(), "+54", regionMenu).OK())
	p := api.last()
	assert.Nil(t, p.ContentSid)
	assert.Equal(t, "¿De qué provincia?\n\n1. Buenos Aires\n2. Córdoba", *p.Body)
}

func TestTwilioSendMenuUsesTemplate(t *testing.T) {
	api := &fakeAPI{}
	reg := NewTemplateRegistry(map[string]string{"region": "HXregion", "bogus": "HX0"})
	svc := newTwilioService(api, "whatsapp:+1", reg, zaptest.NewLogger(t))
	assert.Equal(t, 1, reg.Len())

	require.True(t, svc.SendMenu(context.Background(), "+54", regionMenu).OK())
	p := api.last()
	require.NotNil(t, p.ContentSid)
	assert.Equal(t, "HXregion", *p.ContentSid)

	var vars map[string]string
	require.NoError(t, json.Unmarshal([]byte(*p.ContentVariables), &vars))
	assert.Equal(t, map[string]string{
		"1": "¿De qué provincia?",
		"2": "Buenos Aires", "3": "region_0",
		"4": "Córdoba", "5": "region_1",
	}, vars)
}

func TestTwilioTemplateTooManyOptions(t *testing.T) {
	api := &fakeAPI{}
	reg := NewTemplateRegistry(map[string]string{"category": "HXcat"})
	svc := newTwilioService(api, "whatsapp:+1", reg, zaptest.NewLogger(t))

	menu := models.Menu{Name: "category", Body: "?"}
	for i := 0; i < 11; i++ {
		menu.Options = append(menu.Options, models.MenuOption{ID: "x", Title: "y"})
	}
	out := svc.SendMenu(context.Background(), "+54", menu)
	assert.False(t, out.OK())
	assert.Empty(t, api.calls)
}

func TestTwilioSendDocument(t *testing.T) {
	api := &fakeAPI{}
	svc := newTwilioService(api, "whatsapp:+1", nil, zaptest.NewLogger(t))

	require.True(t, svc.SendDocument(context.Background(), "+54", "https://media.test/Q1.pdf", "📄 Cotización Q1").OK())
	p := api.last()
	assert.Equal(t, []string{"https://media.test/Q1.pdf"}, *p.MediaUrl)
	assert.Equal(t, "📄 Cotización Q1", *p.Body)

	assert.False(t, svc.SendImage(context.Background(), "+54", "", "").OK())
}

func TestTwilioFailures(t *testing.T) {
	api := &fakeAPI{err: errors.New("connection reset")}
	svc := newTwilioService(api, "whatsapp:+1", nil, zaptest.NewLogger(t))
	out := svc.SendText(context.Background(), "+54", "hola")
	assert.False(t, out.OK())
	assert.Equal(t, targetTwilio, out.Target)
	assert.Contains(t, out.Reason(), "connection reset")

	api = &fakeAPI{code: 63016}
	svc = newTwilioService(api, "whatsapp:+1", nil, zaptest.NewLogger(t))
	out = svc.SendText(context.Background(), "+54", "hola")
	assert.False(t, out.OK())
	assert.Contains(t, out.Reason(), "63016")
}

func TestNewTwilioServiceRequiresCredentials(t *testing.T) {
	_, err := NewTwilioService(config.Twilio{AccountSID: "AC1"}, nil)
	assert.Error(t, err)

	svc, err := NewTwilioService(config.Twilio{AccountSID: "AC1", AuthToken: "tok", From: "whatsapp:+1"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestRenderMenuText(t *testing.T) {
	menu := models.Menu{Body: "¿Cuántas hectáreas?", Options: []models.MenuOption{{Title: "0-50 ha"}, {Title: "50-200 ha"}}}
	assert.Equal(t, "¿Cuántas hectáreas?\n\n• 0-50 ha\n• 50-200 ha", RenderMenuText(menu))
	assert.Equal(t, "solo texto", RenderMenuText(models.Menu{Body: "solo texto"}))
}

func TestConsoleMessenger(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleMessenger(&buf)
	require.True(t, c.SendText(context.Background(), "+54", "hola").OK())
	require.True(t, c.SendDocument(context.Background(), "+54", "file:///tmp/q.pdf", "cap").OK())
	assert.Contains(t, buf.String(), "🤖 hola")
	assert.Contains(t, buf.String(), "[documento] file:///tmp/q.pdf")
}
