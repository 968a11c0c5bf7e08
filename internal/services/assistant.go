package services

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"google.golang.org/genai"

	"github.com/Ananth-NQI/agrobot-backend/internal/catalog"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// maxReplyRunes keeps replies under Twilio's 1600 character body limit.
const maxReplyRunes = 1500

type chatTurn struct {
	user bool
	text string
}

type generateFunc func(ctx context.Context, system string, turns []chatTurn) (string, error)

// LLMAssistant answers free-form questions with a hosted model.
type LLMAssistant struct {
	target   string
	system   string
	generate generateFunc
}

// NewGeminiAssistant uses the Gemini API.
func NewGeminiAssistant(ctx context.Context, apiKey, model string, cat *catalog.Catalog) (*LLMAssistant, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	generate := func(ctx context.Context, system string, turns []chatTurn) (string, error) {
		contents := make([]*genai.Content, 0, len(turns))
		for _, t := range turns {
			role := genai.Role(genai.RoleModel)
			if t.user {
				role = genai.RoleUser
			}
			contents = append(contents, genai.NewContentFromText(t.text, role))
		}
		temp := float32(0.3)
		res, err := client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			Temperature:       &temp,
			MaxOutputTokens:   512,
		})
		if err != nil {
			return "", fmt.Errorf("gemini generate content: %w", err)
		}
		return res.Text(), nil
	}
	return &LLMAssistant{target: "gemini", system: SystemPrompt(cat), generate: generate}, nil
}

// NewAnthropicAssistant uses the Anthropic Messages API.
func NewAnthropicAssistant(apiKey, model string, cat *catalog.Catalog) *LLMAssistant {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	generate := func(ctx context.Context, system string, turns []chatTurn) (string, error) {
		messages := make([]anthropic.MessageParam, 0, len(turns))
		for _, t := range turns {
			if t.user {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.text)))
			} else {
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.text)))
			}
		}
		msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       anthropic.Model(model),
			Messages:    messages,
			MaxTokens:   512,
			System:      []anthropic.TextBlockParam{{Text: system}},
			Temperature: param.NewOpt(0.3),
		})
		if err != nil {
			return "", fmt.Errorf("anthropic chat: %w", err)
		}
		var b strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		return b.String(), nil
	}
	return &LLMAssistant{target: "anthropic", system: SystemPrompt(cat), generate: generate}
}

// Reply implements dialog.Assistant.
func (a *LLMAssistant) Reply(ctx context.Context, text string, history []models.HistoryEntry) (string, models.Outcome) {
	reply, err := a.generate(ctx, a.system, chatTurns(history, text))
	if err != nil {
		return "", models.Failed(a.target, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", models.Failed(a.target, fmt.Errorf("%s returned empty text", a.target))
	}
	if r := []rune(reply); len(r) > maxReplyRunes {
		reply = strings.TrimSpace(string(r[:maxReplyRunes])) + "…"
	}
	return reply, models.Succeeded(a.target)
}

// chatTurns converts the session history plus the new message into alternating turns that
// start with the user. The newest message is dropped from history when it was already
// remembered.
func chatTurns(history []models.HistoryEntry, text string) []chatTurn {
	if n := len(history); n > 0 && history[n-1].Role == "user" && history[n-1].Text == text {
		history = history[:n-1]
	}
	var out []chatTurn
	add := func(user bool, s string) {
		if s == "" {
			return
		}
		if len(out) == 0 && !user {
			return
		}
		if len(out) > 0 && out[len(out)-1].user == user {
			out[len(out)-1].text += "\n" + s
			return
		}
		out = append(out, chatTurn{user: user, text: s})
	}
	for _, h := range history {
		add(h.Role == "user", h.Text)
	}
	add(true, text)
	return out
}

// SystemPrompt describes the business and its canned answers to the model.
func SystemPrompt(cat *catalog.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sos el asistente de WhatsApp de %s, un distribuidor de insumos agrícolas en Argentina. ", cat.Business.Name)
	b.WriteString("Respondé en español rioplatense, en no más de tres oraciones, sin inventar precios ni stock. ")
	b.WriteString("Si no sabés la respuesta, ofrecé hablar con un asesor escribiendo \"asesor\".\n")
	if cat.Business.Address != "" {
		fmt.Fprintf(&b, "Dirección: %s.\n", cat.Business.Address)
	}
	if cat.Business.Hours != "" {
		fmt.Fprintf(&b, "Horario: %s.\n", cat.Business.Hours)
	}
	faq := []struct{ topic, answer string }{
		{"Precios", cat.FAQ.Price},
		{"Disponibilidad", cat.FAQ.Availability},
		{"Envíos", cat.FAQ.Shipping},
		{"Pagos", cat.FAQ.Payment},
	}
	for _, f := range faq {
		if f.answer != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.topic, f.answer)
		}
	}
	if len(cat.Categories) > 0 {
		fmt.Fprintf(&b, "Cultivos atendidos: %s.\n", strings.Join(cat.Categories, ", "))
	}
	return b.String()
}
