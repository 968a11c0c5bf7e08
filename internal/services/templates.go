package services

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// maxTemplateOptions is the WhatsApp list picker limit.
const maxTemplateOptions = 10

// TemplateConfig holds template configuration
type TemplateConfig struct {
	SID         string
	Description string
	Parameters  []string
}

// Variables renders the content variables of a menu: "1" is the body, then each option
// contributes its title and its id.
func (t TemplateConfig) Variables(menu models.Menu) (string, error) {
	titles := make([]string, len(menu.Options))
	ids := make([]string, len(menu.Options))
	for i, opt := range menu.Options {
		titles[i], ids[i] = opt.Title, opt.ID
	}
	return templateVariables(menu.Body, titles, ids)
}

// menuTemplates describes the content templates a deployment may register per menu name.
var menuTemplates = map[string]TemplateConfig{
	"region": {
		Description: "Province list picker",
		Parameters:  []string{"body", "options"},
	},
	"sub_region": {
		Description: "Zone list picker, scoped to the chosen province",
		Parameters:  []string{"body", "options"},
	},
	"category": {
		Description: "Crop list picker",
		Parameters:  []string{"body", "options"},
	},
	"quantity": {
		Description: "Surface range list picker",
		Parameters:  []string{"body", "options"},
	},
	"campaign": {
		Description: "Campaign quick reply (fina / gruesa)",
		Parameters:  []string{"body", "options"},
	},
	"quote_cta": {
		Description: "Single quick reply that triggers the quote",
		Parameters:  []string{"body", "options"},
	},
}

// TemplateRegistry maps menu names to Twilio content template SIDs.
type TemplateRegistry struct {
	templates map[string]TemplateConfig
}

// NewTemplateRegistry keeps the SIDs registered for known menus. Unknown names are ignored.
func NewTemplateRegistry(sids map[string]string) *TemplateRegistry {
	r := &TemplateRegistry{templates: make(map[string]TemplateConfig)}
	for name, sid := range sids {
		tpl, ok := menuTemplates[name]
		if !ok || sid == "" {
			continue
		}
		tpl.SID = sid
		r.templates[name] = tpl
	}
	return r
}

// Lookup returns the template registered for a menu.
func (r *TemplateRegistry) Lookup(name string) (TemplateConfig, bool) {
	tpl, ok := r.templates[name]
	return tpl, ok
}

// Len returns the number of registered templates.
func (r *TemplateRegistry) Len() int {
	return len(r.templates)
}

func templateVariables(body string, titles, ids []string) (string, error) {
	if len(titles) > maxTemplateOptions {
		return "", fmt.Errorf("menu has %d options, templates allow %d", len(titles), maxTemplateOptions)
	}
	vars := map[string]string{"1": body}
	n := 2
	for i := range titles {
		vars[strconv.Itoa(n)] = titles[i]
		vars[strconv.Itoa(n+1)] = ids[i]
		n += 2
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("failed to marshal content variables: %w", err)
	}
	return string(data), nil
}
