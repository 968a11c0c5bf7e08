package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// CRMSink posts the snapshot as JSON to a CRM intake webhook.
type CRMSink struct {
	url    string
	token  string
	client *http.Client
}

func NewCRMSink(url, token string) *CRMSink {
	return &CRMSink{url: url, token: token, client: &http.Client{Timeout: 10 * time.Second}}
}

func (c *CRMSink) Name() string { return "crm" }

type crmLead struct {
	Source   string          `json:"source"`
	Snapshot models.Snapshot `json:"lead"`
}

func (c *CRMSink) Write(ctx context.Context, snap models.Snapshot) error {
	body, err := json.Marshal(crmLead{Source: "whatsapp", Snapshot: snap})
	if err != nil {
		return fmt.Errorf("encode lead: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post lead: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("crm returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
