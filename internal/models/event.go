package models

import "time"

// EventType is the kind of inbound WhatsApp message
type EventType string

const (
	EventText        EventType = "text"
	EventInteractive EventType = "interactive" // list picker reply, carries a selection id
	EventButton      EventType = "button"      // quick reply, carries label and optional payload
	EventLocation    EventType = "location"
	EventImage       EventType = "image" // any attachment
)

// InboundEvent is one delivered message. It is never persisted.
type InboundEvent struct {
	ID          string    `json:"id"`
	From        string    `json:"from"`
	Type        EventType `json:"type"`
	Text        string    `json:"text,omitempty"`
	SelectionID string    `json:"selection_id,omitempty"`
	Latitude    float64   `json:"latitude,omitempty"`
	Longitude   float64   `json:"longitude,omitempty"`
	MediaURL    string    `json:"media_url,omitempty"`
	MediaType   string    `json:"media_type,omitempty"`
	ProfileName string    `json:"profile_name,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}
