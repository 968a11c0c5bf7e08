package models

import (
	"time"
)

// SessionSchemaVersion is the version written by the current code. Older records are
// migrated on read by the storage layer.
const SessionSchemaVersion = 2

// SessionRetention is how long an idle conversation is kept before it is recreated.
const SessionRetention = 7 * 24 * time.Hour

// Stage is one phase of the intake conversation
type Stage string

const (
	StageDiscovery Stage = "discovery"
	StageProduct   Stage = "product"
	StageCheckout  Stage = "checkout"
	StageClosed    Stage = "closed"
)

var stageOrder = map[Stage]int{
	StageDiscovery: 0,
	StageProduct:   1,
	StageCheckout:  2,
	StageClosed:    3,
}

// Rank returns the position of the stage in the lifecycle, -1 for unknown stages.
func (s Stage) Rank() int {
	if r, ok := stageOrder[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	return s.Rank() >= 0
}

// SlotKind names a single fact collected from the user
type SlotKind string

const (
	SlotFullName  SlotKind = "full_name"
	SlotRegion    SlotKind = "region"
	SlotSubRegion SlotKind = "sub_region"
	SlotCategory  SlotKind = "category"
	SlotQuantity  SlotKind = "quantity"
	SlotCampaign  SlotKind = "campaign"
)

// Slots holds the collected facts. Empty string means not set yet.
type Slots struct {
	FullName  string `json:"full_name"`
	Region    string `json:"region"`
	SubRegion string `json:"sub_region"`
	Category  string `json:"category"`
	Quantity  string `json:"quantity"`
	Campaign  string `json:"campaign"`
}

// Get returns the value of a slot
func (s *Slots) Get(kind SlotKind) string {
	switch kind {
	case SlotFullName:
		return s.FullName
	case SlotRegion:
		return s.Region
	case SlotSubRegion:
		return s.SubRegion
	case SlotCategory:
		return s.Category
	case SlotQuantity:
		return s.Quantity
	case SlotCampaign:
		return s.Campaign
	}
	return ""
}

// Fill sets a slot only when it is still empty. It returns true when the value was written.
func (s *Slots) Fill(kind SlotKind, value string) bool {
	if value == "" || s.Get(kind) != "" {
		return false
	}
	switch kind {
	case SlotFullName:
		s.FullName = value
	case SlotRegion:
		s.Region = value
	case SlotSubRegion:
		s.SubRegion = value
	case SlotCategory:
		s.Category = value
	case SlotQuantity:
		s.Quantity = value
	case SlotCampaign:
		s.Campaign = value
	default:
		return false
	}
	return true
}

// CartItem is a single quote line
type CartItem struct {
	Name  string   `json:"name"`
	Qty   float64  `json:"qty"`
	Price *float64 `json:"price"`
	SKU   string   `json:"sku,omitempty"`
}

// Subtotal returns qty*price, or nil for unpriced lines.
func (c CartItem) Subtotal() *float64 {
	if c.Price == nil {
		return nil
	}
	v := c.Qty * *c.Price
	return &v
}

// GeoPoint is a shared WhatsApp location
type GeoPoint struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	SharedAt  time.Time `json:"shared_at"`
}

// HistoryEntry is one line of recent conversation, fed to the AI fallback.
type HistoryEntry struct {
	Role string    `json:"role"` // "user" or "bot"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// MaxHistory caps Session.History
const MaxHistory = 6

// Session is the per-conversation state persisted between turns
type Session struct {
	SchemaVersion int               `json:"schema_version"`
	ID            string            `json:"id"` // phone number without the whatsapp: prefix
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Stage         Stage             `json:"stage"`
	Slots         Slots             `json:"slots"`
	Cart          []CartItem        `json:"cart"`
	PausedUntil   *time.Time        `json:"paused_until"`
	LastEventID   string            `json:"last_event_id"`
	Location      *GeoPoint         `json:"location,omitempty"`
	Retries       map[SlotKind]int  `json:"retries"`
	Hinted        map[SlotKind]bool `json:"hinted"`
	Metadata      map[string]string `json:"metadata"`
	History       []HistoryEntry    `json:"history"`
}

// NewSession returns the default record for a brand-new conversation.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		SchemaVersion: SessionSchemaVersion,
		ID:            id,
		CreatedAt:     now,
		UpdatedAt:     now,
		Stage:         StageDiscovery,
		Cart:          []CartItem{},
		Retries:       make(map[SlotKind]int),
		Hinted:        make(map[SlotKind]bool),
		Metadata:      make(map[string]string),
		History:       []HistoryEntry{},
	}
}

// Expired reports whether the session has been idle longer than the retention window.
func (s *Session) Expired(now time.Time) bool {
	last := s.UpdatedAt
	if last.IsZero() {
		last = s.CreatedAt
	}
	return now.Sub(last) > SessionRetention
}

// Paused reports whether a human operator currently owns the conversation.
func (s *Session) Paused(now time.Time) bool {
	return s.PausedUntil != nil && now.Before(*s.PausedUntil)
}

// Advance moves the stage forward. Moving backward or to an unknown stage is ignored.
func (s *Session) Advance(to Stage) bool {
	if !to.Valid() || to.Rank() <= s.Stage.Rank() {
		return false
	}
	s.Stage = to
	return true
}

// Remember appends a history line, keeping only the last MaxHistory entries.
func (s *Session) Remember(role, text string, at time.Time) {
	if text == "" {
		return
	}
	s.History = append(s.History, HistoryEntry{Role: role, Text: text, At: at})
	if len(s.History) > MaxHistory {
		s.History = s.History[len(s.History)-MaxHistory:]
	}
}

// Snapshot is the finalized view of a session handed to record-keeping sinks.
type Snapshot struct {
	SessionID string     `json:"session_id"`
	Phone     string     `json:"phone"`
	Stage     Stage      `json:"stage"`
	Slots     Slots      `json:"slots"`
	Cart      []CartItem `json:"cart"`
	QuoteID   string     `json:"quote_id,omitempty"`
	QuoteURL  string     `json:"quote_url,omitempty"`
	Location  *GeoPoint  `json:"location,omitempty"`
	ClosedAt  time.Time  `json:"closed_at"`
}
