package models

import (
	"time"
)

// SessionRecord is the database row of a conversation session. The session itself is kept
// as a JSON document so new fields do not need a schema migration.
type SessionRecord struct {
	Phone         string    `gorm:"primaryKey;size:32" json:"phone"`
	SchemaVersion int       `json:"schema_version"`
	Stage         string    `gorm:"index;size:16" json:"stage"`
	Data          []byte    `gorm:"not null" json:"data"`
	UpdatedAt     time.Time `gorm:"index" json:"updated_at"`
}

// TableName implements the gorm tabler interface.
func (SessionRecord) TableName() string { return "whatsapp_sessions" }

// ProcessedEvent records an inbound event id for duplicate suppression.
type ProcessedEvent struct {
	EventID   string    `gorm:"primaryKey;size:64" json:"event_id"`
	FirstSeen time.Time `gorm:"not null" json:"first_seen"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
}

// TableName implements the gorm tabler interface.
func (ProcessedEvent) TableName() string { return "processed_events" }
