package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// sessionV1 is the flat record written before slots and retry bookkeeping were grouped.
// Records without a schema_version field are treated as version 1.
type sessionV1 struct {
	Phone       string            `json:"phone"`
	LastTouch   int64             `json:"last_touch"`
	Stage       string            `json:"stage"`
	Name        string            `json:"name"`
	Region      string            `json:"region"`
	Subregion   string            `json:"subregion"`
	Crop        string            `json:"crop"`
	Hectares    string            `json:"hectares"`
	Campaign    string            `json:"campaign"`
	Cart        []models.CartItem `json:"cart"`
	PausedUntil int64             `json:"paused_until"`
	LastMsgID   string            `json:"last_msg_id"`
	Meta        map[string]string `json:"meta"`
}

// migrations[n] rewrites a version n document into version n+1.
var migrations = map[int]func([]byte) ([]byte, error){
	1: migrateV1,
}

func migrateV1(data []byte) ([]byte, error) {
	var old sessionV1
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, fmt.Errorf("decode v1: %w", err)
	}
	touched := time.Unix(old.LastTouch, 0).UTC()
	if old.Stage == "" {
		old.Stage = string(models.StageDiscovery)
	}
	next := map[string]any{
		"schema_version": 2,
		"id":             old.Phone,
		"created_at":     touched,
		"updated_at":     touched,
		"stage":          old.Stage,
		"slots": models.Slots{
			FullName:  old.Name,
			Region:    old.Region,
			SubRegion: old.Subregion,
			Category:  old.Crop,
			Quantity:  old.Hectares,
			Campaign:  old.Campaign,
		},
		"cart":          old.Cart,
		"last_event_id": old.LastMsgID,
		"metadata":      old.Meta,
	}
	if old.PausedUntil > 0 {
		next["paused_until"] = time.Unix(old.PausedUntil, 0).UTC()
	}
	return json.Marshal(next)
}

// decode migrates a stored document to the current schema and merges it over a default
// session, so fields missing from older documents keep their default values.
func decode(rec *Record) (*models.Session, error) {
	if len(rec.Data) == 0 {
		return nil, fmt.Errorf("empty record")
	}
	var head struct {
		SchemaVersion *int `json:"schema_version"`
	}
	if err := json.Unmarshal(rec.Data, &head); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	version := 1
	if head.SchemaVersion != nil {
		version = *head.SchemaVersion
	}
	if version > models.SessionSchemaVersion {
		return nil, fmt.Errorf("schema %d is newer than %d", version, models.SessionSchemaVersion)
	}

	data := rec.Data
	for version < models.SessionSchemaVersion {
		step, ok := migrations[version]
		if !ok {
			return nil, fmt.Errorf("no migration from schema %d", version)
		}
		var err error
		if data, err = step(data); err != nil {
			return nil, err
		}
		version++
	}

	sess := models.NewSession(rec.ID, time.Time{})
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !sess.Stage.Valid() {
		return nil, fmt.Errorf("unknown stage %q", sess.Stage)
	}
	fillDefaults(sess)
	return sess, nil
}

// fillDefaults repairs zero values that json.Unmarshal may leave behind for explicit nulls.
func fillDefaults(s *models.Session) {
	s.SchemaVersion = models.SessionSchemaVersion
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
	if s.Cart == nil {
		s.Cart = []models.CartItem{}
	}
	if s.Retries == nil {
		s.Retries = make(map[models.SlotKind]int)
	}
	if s.Hinted == nil {
		s.Hinted = make(map[models.SlotKind]bool)
	}
	if s.Metadata == nil {
		s.Metadata = make(map[string]string)
	}
	if s.History == nil {
		s.History = []models.HistoryEntry{}
	}
}
