// Package storage persists conversation sessions. A Backend stores opaque records keyed by
// phone; Sessions layers decoding, schema migration, default merging and expiry on top.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// ErrNotFound is returned by a Backend when no record exists for the key.
var ErrNotFound = errors.New("session not found")

// SessionStore loads and saves per-conversation state.
type SessionStore interface {
	// Load never fails: missing, unreadable, corrupt or expired records yield a fresh session.
	Load(ctx context.Context, id string) *models.Session
	// Save persists the whole session, stamping UpdatedAt.
	Save(ctx context.Context, s *models.Session) error
}

// Record is the raw stored form of a session.
type Record struct {
	ID            string
	SchemaVersion int
	Stage         models.Stage
	Data          []byte
	UpdatedAt     time.Time
}

// Backend is a key-value arena for session records.
type Backend interface {
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
}

// Sessions implements SessionStore over any Backend.
type Sessions struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
}

// NewSessions wraps backend. A nil logger discards output.
func NewSessions(backend Backend, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{backend: backend, logger: logger, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *Sessions) WithClock(now func() time.Time) *Sessions {
	s.now = now
	return s
}

// Load implements SessionStore.
func (s *Sessions) Load(ctx context.Context, id string) *models.Session {
	now := s.now()
	rec, err := s.backend.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("session read failed, starting fresh", zap.String("phone", id), zap.Error(err))
		}
		return models.NewSession(id, now)
	}

	sess, err := decode(rec)
	if err != nil {
		s.logger.Warn("session record unusable, starting fresh",
			zap.String("phone", id), zap.Int("schema_version", rec.SchemaVersion), zap.Error(err))
		return models.NewSession(id, now)
	}
	sess.ID = id
	if sess.Expired(now) {
		s.logger.Info("session expired, starting fresh",
			zap.String("phone", id), zap.Time("updated_at", sess.UpdatedAt))
		return models.NewSession(id, now)
	}
	return sess
}

// Save implements SessionStore.
func (s *Sessions) Save(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("save session: missing id")
	}
	sess.UpdatedAt = s.now()
	sess.SchemaVersion = models.SessionSchemaVersion
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	rec := &Record{
		ID:            sess.ID,
		SchemaVersion: sess.SchemaVersion,
		Stage:         sess.Stage,
		Data:          data,
		UpdatedAt:     sess.UpdatedAt,
	}
	if err := s.backend.Put(ctx, rec); err != nil {
		return fmt.Errorf("store session %s: %w", sess.ID, err)
	}
	return nil
}
