package dedup

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// DatabaseGuard shares the dedup window between instances through the processed_events
// table. The primary key on event_id makes the insert the atomic test.
type DatabaseGuard struct {
	db     *gorm.DB
	logger *zap.Logger
	window time.Duration
	now    func() time.Time
}

// NewDatabaseGuard wraps an open connection. The table must already be migrated.
func NewDatabaseGuard(db *gorm.DB, window time.Duration, logger *zap.Logger) *DatabaseGuard {
	if window <= 0 {
		window = Window
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseGuard{db: db, logger: logger, window: window, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (g *DatabaseGuard) WithClock(now func() time.Time) *DatabaseGuard {
	g.now = now
	return g
}

// Seen deletes expired rows, then inserts eventID. A conflicting insert means the id was
// already seen. When the database is unreachable the event is treated as new.
func (g *DatabaseGuard) Seen(ctx context.Context, eventID string) bool {
	if eventID == "" {
		return false
	}
	now := g.now()
	db := g.db.WithContext(ctx)

	if _, err := g.Purge(ctx); err != nil {
		g.logger.Warn("dedup sweep failed", zap.Error(err))
	}

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ProcessedEvent{
		EventID:   eventID,
		FirstSeen: now,
		ExpiresAt: now.Add(g.window),
	})
	if res.Error != nil {
		g.logger.Warn("dedup insert failed, processing event", zap.String("event_id", eventID), zap.Error(res.Error))
		return false
	}
	return res.RowsAffected == 0
}

// Purge removes rows whose window has elapsed and returns how many were deleted.
func (g *DatabaseGuard) Purge(ctx context.Context) (int64, error) {
	res := g.db.WithContext(ctx).Where("expires_at <= ?", g.now()).Delete(&models.ProcessedEvent{})
	return res.RowsAffected, res.Error
}
