package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// DatabaseStore keeps sessions in the whatsapp_sessions table, one row per phone.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps an open connection. The table must already be migrated.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (d *DatabaseStore) Get(ctx context.Context, id string) (*Record, error) {
	var row models.SessionRecord
	err := d.db.WithContext(ctx).Where("phone = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &Record{
		ID:            row.Phone,
		SchemaVersion: row.SchemaVersion,
		Stage:         models.Stage(row.Stage),
		Data:          row.Data,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

// Put upserts the row for rec.ID.
func (d *DatabaseStore) Put(ctx context.Context, rec *Record) error {
	row := models.SessionRecord{
		Phone:         rec.ID,
		SchemaVersion: rec.SchemaVersion,
		Stage:         string(rec.Stage),
		Data:          rec.Data,
		UpdatedAt:     rec.UpdatedAt,
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_version", "stage", "data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// CountByStage reports how many stored sessions sit in each stage.
func (d *DatabaseStore) CountByStage(ctx context.Context) (map[models.Stage]int64, error) {
	var rows []struct {
		Stage string
		Total int64
	}
	err := d.db.WithContext(ctx).Model(&models.SessionRecord{}).
		Select("stage, count(*) as total").Group("stage").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.Stage]int64, len(rows))
	for _, r := range rows {
		out[models.Stage(r.Stage)] = r.Total
	}
	return out, nil
}
