// Package database opens the postgres connection shared by the session store and the
// idempotency guard.
package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Ananth-NQI/agrobot-backend/internal/config"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// socketDir is where Cloud Run mounts Cloud SQL sockets.
const socketDir = "/cloudsql"

// DSN builds the connection string: a Unix socket on Cloud Run, TCP otherwise.
func DSN(cfg config.Database) string {
	if cfg.InstanceConnectionName != "" {
		return fmt.Sprintf("host=%s/%s user=%s password=%s dbname=%s sslmode=disable",
			socketDir, cfg.InstanceConnectionName, cfg.User, cfg.Pass, cfg.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.Host, cfg.User, cfg.Pass, cfg.Name, cfg.Port)
}

// Connect opens the database and runs the migrations.
func Connect(cfg config.Database, logger *zap.Logger) (*gorm.DB, error) {
	if cfg.InstanceConnectionName != "" {
		logger.Info("connecting to Cloud SQL via socket", zap.String("instance", cfg.InstanceConnectionName))
	} else {
		logger.Info("connecting to PostgreSQL", zap.String("host", cfg.Host), zap.String("db", cfg.Name))
	}

	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	logger.Info("database connected and migrated")
	return db, nil
}

// Migrate creates or updates the session and idempotency tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.SessionRecord{}, &models.ProcessedEvent{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
