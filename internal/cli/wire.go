package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/agrobot-backend/database"
	"github.com/Ananth-NQI/agrobot-backend/internal/catalog"
	"github.com/Ananth-NQI/agrobot-backend/internal/config"
	"github.com/Ananth-NQI/agrobot-backend/internal/dedup"
	"github.com/Ananth-NQI/agrobot-backend/internal/dialog"
	"github.com/Ananth-NQI/agrobot-backend/internal/jobs"
	"github.com/Ananth-NQI/agrobot-backend/internal/metrics"
	"github.com/Ananth-NQI/agrobot-backend/internal/services"
	"github.com/Ananth-NQI/agrobot-backend/internal/storage"
)

// stack is the wired service.
type stack struct {
	db       *gorm.DB
	sessions *storage.DatabaseStore // nil unless sessions live in postgres
	metrics  *metrics.Metrics
	engine   *dialog.Engine
	mediaDir string // set when quotes are published locally
	janitor  *jobs.Janitor
	twilio   bool
}

// build wires every component from cfg. A nil messenger selects Twilio when configured and
// the console otherwise.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger, messenger dialog.Messenger) (*stack, error) {
	s := &stack{metrics: metrics.New()}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	if cfg.UsesDatabase() {
		if s.db, err = database.Connect(cfg.Database, logger); err != nil {
			return nil, err
		}
	}

	var backend storage.Backend
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		s.sessions = storage.NewDatabaseStore(s.db)
		backend = s.sessions
	case config.BackendFile:
		if backend, err = storage.NewFileStore(cfg.SessionDir); err != nil {
			return nil, err
		}
	default:
		logger.Warn("using in-memory session storage (not for production!)")
		backend = storage.NewMemoryStore()
	}

	var tasks []jobs.Task
	var guard dedup.Guard
	if cfg.DedupBackend == config.BackendPostgres {
		dbGuard := dedup.NewDatabaseGuard(s.db, dedup.Window, logger)
		guard = dbGuard
		tasks = append(tasks, jobs.Task{Name: "processed_events", Schedule: "@every 5m", Run: dbGuard.Purge})
	} else {
		guard = dedup.NewMemoryGuard(dedup.Window)
	}

	if messenger == nil {
		if cfg.Twilio.Configured() {
			if messenger, err = services.NewTwilioService(cfg.Twilio, logger); err != nil {
				return nil, err
			}
			s.twilio = true
		} else {
			logger.Warn("Twilio credentials not found, replies are printed to stdout")
			messenger = services.NewConsoleMessenger(os.Stdout)
		}
	}

	var publisher services.Publisher
	if cfg.S3Bucket != "" {
		if publisher, err = services.NewS3Publisher(ctx, cfg.S3Bucket, cfg.S3Prefix); err != nil {
			return nil, err
		}
	} else {
		local, err := services.NewLocalPublisher(cfg.MediaDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.PublicBaseURL == "" {
			logger.Warn("PUBLIC_BASE_URL not set, WhatsApp cannot download quote documents")
		}
		publisher, s.mediaDir = local, local.Dir()
		tasks = append(tasks, jobs.Task{
			Name:     "media",
			Schedule: "@daily",
			Run:      jobs.PurgeFiles(local.Dir(), services.PresignTTL, time.Now),
		})
	}

	var sinks []services.Sink
	if cfg.SheetsSpreadsheetID != "" && cfg.SheetsCredentialsFile != "" {
		sheets, err := services.NewSheetsSink(ctx, cfg.SheetsCredentialsFile, cfg.SheetsSpreadsheetID, cfg.SheetsRange)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sheets)
	}
	if cfg.CRMWebhookURL != "" {
		sinks = append(sinks, services.NewCRMSink(cfg.CRMWebhookURL, cfg.CRMToken))
	}

	var assistant dialog.Assistant
	switch cfg.AIProvider {
	case config.AIGemini:
		gemini, err := services.NewGeminiAssistant(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cat)
		if err != nil {
			return nil, err
		}
		assistant = gemini
	case config.AIAnthropic:
		assistant = services.NewAnthropicAssistant(cfg.AnthropicAPIKey, cfg.AnthropicModel, cat)
	}

	generator := services.NewPDFQuoteGenerator(publisher, cat.Business, logger)
	recorders := services.NewRecorders(logger, sinks...)
	s.engine, err = dialog.NewEngine(dialog.Options{
		Store:              storage.NewSessions(backend, logger),
		Guard:              guard,
		Catalog:            cat,
		Messenger:          messenger,
		Quotes:             dialog.NewQuoteTrigger(generator, recorders, logger, s.metrics),
		Handoff:            dialog.NewHandoffController(dialog.PauseDuration),
		Assistant:          assistant,
		Metrics:            s.metrics,
		Logger:             logger,
		CatalogDocumentURL: cfg.CatalogDocumentURL,
	})
	if err != nil {
		return nil, fmt.Errorf("wire engine: %w", err)
	}
	s.janitor = jobs.NewJanitor(logger, tasks...)

	logger.Info("components wired",
		zap.String("storage", cfg.StorageBackend),
		zap.String("dedup", cfg.DedupBackend),
		zap.Bool("twilio", s.twilio),
		zap.Int("sinks", recorders.Len()),
		zap.String("ai", cfg.AIProvider))
	return s, nil
}

// close releases the database connection.
func (s *stack) close() {
	if s.db == nil {
		return
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
