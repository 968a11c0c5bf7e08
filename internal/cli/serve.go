package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/agrobot-backend/internal/config"
	"github.com/Ananth-NQI/agrobot-backend/internal/handlers"
	"github.com/Ananth-NQI/agrobot-backend/internal/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WhatsApp webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func newServer(s *stack, cfg *config.Config, logger *zap.Logger) *fiber.App {
	var db handlers.Pinger
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			db = sqlDB
		}
	}
	var counter handlers.StageCounter
	if s.sessions != nil {
		counter = s.sessions
	}
	health := handlers.NewHealthHandler(Version, cfg.Environment, cfg.StorageBackend, s.twilio, db, counter)

	app := routes.NewApp("Agrobot "+Version, true)
	routes.SetupRoutes(app, routes.Deps{
		WhatsApp:              handlers.NewWhatsAppHandler(s.engine, logger),
		Health:                health,
		Metrics:               s.metrics.Handler(),
		MediaDir:              s.mediaDir,
		SkipWebhookValidation: cfg.Development() || cfg.DisableWebhookValidation,
		TwilioAuthToken:       cfg.Twilio.AuthToken,
		PublicURL:             cfg.PublicBaseURL,
		TestRoutes:            cfg.Development(),
		Logger:                logger,
	})
	return app
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	s, err := build(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.janitor.Start(); err != nil {
		return err
	}
	defer s.janitor.Stop()

	app := newServer(s, cfg, logger)
	go func() {
		<-ctx.Done()
		logger.Info("gracefully shutting down")
		_ = app.Shutdown()
	}()

	logger.Info("agrobot starting",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("version", Version))
	return app.Listen(":" + cfg.Port)
}
