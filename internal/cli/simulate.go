package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/agrobot-backend/internal/config"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
	"github.com/Ananth-NQI/agrobot-backend/internal/services"
)

var simulatePhone string

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Chat with the bot from the terminal using in-memory state",
	Long: `Each input line is delivered as one WhatsApp message. Special lines:
  /sel <id>        interactive selection, e.g. /sel region_1
  /loc <lat>,<lng> shared location
  /quit            exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return simulate(cmd.Context(), cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout(), simulatePhone)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulatePhone, "phone", "+5490000000000", "sender phone number")
}

// simulate runs a conversation against memory stores, local quote files and the console.
func simulate(ctx context.Context, base *config.Config, logger *zap.Logger, in io.Reader, out io.Writer, phone string) error {
	local := *base
	local.StorageBackend = config.BackendMemory
	local.DedupBackend = config.BackendMemory
	local.S3Bucket = ""
	local.PublicBaseURL = ""
	local.SheetsSpreadsheetID = ""
	local.CRMWebhookURL = ""
	if local.MediaDir == "" {
		local.MediaDir = os.TempDir()
	}

	s, err := build(ctx, &local, logger, services.NewConsoleMessenger(out))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Simulando conversación como %s. /quit para salir.\n\n", phone)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		ev, err := simulatedEvent(line, phone, time.Now())
		if err != nil {
			fmt.Fprintln(out, "⚠️ ", err)
			continue
		}
		if err := s.engine.Handle(ctx, ev); err != nil {
			fmt.Fprintln(out, "⚠️  turn failed:", err)
		}
	}
	return scanner.Err()
}

func simulatedEvent(line, phone string, now time.Time) (models.InboundEvent, error) {
	ev := models.InboundEvent{
		ID:         uuid.NewString(),
		From:       phone,
		Type:       models.EventText,
		Text:       line,
		ReceivedAt: now,
	}
	switch {
	case strings.HasPrefix(line, "/sel "):
		ev.Type = models.EventInteractive
		ev.SelectionID = strings.TrimSpace(strings.TrimPrefix(line, "/sel "))
		ev.Text = ""
	case strings.HasPrefix(line, "/loc "):
		lat, lng, ok := strings.Cut(strings.TrimPrefix(line, "/loc "), ",")
		if !ok {
			return ev, fmt.Errorf("usage: /loc <lat>,<lng>")
		}
		var err error
		if ev.Latitude, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
			return ev, fmt.Errorf("latitude: %w", err)
		}
		if ev.Longitude, err = strconv.ParseFloat(strings.TrimSpace(lng), 64); err != nil {
			return ev, fmt.Errorf("longitude: %w", err)
		}
		ev.Type = models.EventLocation
		ev.Text = ""
	}
	return ev, nil
}
