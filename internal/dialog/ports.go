// Package dialog runs the intake conversation: it loads the session for an inbound event,
// applies handoff and global intents, advances the stage machine and saves the result.
package dialog

import (
	"context"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// Messenger delivers outbound WhatsApp messages. Every call is one-shot.
type Messenger interface {
	SendText(ctx context.Context, to, body string) models.Outcome
	SendMenu(ctx context.Context, to string, menu models.Menu) models.Outcome
	SendImage(ctx context.Context, to, mediaURL, caption string) models.Outcome
	SendDocument(ctx context.Context, to, mediaURL, caption string) models.Outcome
}

// QuoteGenerator renders a quote summary into a document reachable by URL.
type QuoteGenerator interface {
	Generate(ctx context.Context, summary models.QuoteSummary) (models.QuoteDocument, models.Outcome)
}

// Recorder stores a finalized conversation in the record-keeping sinks. It returns one
// outcome per sink.
type Recorder interface {
	Record(ctx context.Context, snap models.Snapshot) []models.Outcome
}

// Assistant answers free-form questions the rules could not classify.
type Assistant interface {
	Reply(ctx context.Context, text string, history []models.HistoryEntry) (string, models.Outcome)
}
