package dialog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/agrobot-backend/internal/metrics"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// MetaQuoteID holds the id of the last quote sent to the session.
const MetaQuoteID = "quote_id"

// QuoteTrigger turns a session in checkout into a delivered quote and closes it.
type QuoteTrigger struct {
	generator QuoteGenerator
	recorder  Recorder
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewQuoteTrigger wires the document generator and the record-keeping sinks. recorder
// may be nil.
func NewQuoteTrigger(generator QuoteGenerator, recorder Recorder, logger *zap.Logger, m *metrics.Metrics) *QuoteTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteTrigger{generator: generator, recorder: recorder, logger: logger, metrics: m}
}

// BuildSummary collects the quote input from the session. An empty cart becomes one
// unpriced line describing the crop and surface.
func BuildSummary(s *models.Session, now time.Time) models.QuoteSummary {
	items := append([]models.CartItem(nil), s.Cart...)
	if len(items) == 0 {
		name := "Insumos"
		if s.Slots.Category != "" {
			name = "Insumos para " + strings.ToLower(s.Slots.Category)
		}
		if s.Slots.Quantity != "" {
			name += " (" + surfaceLabel(s.Slots.Quantity) + ")"
		}
		items = []models.CartItem{{Name: name, Qty: 1}}
	}
	return models.QuoteSummary{
		ClientName: s.Slots.FullName,
		Phone:      s.ID,
		Location:   locationLabel(s.Slots),
		Category:   s.Slots.Category,
		Surface:    surfaceLabel(s.Slots.Quantity),
		Campaign:   s.Slots.Campaign,
		Items:      items,
		IssuedAt:   now,
	}
}

// Fire generates and sends the quote, runs the sinks whatever the result, and closes the
// session. The returned outcome describes the document step.
func (q *QuoteTrigger) Fire(ctx context.Context, t *turn) models.Outcome {
	s := t.sess
	summary := BuildSummary(s, t.now)

	doc, out := q.generator.Generate(ctx, summary)
	if out.OK() {
		caption := fmt.Sprintf("📄 Cotización %s", doc.QuoteID)
		out = t.send(ctx, func(m Messenger) models.Outcome {
			return m.SendDocument(ctx, s.ID, doc.URL, caption)
		})
		if out.OK() {
			s.Metadata[MetaQuoteID] = doc.QuoteID
			s.Remember("bot", caption, t.now)
		}
	}
	q.metrics.RecordQuote(out.OK())

	if out.OK() {
		t.say(ctx, msgQuoteSent)
	} else {
		q.logger.Error("quote not delivered",
			zap.String("phone", s.ID), zap.String("target", out.Target), zap.String("reason", out.Reason()))
		t.say(ctx, msgQuoteFailed)
	}

	if q.recorder != nil {
		snap := models.Snapshot{
			SessionID: s.ID,
			Phone:     s.ID,
			Stage:     models.StageClosed,
			Slots:     s.Slots,
			Cart:      summary.Items,
			Location:  s.Location,
			ClosedAt:  t.now,
		}
		if out.OK() {
			snap.QuoteID, snap.QuoteURL = doc.QuoteID, doc.URL
		}
		for _, o := range q.recorder.Record(ctx, snap) {
			q.metrics.RecordOutcome(o.Target, o.OK())
			if !o.OK() {
				q.logger.Warn("record-keeping failed", zap.String("sink", o.Target), zap.String("reason", o.Reason()))
			}
		}
	}

	t.advance(models.StageClosed)
	return out
}
