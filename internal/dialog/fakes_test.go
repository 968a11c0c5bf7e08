package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ananth-NQI/agrobot-backend/internal/catalog"
	"github.com/Ananth-NQI/agrobot-backend/internal/dedup"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
	"github.com/Ananth-NQI/agrobot-backend/internal/storage"
)

const testPhone = "+5492364555123"

type sent struct {
	Kind string // text, menu, image, document
	Body string
	Menu models.Menu
	URL  string
}

type fakeMessenger struct {
	mu       sync.Mutex
	msgs     []sent
	panicky  bool
	failDocs bool
}

func (f *fakeMessenger) add(s sent) models.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicky {
		panic("transport exploded")
	}
	f.msgs = append(f.msgs, s)
	return models.Succeeded("fake")
}

func (f *fakeMessenger) SendText(_ context.Context, _, body string) models.Outcome {
	return f.add(sent{Kind: "text", Body: body})
}

func (f *fakeMessenger) SendMenu(_ context.Context, _ string, menu models.Menu) models.Outcome {
	return f.add(sent{Kind: "menu", Body: menu.Body, Menu: menu})
}

func (f *fakeMessenger) SendImage(_ context.Context, _, url, caption string) models.Outcome {
	return f.add(sent{Kind: "image", Body: caption, URL: url})
}

func (f *fakeMessenger) SendDocument(_ context.Context, _, url, caption string) models.Outcome {
	if f.failDocs {
		return models.Failed("fake", errors.New("media rejected"))
	}
	return f.add(sent{Kind: "document", Body: caption, URL: url})
}

// take returns and clears the messages sent so far.
func (f *fakeMessenger) take() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.msgs
	f.msgs = nil
	return out
}

func bodies(msgs []sent) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Body)
	}
	return out
}

type fakeGenerator struct {
	summaries []models.QuoteSummary
	fail      bool
}

func (g *fakeGenerator) Generate(_ context.Context, s models.QuoteSummary) (models.QuoteDocument, models.Outcome) {
	g.summaries = append(g.summaries, s)
	if g.fail {
		return models.QuoteDocument{}, models.Failed("pdf", errors.New("font missing"))
	}
	id := fmt.Sprintf("Q%d", len(g.summaries))
	return models.QuoteDocument{QuoteID: id, Filename: id + ".pdf", URL: "https://media.test/" + id + ".pdf"}, models.Succeeded("pdf")
}

type fakeRecorder struct {
	snaps []models.Snapshot
}

func (r *fakeRecorder) Record(_ context.Context, snap models.Snapshot) []models.Outcome {
	r.snaps = append(r.snaps, snap)
	return []models.Outcome{models.Succeeded("sheets"), models.Failed("crm", errors.New("503"))}
}

type fakeAssistant struct {
	asked   []string
	history []models.HistoryEntry
}

func (a *fakeAssistant) Reply(_ context.Context, text string, history []models.HistoryEntry) (string, models.Outcome) {
	a.asked = append(a.asked, text)
	a.history = history
	return "Para soja solemos recomendar glifosato en presiembra.", models.Succeeded("assistant")
}

type harness struct {
	t      *testing.T
	engine *Engine
	store  *storage.Sessions
	msgr   *fakeMessenger
	gen    *fakeGenerator
	rec    *fakeRecorder
	now    time.Time
	seq    int
}

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		t:    t,
		msgr: &fakeMessenger{},
		gen:  &fakeGenerator{},
		rec:  &fakeRecorder{},
		now:  time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	logger := zaptest.NewLogger(t)
	h.store = storage.NewSessions(storage.NewMemoryStore(), logger).WithClock(clock)

	opts := Options{
		Store:     h.store,
		Guard:     dedup.NewMemoryGuard(0).WithClock(clock),
		Catalog:   catalog.MustDefault(),
		Messenger: h.msgr,
		Quotes:    NewQuoteTrigger(h.gen, h.rec, logger, nil),
		Logger:    logger,
		Now:       clock,
	}
	for _, c := range configure {
		c(&opts)
	}
	e, err := NewEngine(opts)
	require.NoError(t, err)
	h.engine = e
	return h
}

func (h *harness) handle(ev models.InboundEvent) []sent {
	h.t.Helper()
	if ev.ID == "" {
		h.seq++
		ev.ID = fmt.Sprintf("SM%04d", h.seq)
	}
	if ev.From == "" {
		ev.From = "whatsapp:" + testPhone
	}
	ev.ReceivedAt = h.now
	require.NoError(h.t, h.engine.Handle(context.Background(), ev))
	return h.msgr.take()
}

func (h *harness) text(body string) []sent {
	h.t.Helper()
	return h.handle(models.InboundEvent{Type: models.EventText, Text: body})
}

func (h *harness) pick(id string) []sent {
	h.t.Helper()
	return h.handle(models.InboundEvent{Type: models.EventInteractive, SelectionID: id})
}

func (h *harness) session() *models.Session {
	return h.store.Load(context.Background(), testPhone)
}

func (h *harness) seed(mutate func(s *models.Session)) {
	h.t.Helper()
	s := h.session()
	s.Metadata[metaGreeted] = "true"
	mutate(s)
	require.NoError(h.t, h.store.Save(context.Background(), s))
}
