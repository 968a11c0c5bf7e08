package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/agrobot-backend/internal/catalog"
	"github.com/Ananth-NQI/agrobot-backend/internal/dedup"
	"github.com/Ananth-NQI/agrobot-backend/internal/metrics"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
	"github.com/Ananth-NQI/agrobot-backend/internal/nlu"
	"github.com/Ananth-NQI/agrobot-backend/internal/storage"
)

// Options wires an Engine. Store, Guard, Catalog, Messenger and Quotes are required.
type Options struct {
	Store     storage.SessionStore
	Guard     dedup.Guard
	Catalog   *catalog.Catalog
	Messenger Messenger
	Quotes    *QuoteTrigger
	Handoff   *HandoffController
	Assistant Assistant
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	// CatalogDocumentURL is sent as a document when the user asks for the catalog.
	CatalogDocumentURL string

	Now func() time.Time
}

// Engine handles one inbound event per call.
type Engine struct {
	store     storage.SessionStore
	guard     dedup.Guard
	cat       *catalog.Catalog
	detector  *nlu.Detector
	messenger Messenger
	quotes    *QuoteTrigger
	handoff   *HandoffController
	assistant Assistant
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	catalogDocURL string
}

// NewEngine validates opts and builds an engine.
func NewEngine(opts Options) (*Engine, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("dialog: session store is required")
	case opts.Guard == nil:
		return nil, errors.New("dialog: idempotency guard is required")
	case opts.Catalog == nil:
		return nil, errors.New("dialog: catalog is required")
	case opts.Messenger == nil:
		return nil, errors.New("dialog: messenger is required")
	case opts.Quotes == nil:
		return nil, errors.New("dialog: quote trigger is required")
	}
	e := &Engine{
		store:         opts.Store,
		guard:         opts.Guard,
		cat:           opts.Catalog,
		detector:      nlu.NewDetector(opts.Catalog),
		messenger:     opts.Messenger,
		quotes:        opts.Quotes,
		handoff:       opts.Handoff,
		assistant:     opts.Assistant,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		now:           opts.Now,
		catalogDocURL: opts.CatalogDocumentURL,
	}
	if e.handoff == nil {
		e.handoff = NewHandoffController(PauseDuration)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Handle processes one inbound event start to finish. Duplicates are dropped silently.
// Panics are recovered and returned as errors; the caller only logs them.
func (e *Engine) Handle(ctx context.Context, ev models.InboundEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.RecordTurnError()
			e.logger.Error("turn panicked",
				zap.String("event_id", ev.ID), zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("turn %s panicked: %v", ev.ID, r)
		}
	}()

	phone := strings.TrimPrefix(strings.TrimSpace(ev.From), "whatsapp:")
	if phone == "" {
		return fmt.Errorf("event %s has no sender", ev.ID)
	}
	log := e.logger.With(zap.String("phone", phone), zap.String("event_id", ev.ID))

	if e.guard.Seen(ctx, ev.ID) {
		e.metrics.RecordDuplicate()
		log.Info("duplicate event dropped")
		return nil
	}
	e.metrics.RecordEvent(string(ev.Type))

	sess := e.store.Load(ctx, phone)
	if ev.ID != "" && sess.LastEventID == ev.ID {
		e.metrics.RecordDuplicate()
		log.Info("event already applied to session")
		return nil
	}

	t := &turn{
		e:    e,
		sess: sess,
		ev:   ev,
		text: strings.TrimSpace(ev.Text),
		now:  e.now(),
		log:  log,
	}
	e.run(ctx, t)

	sess.LastEventID = ev.ID
	if err := e.store.Save(ctx, sess); err != nil {
		log.Error("session not saved", zap.Error(err))
		return err
	}
	log.Debug("turn done", zap.String("stage", string(sess.Stage)))
	return nil
}

func (e *Engine) run(ctx context.Context, t *turn) {
	t.sess.Remember("user", t.userLine(), t.now)

	proceed, resumed := e.handoff.Gate(ctx, t)
	if !proceed {
		e.metrics.RecordPaused()
		t.log.Info("conversation handed off, bot silent")
		return
	}
	if resumed {
		t.text, t.ev.SelectionID = "", ""
		e.advance(ctx, t, nlu.Analysis{})
		return
	}

	if t.sess.Stage == models.StageClosed && isRestart(t.text) {
		e.restart(ctx, t)
		return
	}

	switch t.ev.Type {
	case models.EventLocation:
		t.sess.Location = &models.GeoPoint{Latitude: t.ev.Latitude, Longitude: t.ev.Longitude, SharedAt: t.now}
		t.say(ctx, msgLocationAck)
		return
	case models.EventImage:
		if t.ev.MediaURL != "" {
			t.sess.Metadata["last_media"] = t.ev.MediaURL
		}
		t.say(ctx, msgAttachmentAck)
		return
	}

	a := e.detector.Analyze(t.text, t.sess.Slots.Region)
	if e.globalIntent(ctx, t, a) {
		return
	}
	if t.ev.SelectionID == "" {
		if items, ok := nlu.ParseCart(t.ev.Text); ok {
			e.applyCart(ctx, t, items)
			return
		}
	}
	e.advance(ctx, t, a)
}

// globalIntent handles close, human, catalog and location ahead of any stage logic.
func (e *Engine) globalIntent(ctx context.Context, t *turn, a nlu.Analysis) bool {
	for _, it := range a.Intents() {
		switch it.Kind {
		case nlu.WantsClose:
			t.advance(models.StageClosed)
			t.say(ctx, msgGoodbye)
			return true
		case nlu.WantsHuman:
			e.handoff.Pause(t.sess, t.now)
			t.log.Info("handed off to a human", zap.Time("paused_until", *t.sess.PausedUntil))
			t.say(ctx, msgHandoff)
			return true
		case nlu.WantsCatalog:
			e.sendCatalog(ctx, t)
			e.prompt(ctx, t, false)
			return true
		case nlu.WantsLocation:
			b := e.cat.Business
			t.say(ctx, fmt.Sprintf("📍 Estamos en %s.\n🕗 %s\n🗺️ %s", b.Address, b.Hours, b.MapsURL))
			e.prompt(ctx, t, false)
			return true
		}
	}
	return false
}

func (e *Engine) sendCatalog(ctx context.Context, t *turn) {
	if e.catalogDocURL != "" {
		out := t.send(ctx, func(m Messenger) models.Outcome {
			return m.SendDocument(ctx, t.sess.ID, e.catalogDocURL, "📚 Catálogo de productos")
		})
		if out.OK() {
			t.sess.Remember("bot", "📚 Catálogo de productos", t.now)
			return
		}
	}
	var b strings.Builder
	b.WriteString("📚 *Productos*")
	for _, p := range e.cat.Products {
		b.WriteString("\n• " + p.Name)
	}
	t.say(ctx, b.String())
}

// applyCart replaces the cart with a pasted list and jumps to checkout.
func (e *Engine) applyCart(ctx context.Context, t *turn, items []models.CartItem) {
	if t.sess.Stage == models.StageClosed {
		t.say(ctx, closedMessage(t.sess))
		return
	}
	for i := range items {
		if p, ok := e.detector.MatchProduct(items[i].Name); ok {
			items[i].SKU = p.SKU
		}
	}
	t.sess.Cart = items
	t.log.Info("cart pasted", zap.Int("items", len(items)))
	t.advance(models.StageCheckout)
	e.enterCheckout(ctx, t)
}

func (e *Engine) restart(ctx context.Context, t *turn) {
	history := t.sess.History
	*t.sess = *models.NewSession(t.sess.ID, t.now)
	t.sess.History = history
	t.log.Info("closed session restarted")
	t.text, t.ev.SelectionID = "", ""
	e.advance(ctx, t, nlu.Analysis{})
}

func isRestart(text string) bool {
	n := nlu.Normalize(text)
	for _, kw := range []string{"nueva cotizacion", "nuevo pedido", "empezar de nuevo"} {
		if nlu.ContainsWords(n, kw) {
			return true
		}
	}
	return false
}

// turn carries the state of one Handle call.
type turn struct {
	e    *Engine
	sess *models.Session
	ev   models.InboundEvent
	text string
	now  time.Time
	log  *zap.Logger
}

func (t *turn) userLine() string {
	switch t.ev.Type {
	case models.EventLocation:
		return "[ubicación]"
	case models.EventImage:
		return "[archivo]"
	}
	if t.text == "" {
		return t.ev.SelectionID
	}
	return t.text
}

func (t *turn) send(ctx context.Context, call func(Messenger) models.Outcome) models.Outcome {
	out := call(t.e.messenger)
	t.e.metrics.RecordOutcome(out.Target, out.OK())
	if !out.OK() {
		t.log.Warn("outbound message failed", zap.String("target", out.Target), zap.String("reason", out.Reason()))
	}
	return out
}

func (t *turn) say(ctx context.Context, body string) models.Outcome {
	t.sess.Remember("bot", body, t.now)
	return t.send(ctx, func(m Messenger) models.Outcome {
		return m.SendText(ctx, t.sess.ID, body)
	})
}

func (t *turn) menu(ctx context.Context, menu models.Menu) models.Outcome {
	t.sess.Remember("bot", menu.Body, t.now)
	return t.send(ctx, func(m Messenger) models.Outcome {
		return m.SendMenu(ctx, t.sess.ID, menu)
	})
}

func (t *turn) advance(to models.Stage) bool {
	from := t.sess.Stage
	if !t.sess.Advance(to) {
		return false
	}
	t.e.metrics.RecordTransition(string(from), string(to))
	t.log.Info("stage advanced", zap.String("from", string(from)), zap.String("to", string(to)))
	return true
}
