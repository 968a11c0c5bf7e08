package dialog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/agrobot-backend/internal/catalog"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
	"github.com/Ananth-NQI/agrobot-backend/internal/nlu"
)

const (
	metaGreeted    = "greeted"
	metaLastPrompt = "last_prompt"
)

// stageSlots lists the slots a stage collects, in prompt order. The sub-region is only
// asked for regions split into zones.
func (e *Engine) stageSlots(s *models.Session) []models.SlotKind {
	switch s.Stage {
	case models.StageDiscovery:
		slots := []models.SlotKind{models.SlotFullName, models.SlotRegion}
		if s.Slots.Region == "" || e.cat.HasSubRegions(s.Slots.Region) {
			slots = append(slots, models.SlotSubRegion)
		}
		return slots
	case models.StageProduct:
		return []models.SlotKind{models.SlotCategory, models.SlotQuantity, models.SlotCampaign}
	}
	return nil
}

// pendingSlot returns the first empty slot of the current stage.
func (e *Engine) pendingSlot(s *models.Session) (models.SlotKind, bool) {
	for _, kind := range e.stageSlots(s) {
		if s.Slots.Get(kind) == "" {
			return kind, true
		}
	}
	return "", false
}

// currentMenu is the menu the user is answering, used to resolve numbered replies.
func (e *Engine) currentMenu(s *models.Session) (models.Menu, bool) {
	if s.Stage == models.StageCheckout {
		return quoteMenu(), true
	}
	kind, ok := e.pendingSlot(s)
	if !ok {
		return models.Menu{}, false
	}
	return slotMenu(e.cat, kind, s.Slots.Region)
}

// advance runs the stage machine for one input. Selections win over free text; a turn
// that resolves nothing re-sends the same prompt.
func (e *Engine) advance(ctx context.Context, t *turn, a nlu.Analysis) {
	s := t.sess
	if s.Stage == models.StageClosed {
		t.say(ctx, closedMessage(t.sess))
		return
	}
	if s.Metadata[metaGreeted] == "" {
		t.say(ctx, greeting(e.cat.Business.Name, t.ev.ProfileName))
		s.Metadata[metaGreeted] = "true"
	}

	pending, _ := e.pendingSlot(s)
	sel := t.ev.SelectionID
	if sel == "" {
		if menu, ok := e.currentMenu(s); ok {
			sel, _ = numberedChoice(menu, t.text)
		}
	}
	input := sel != "" || t.text != ""

	handled := false
	switch {
	case sel == catalog.SelectQuoteConfirm:
		if s.Stage == models.StageCheckout {
			e.quotes.Fire(ctx, t)
			return
		}
	case sel != "":
		if kind, value, ok := e.cat.ResolveSelection(sel, s.Slots.Region); ok {
			handled = t.fill(kind, value)
		} else {
			t.log.Debug("unknown selection id", zap.String("selection_id", sel))
		}
	case t.text != "":
		handled = e.applyText(ctx, t, a, pending)
		if s.Stage == models.StageCheckout && nlu.Has(a.Intents(), nlu.WantsPrice) {
			e.quotes.Fire(ctx, t)
			return
		}
	}

	if s.Stage == models.StageCheckout {
		if handled {
			e.enterCheckout(ctx, t)
			return
		}
		e.fallback(ctx, t, a)
		t.menu(ctx, quoteMenu())
		return
	}

	if e.completeStages(ctx, t) {
		return
	}
	if input && !handled {
		e.fallback(ctx, t, a)
	}
	e.prompt(ctx, t, input && !handled)
}

// applyText fills slots and answers intents found in free text. It reports whether the
// message changed or answered anything.
func (e *Engine) applyText(ctx context.Context, t *turn, a nlu.Analysis, pending models.SlotKind) bool {
	s := t.sess
	intents := a.Intents()
	handled := false

	// Free-form slots only count as an answer to their own prompt.
	nameTaken := false
	switch pending {
	case models.SlotFullName:
		if m, ok := a.Slot(models.SlotFullName); ok && len(intents) == 0 && !enumeratedValue(a, t.text) {
			nameTaken = t.fill(models.SlotFullName, m.Value)
			handled = nameTaken
		}
	case models.SlotQuantity:
		if m, ok := a.Slot(models.SlotQuantity); ok && !nlu.Has(intents, nlu.AddItem) {
			handled = t.fill(models.SlotQuantity, m.Value)
		}
	}

	if !nameTaken {
		for _, kind := range e.opportunistic(s) {
			m, ok := a.Slot(kind)
			if !ok {
				continue
			}
			if kind == models.SlotSubRegion && !e.cat.HasSubRegions(s.Slots.Region) {
				continue
			}
			if t.fill(kind, m.Value) {
				handled = true
			}
		}
	}
	if a.AmbiguousCampaign && s.Slots.Campaign == "" {
		t.log.Debug("both campaigns mentioned, leaving campaign unresolved")
	}

	for _, it := range intents {
		switch it.Kind {
		case nlu.AddItem:
			e.addItem(ctx, t, it)
			handled = true
		case nlu.WantsPrice:
			if s.Stage != models.StageCheckout {
				t.say(ctx, e.cat.FAQ.Price)
				handled = true
			}
		case nlu.WantsAvailability:
			t.say(ctx, e.cat.FAQ.Availability)
			handled = true
		case nlu.WantsShipping:
			t.say(ctx, e.cat.FAQ.Shipping)
			handled = true
		case nlu.WantsPayment:
			t.say(ctx, e.cat.FAQ.Payment)
			handled = true
		}
	}
	return handled
}

// opportunistic lists the enumerated slots of the current stage. Region comes before the
// sub-region so both can be filled from one message.
func (e *Engine) opportunistic(s *models.Session) []models.SlotKind {
	switch s.Stage {
	case models.StageDiscovery:
		return []models.SlotKind{models.SlotRegion, models.SlotSubRegion}
	case models.StageProduct:
		return []models.SlotKind{models.SlotCategory, models.SlotCampaign}
	}
	return nil
}

// locative marks a message that says where the user is, e.g. "soy de Córdoba".
var locative = regexp.MustCompile(`\b(soy de|somos de|estoy en|estamos en|desde|zona|cerca de)\b`)

// enumeratedValue reports whether the message is a region, zone or crop rather than a
// person's name. A weak match only counts when the wording is locative.
func enumeratedValue(a nlu.Analysis, text string) bool {
	loc := locative.MatchString(nlu.Normalize(text))
	for _, kind := range []models.SlotKind{models.SlotRegion, models.SlotSubRegion, models.SlotCategory} {
		if m, ok := a.Slot(kind); ok && (m.Tier >= nlu.TierAlias || loc) {
			return true
		}
	}
	return false
}

func (e *Engine) addItem(ctx context.Context, t *turn, it nlu.Intent) {
	item := models.CartItem{Name: it.Item, Qty: it.Qty}
	if p, ok := e.detector.MatchProduct(it.Item); ok {
		price := p.Price
		item.Name, item.SKU, item.Price = p.Name, p.SKU, &price
	}
	t.sess.Cart = append(t.sess.Cart, item)
	t.say(ctx, fmt.Sprintf("🛒 Agregué %s x%s a tu pedido.", item.Name, formatNumber(item.Qty)))
}

// completeStages moves past every stage whose slots are all filled. It returns true when
// the turn ended by entering checkout.
func (e *Engine) completeStages(ctx context.Context, t *turn) bool {
	for {
		if _, ok := e.pendingSlot(t.sess); ok {
			return false
		}
		switch t.sess.Stage {
		case models.StageDiscovery:
			t.advance(models.StageProduct)
		case models.StageProduct:
			t.advance(models.StageCheckout)
			e.enterCheckout(ctx, t)
			return true
		default:
			return false
		}
	}
}

func (e *Engine) enterCheckout(ctx context.Context, t *turn) {
	t.say(ctx, summaryText(t.sess))
	t.menu(ctx, quoteMenu())
}

// prompt asks for the first empty slot. When retry is set and the same slot was asked last
// time, the miss is counted and a one-time hint precedes the unchanged prompt.
func (e *Engine) prompt(ctx context.Context, t *turn, retry bool) {
	s := t.sess
	switch s.Stage {
	case models.StageCheckout:
		t.menu(ctx, quoteMenu())
		return
	case models.StageClosed:
		return
	}
	kind, ok := e.pendingSlot(s)
	if !ok {
		return
	}
	if retry && s.Metadata[metaLastPrompt] == string(kind) {
		s.Retries[kind]++
		if s.Retries[kind] >= 2 && !s.Hinted[kind] {
			if hint, ok := hints[kind]; ok {
				t.say(ctx, hint)
				s.Hinted[kind] = true
			}
		}
	}
	if menu, ok := slotMenu(e.cat, kind, s.Slots.Region); ok {
		t.menu(ctx, menu)
	} else {
		t.say(ctx, msgAskName)
	}
	s.Metadata[metaLastPrompt] = string(kind)
}

// fallback asks the assistant about questions nothing else understood.
func (e *Engine) fallback(ctx context.Context, t *turn, a nlu.Analysis) {
	if e.assistant == nil || t.text == "" || len(a.Intents()) > 0 || !looksLikeQuestion(a.Normalized) {
		return
	}
	reply, out := e.assistant.Reply(ctx, t.text, t.sess.History)
	e.metrics.RecordOutcome(out.Target, out.OK())
	if !out.OK() {
		t.log.Warn("assistant failed", zap.String("reason", out.Reason()))
		return
	}
	if reply = strings.TrimSpace(reply); reply != "" {
		t.say(ctx, reply)
	}
}

var interrogatives = []string{"que", "como", "cuando", "donde", "cual", "cuales", "cuanto", "cuanta", "cuantos", "por que", "puedo", "pueden", "sirve", "conviene", "recomendas", "recomiendan"}

func looksLikeQuestion(n string) bool {
	if strings.Contains(n, "?") {
		return true
	}
	for _, w := range interrogatives {
		if strings.HasPrefix(n, w+" ") {
			return true
		}
	}
	return false
}

// fill writes a slot value, first write wins.
func (t *turn) fill(kind models.SlotKind, value string) bool {
	if !t.sess.Slots.Fill(kind, value) {
		return false
	}
	t.log.Debug("slot filled", zap.String("slot", string(kind)), zap.String("value", value))
	return true
}
