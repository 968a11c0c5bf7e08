package dialog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/agrobot-backend/internal/catalog"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

func last(t *testing.T, msgs []sent) sent {
	t.Helper()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func TestHappyPathToQuote(t *testing.T) {
	h := newHarness(t)
	rank := -1
	step := func(msgs []sent) []sent {
		r := h.session().Stage.Rank()
		assert.GreaterOrEqual(t, r, rank, "stage moved backward")
		rank = r
		return msgs
	}

	msgs := step(h.text("hola"))
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Body, "AgroInsumos del Centro")
	assert.Equal(t, msgAskName, msgs[1].Body)

	msgs = step(h.text("Juan Pérez"))
	assert.Equal(t, MenuRegion, last(t, msgs).Menu.Name)

	msgs = step(h.pick("region_0"))
	assert.Equal(t, MenuSubRegion, last(t, msgs).Menu.Name)
	assert.Equal(t, "🗺️ ¿En qué zona de Buenos Aires?", last(t, msgs).Body)

	msgs = step(h.text("cerca de Pergamino"))
	assert.Equal(t, models.StageProduct, h.session().Stage, "discovery complete")
	assert.Equal(t, MenuCategory, last(t, msgs).Menu.Name, "product prompt in the same turn")

	msgs = step(h.text("Soja"))
	assert.Equal(t, MenuQuantity, last(t, msgs).Menu.Name)
	assert.Equal(t, "Gruesa", h.session().Slots.Campaign, "crop implies the campaign")

	msgs = step(h.text("120"))
	require.Len(t, msgs, 2)
	assert.Equal(t, models.StageCheckout, h.session().Stage)
	summary := msgs[0].Body
	for _, want := range []string{"Juan Pérez", "Norte, Buenos Aires", "Soja", "120 ha", "Gruesa"} {
		assert.Contains(t, summary, want)
	}
	cta := msgs[1].Menu
	assert.Equal(t, MenuQuote, cta.Name)
	require.Len(t, cta.Options, 1)
	assert.Equal(t, catalog.SelectQuoteConfirm, cta.Options[0].ID)

	msgs = step(h.pick(catalog.SelectQuoteConfirm))
	require.Len(t, msgs, 2)
	assert.Equal(t, "document", msgs[0].Kind)
	assert.Equal(t, "https://media.test/Q1.pdf", msgs[0].URL)
	assert.Equal(t, msgQuoteSent, msgs[1].Body)

	s := h.session()
	assert.Equal(t, models.StageClosed, s.Stage)
	assert.Equal(t, "Q1", s.Metadata[MetaQuoteID])

	require.Len(t, h.gen.summaries, 1)
	sum := h.gen.summaries[0]
	assert.Equal(t, "Juan Pérez", sum.ClientName)
	assert.Equal(t, "Norte, Buenos Aires", sum.Location)
	assert.Equal(t, "120 ha", sum.Surface)
	require.Len(t, sum.Items, 1)
	assert.Equal(t, "Insumos para soja (120 ha)", sum.Items[0].Name)
	assert.Nil(t, sum.Items[0].Price)

	require.Len(t, h.rec.snaps, 1)
	assert.Equal(t, "Q1", h.rec.snaps[0].QuoteID)
	assert.Equal(t, models.StageClosed, h.rec.snaps[0].Stage)

	msgs = h.text("hola")
	assert.Equal(t, []string{msgClosed}, bodies(msgs), "closed after a quote")
}

func TestUnrecognizedRegionReprompts(t *testing.T) {
	h := newHarness(t)
	h.text("hola")
	first := last(t, h.text("Juan Pérez"))
	require.Equal(t, MenuRegion, first.Menu.Name)

	msgs := h.text("en la luna")
	require.Len(t, msgs, 1)
	assert.Equal(t, first, msgs[0], "same prompt, unchanged")

	s := h.session()
	assert.Equal(t, models.StageDiscovery, s.Stage)
	assert.Equal(t, "", s.Slots.Region)
	assert.Equal(t, 1, s.Retries[models.SlotRegion])
}

func TestHintAfterTwoMisses(t *testing.T) {
	h := newHarness(t)
	h.text("hola")
	h.text("Juan Pérez")

	h.text("no se")
	msgs := h.text("ni idea")
	require.Len(t, msgs, 2)
	assert.Equal(t, hints[models.SlotRegion], msgs[0].Body)
	assert.Equal(t, MenuRegion, msgs[1].Menu.Name)

	msgs = h.text("tampoco")
	require.Len(t, msgs, 1, "hint is sent only once")

	s := h.session()
	assert.Equal(t, 3, s.Retries[models.SlotRegion])
	assert.True(t, s.Hinted[models.SlotRegion])
}

func TestNumberedReplies(t *testing.T) {
	h := newHarness(t)
	h.text("hola")
	h.text("Ana Gómez")

	msgs := h.text("2")
	assert.Equal(t, "Córdoba", h.session().Slots.Region)
	assert.Equal(t, "🗺️ ¿En qué zona de Córdoba?", last(t, msgs).Body)

	h.text("3")
	s := h.session()
	assert.Equal(t, "Este", s.Slots.SubRegion)
	assert.Equal(t, models.StageProduct, s.Stage)

	h.text("3")
	assert.Equal(t, "Trigo", h.session().Slots.Category)
	assert.Equal(t, "", h.session().Slots.Campaign, "a selection is not scanned as free text")

	h.text("2")
	assert.Equal(t, "2", h.session().Slots.Quantity, "quantity takes the number itself")

	h.text("1")
	assert.Equal(t, "Fina", h.session().Slots.Campaign)
	assert.Equal(t, models.StageCheckout, h.session().Stage)

	msgs = h.text("1")
	assert.Equal(t, "document", msgs[0].Kind, "1 confirms the quote button")
	assert.Equal(t, models.StageClosed, h.session().Stage)
}

func TestSelectionBeatsFreeText(t *testing.T) {
	h := newHarness(t)
	h.text("hola")
	h.text("Juan Pérez")
	h.pick("region_0")

	h.handle(models.InboundEvent{Type: models.EventInteractive, SelectionID: "subregion_sudeste", Text: "Norte"})
	assert.Equal(t, "Sudeste", h.session().Slots.SubRegion)
}

func TestSlotsAreFirstWriteWins(t *testing.T) {
	h := newHarness(t)
	h.text("hola")
	h.text("Juan Pérez")
	h.pick("region_0")

	msgs := h.pick("region_1")
	assert.Equal(t, "Buenos Aires", h.session().Slots.Region)
	assert.Equal(t, MenuSubRegion, last(t, msgs).Menu.Name)

	h.text("Maria Lopez")
	assert.Equal(t, "Juan Pérez", h.session().Slots.FullName)
}

func TestRegionWithoutZonesSkipsSubRegion(t *testing.T) {
	h := newHarness(t)
	h.text("hola")
	h.text("Juan Pérez")

	msgs := h.text("somos de santa fe")
	s := h.session()
	assert.Equal(t, "Santa Fe", s.Slots.Region)
	assert.Equal(t, models.StageProduct, s.Stage)
	assert.Equal(t, MenuCategory, last(t, msgs).Menu.Name)
}

func TestNameRejectedWhenIntentFires(t *testing.T) {
	h := newHarness(t)
	h.text("hola")

	msgs := h.text("cuanto sale la entrega")
	assert.Equal(t, "", h.session().Slots.FullName)
	got := bodies(msgs)
	require.Len(t, got, 3)
	cat := catalog.MustDefault()
	assert.Equal(t, cat.FAQ.Price, got[0])
	assert.Equal(t, cat.FAQ.Shipping, got[1])
	assert.Equal(t, msgAskName, got[2])
	assert.Equal(t, 0, h.session().Retries[models.SlotFullName], "answered questions are not misses")

	h.text("Santa Fe")
	assert.Equal(t, "", h.session().Slots.FullName, "a region is not a name")
	assert.Equal(t, "Santa Fe", h.session().Slots.Region)
}

func TestLocativePhraseIsNotAName(t *testing.T) {
	h := newHarness(t)
	h.text("hola")

	msgs := h.text("Soy de Córdoba")
	s := h.session()
	assert.Equal(t, "", s.Slots.FullName)
	assert.Equal(t, "Córdoba", s.Slots.Region)
	assert.Equal(t, msgAskName, last(t, msgs).Body)

	h.text("Juan Córdoba")
	assert.Equal(t, "Juan Córdoba", h.session().Slots.FullName, "a surname that matches a province is still a name")
}

func TestAddItem(t *testing.T) {
	h := newHarness(t)
	h.text("hola")

	msgs := h.text("agregame 3 bidones de glifosato")
	assert.Equal(t, "🛒 Agregué Glifosato 20 L x3 a tu pedido.", msgs[0].Body)

	s := h.session()
	require.Len(t, s.Cart, 1)
	assert.Equal(t, "HER-GLI-20", s.Cart[0].SKU)
	assert.Equal(t, 3.0, s.Cart[0].Qty)
	require.NotNil(t, s.Cart[0].Price)
	assert.Equal(t, 58500.0, *s.Cart[0].Price)
	assert.Equal(t, models.StageDiscovery, s.Stage)
}

func TestQuantityWithUnitIsNotAnItem(t *testing.T) {
	for text, want := range map[string]string{"quiero 300 hectareas": "300", "necesito 50 ha": "50"} {
		t.Run(text, func(t *testing.T) {
			h := newHarness(t)
			h.seed(func(s *models.Session) {
				s.Stage = models.StageProduct
				s.Slots = models.Slots{FullName: "Juan Pérez", Region: "Santa Fe", Category: "Soja"}
			})

			msgs := h.text(text)
			s := h.session()
			assert.Equal(t, want, s.Slots.Quantity)
			assert.Empty(t, s.Cart)
			for _, body := range bodies(msgs) {
				assert.NotContains(t, body, "Agregué")
			}
		})
	}
}

func TestCartPasteForcesCheckout(t *testing.T) {
	h := newHarness(t)
	h.text("hola")

	msgs := h.text("Mi pedido:\n* Tijera Grande x3 @25.50 -> 76.50\n* Urea x2")
	s := h.session()
	assert.Equal(t, models.StageCheckout, s.Stage)
	require.Len(t, s.Cart, 2)
	assert.Equal(t, "HER-TIJ-G", s.Cart[0].SKU)
	assert.Equal(t, "FER-UREA-50", s.Cart[1].SKU)
	assert.Nil(t, s.Cart[1].Price)

	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Body, "Tijera Grande x3 @25.50 = 76.50")
	assert.Equal(t, MenuQuote, msgs[1].Menu.Name)

	h.text("cuanto sale?")
	require.Len(t, h.gen.summaries, 1, "price intent in checkout fires the quote")
	assert.Len(t, h.gen.summaries[0].Items, 2)
	assert.Equal(t, models.StageClosed, h.session().Stage)
}

func TestQuoteFailureStillCloses(t *testing.T) {
	h := newHarness(t)
	h.gen.fail = true
	h.seed(func(s *models.Session) {
		s.Stage = models.StageCheckout
		s.Slots = models.Slots{FullName: "Juan Pérez", Region: "Santa Fe", Category: "Maíz", Quantity: "80", Campaign: "Gruesa"}
	})

	msgs := h.pick(catalog.SelectQuoteConfirm)
	require.Len(t, msgs, 1)
	assert.Equal(t, msgQuoteFailed, msgs[0].Body)
	assert.Equal(t, models.StageClosed, h.session().Stage)

	require.Len(t, h.rec.snaps, 1, "sinks run regardless of the document step")
	assert.Empty(t, h.rec.snaps[0].QuoteID)
}

func TestDocumentDeliveryFailure(t *testing.T) {
	h := newHarness(t)
	h.msgr.failDocs = true
	h.seed(func(s *models.Session) { s.Stage = models.StageCheckout })

	msgs := h.pick(catalog.SelectQuoteConfirm)
	assert.Equal(t, []string{msgQuoteFailed}, bodies(msgs))
	assert.Equal(t, models.StageClosed, h.session().Stage)
	assert.Empty(t, h.session().Metadata[MetaQuoteID])
}

func TestHumanHandoff(t *testing.T) {
	h := newHarness(t)
	h.text("hola")

	msgs := h.text("quiero hablar con un asesor")
	assert.Equal(t, []string{msgHandoff}, bodies(msgs))

	s := h.session()
	require.NotNil(t, s.PausedUntil)
	assert.Equal(t, h.now.Add(PauseDuration), *s.PausedUntil)
	assert.Equal(t, "true", s.Metadata[MetaHandoff])
	assert.Equal(t, models.StageDiscovery, s.Stage, "pause does not change stage")

	msgs = h.text("Juan Pérez")
	assert.Equal(t, []string{msgStillHandoff}, bodies(msgs))
	assert.Equal(t, "", h.session().Slots.FullName, "no extraction while paused")

	h.now = h.now.Add(PauseDuration + time.Minute)
	h.text("Juan Pérez")
	s = h.session()
	assert.Equal(t, "Juan Pérez", s.Slots.FullName, "pause elapsed")
	assert.Nil(t, s.PausedUntil)
}

func TestResumeKeywordContinuesSameTurn(t *testing.T) {
	h := newHarness(t)
	h.seed(func(s *models.Session) {
		until := h.now.Add(time.Hour)
		s.PausedUntil = &until
		s.Metadata[MetaHandoff] = "true"
		s.Slots.FullName = "Juan Pérez"
	})

	msgs := h.text("reanudar")
	require.Len(t, msgs, 2)
	assert.Equal(t, msgResumed, msgs[0].Body)
	assert.Equal(t, MenuRegion, msgs[1].Menu.Name, "stage processing resumed in the same turn")

	s := h.session()
	assert.Nil(t, s.PausedUntil)
	assert.NotContains(t, s.Metadata, MetaHandoff)
	assert.Equal(t, 0, s.Retries[models.SlotRegion])
}

func TestCloseFromAnyStage(t *testing.T) {
	h := newHarness(t)
	h.seed(func(s *models.Session) { s.Stage = models.StageProduct })

	msgs := h.text("no gracias, chau")
	assert.Equal(t, []string{msgGoodbye}, bodies(msgs))
	assert.Equal(t, models.StageClosed, h.session().Stage)

	msgs = h.text("hola")
	assert.Equal(t, []string{msgClosedNoQuote}, bodies(msgs), "no quote was sent")

	msgs = h.text("Nueva cotización")
	s := h.session()
	assert.Equal(t, models.StageDiscovery, s.Stage)
	assert.Equal(t, models.Slots{}, s.Slots)
	assert.Equal(t, msgAskName, last(t, msgs).Body)
}

func TestGlobalIntentsRedirect(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.CatalogDocumentURL = "https://media.test/catalogo.pdf" })
	h.text("hola")
	h.text("Juan Pérez")

	msgs := h.text("me pasás el catálogo y precios?")
	require.Len(t, msgs, 2)
	assert.Equal(t, "document", msgs[0].Kind)
	assert.Equal(t, "https://media.test/catalogo.pdf", msgs[0].URL)
	assert.Equal(t, MenuRegion, msgs[1].Menu.Name)

	msgs = h.text("donde estan ubicados?")
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Body, "Ruta 8 km 226")
	assert.Equal(t, MenuRegion, msgs[1].Menu.Name)
	assert.Equal(t, 0, h.session().Retries[models.SlotRegion])
}

func TestLocationEvent(t *testing.T) {
	h := newHarness(t)
	h.seed(func(s *models.Session) { s.Stage = models.StageProduct })

	msgs := h.handle(models.InboundEvent{Type: models.EventLocation, Latitude: -33.89, Longitude: -60.57})
	assert.Equal(t, []string{msgLocationAck}, bodies(msgs))

	s := h.session()
	require.NotNil(t, s.Location)
	assert.Equal(t, -33.89, s.Location.Latitude)
	assert.Equal(t, models.StageProduct, s.Stage)
}

func TestDuplicateEventsAreDropped(t *testing.T) {
	h := newHarness(t)
	ev := models.InboundEvent{ID: "SMdup", Type: models.EventText, Text: "hola"}

	assert.NotEmpty(t, h.handle(ev))
	assert.Empty(t, h.handle(ev))

	h.now = h.now.Add(10 * time.Minute)
	assert.Empty(t, h.handle(ev), "already applied to the session")
}

func TestAssistantFallback(t *testing.T) {
	a := &fakeAssistant{}
	h := newHarness(t, func(o *Options) { o.Assistant = a })
	h.text("hola")
	h.text("Juan Pérez")

	msgs := h.text("¿qué herbicida me recomendás?")
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Body, "glifosato")
	assert.Equal(t, MenuRegion, msgs[1].Menu.Name)
	assert.Equal(t, []string{"¿qué herbicida me recomendás?"}, a.asked)
	assert.NotEmpty(t, a.history)

	h.text("no entiendo")
	assert.Len(t, a.asked, 1, "statements do not reach the assistant")
}

func TestPanicIsRecovered(t *testing.T) {
	h := newHarness(t)
	h.msgr.panicky = true

	var err error
	assert.NotPanics(t, func() {
		err = h.engine.Handle(context.Background(), models.InboundEvent{
			ID: "SMboom", From: "whatsapp:" + testPhone, Type: models.EventText, Text: "hola",
		})
	})
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "panicked"))
}

func TestMissingSender(t *testing.T) {
	h := newHarness(t)
	err := h.engine.Handle(context.Background(), models.InboundEvent{ID: "SMx", Type: models.EventText, Text: "hola"})
	assert.Error(t, err)
}

func TestNewEngineValidates(t *testing.T) {
	_, err := NewEngine(Options{})
	assert.Error(t, err)
}
