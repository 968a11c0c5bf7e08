package dialog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Ananth-NQI/agrobot-backend/internal/catalog"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// Menu names double as content template keys for the transport.
const (
	MenuRegion    = "region"
	MenuSubRegion = "sub_region"
	MenuCategory  = "category"
	MenuQuantity  = "quantity"
	MenuCampaign  = "campaign"
	MenuQuote     = "quote_cta"
)

const (
	msgAskName     = "Para armar tu cotización, ¿me decís tu *nombre y apellido*?"
	msgAskRegion   = "📍 ¿En qué provincia está el campo?"
	msgAskCategory = "🌱 ¿Para qué cultivo necesitás los insumos?"
	msgAskQuantity = "📏 ¿Cuántas hectáreas vas a trabajar? Escribí el número o elegí un rango."
	msgAskCampaign = "📅 ¿Para qué campaña? *Fina* (invierno) o *gruesa* (verano)."
	msgAskQuote    = "¿Generamos la cotización con estos datos?"

	msgQuoteButton = "Generar cotización"

	msgHandoff       = "🙋 Te comunico con un asesor. En breve te responde una persona del equipo."
	msgStillHandoff  = "🙋 Te está atendiendo un asesor. Si querés volver al asistente escribí *reanudar*."
	msgResumed       = "🤖 ¡Volví! Sigamos con tu consulta."
	msgGoodbye       = "👋 ¡Gracias por escribirnos! Cuando quieras retomamos."
	msgClosed        = "✅ Tu cotización ya fue enviada. Si necesitás otra escribí *nueva cotización*."
	msgClosedNoQuote = "👋 Esta conversación está cerrada. Si querés cotizar escribí *nueva cotización*."
	msgLocationAck   = "📍 ¡Gracias! Guardamos la ubicación de tu campo."
	msgAttachmentAck = "📎 Recibimos tu archivo. Un asesor lo va a revisar."
	msgQuoteFailed   = "😔 Tuvimos un problema al generar tu cotización. Un asesor te la va a enviar a la brevedad."
	msgQuoteSent     = "✅ ¡Listo! Si necesitás otra cotización escribí *nueva cotización*."
)

var hints = map[models.SlotKind]string{
	models.SlotFullName:  "💡 Escribí tu nombre y apellido, por ejemplo: *Juan Pérez*.",
	models.SlotRegion:    "💡 Tocá una opción de la lista o respondé con el número de la provincia.",
	models.SlotSubRegion: "💡 Elegí la zona de la lista o escribí la localidad más cercana.",
	models.SlotCategory:  "💡 Elegí el cultivo de la lista o respondé con su número.",
	models.SlotQuantity:  "💡 Escribí solo la cantidad de hectáreas, por ejemplo: *120*.",
	models.SlotCampaign:  "💡 Respondé *fina* o *gruesa*.",
}

func greeting(business, profileName string) string {
	hello := "👋 ¡Hola!"
	if first := strings.Fields(profileName); len(first) > 0 {
		hello = fmt.Sprintf("👋 ¡Hola %s!", first[0])
	}
	return fmt.Sprintf("%s Soy el asistente virtual de *%s*. Te ayudo a armar tu cotización de insumos.", hello, business)
}

// slotMenu returns the menu asking for kind. ok is false for free-text slots.
func slotMenu(cat *catalog.Catalog, kind models.SlotKind, region string) (models.Menu, bool) {
	m := models.Menu{Name: string(kind), Options: cat.Options(kind, region), Numbered: true}
	switch kind {
	case models.SlotRegion:
		m.Name, m.Body = MenuRegion, msgAskRegion
	case models.SlotSubRegion:
		m.Name, m.Body = MenuSubRegion, fmt.Sprintf("🗺️ ¿En qué zona de %s?", region)
	case models.SlotCategory:
		m.Name, m.Body = MenuCategory, msgAskCategory
	case models.SlotQuantity:
		m.Name, m.Body, m.Numbered = MenuQuantity, msgAskQuantity, false
	case models.SlotCampaign:
		m.Name, m.Body = MenuCampaign, msgAskCampaign
	default:
		return models.Menu{}, false
	}
	return m, true
}

func quoteMenu() models.Menu {
	return models.Menu{
		Name:     MenuQuote,
		Body:     msgAskQuote,
		Options:  []models.MenuOption{{ID: catalog.SelectQuoteConfirm, Title: msgQuoteButton}},
		Numbered: true,
	}
}

// closedMessage answers any message in a closed session.
func closedMessage(s *models.Session) string {
	if s.Metadata[MetaQuoteID] == "" {
		return msgClosedNoQuote
	}
	return msgClosed
}

// numberedChoice maps a bare "2" reply to the id of the second option.
func numberedChoice(menu models.Menu, text string) (string, bool) {
	if !menu.Numbered {
		return "", false
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ".")))
	if err != nil || n < 1 || n > len(menu.Options) {
		return "", false
	}
	return menu.Options[n-1].ID, true
}

func summaryText(s *models.Session) string {
	var b strings.Builder
	b.WriteString("📋 *Resumen de tu consulta*\n")
	line := func(label, value string) {
		if value == "" {
			value = "—"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	}
	line("👤 Nombre", s.Slots.FullName)
	line("📍 Ubicación", locationLabel(s.Slots))
	line("🌱 Cultivo", s.Slots.Category)
	line("📏 Superficie", surfaceLabel(s.Slots.Quantity))
	line("📅 Campaña", s.Slots.Campaign)
	if len(s.Cart) > 0 {
		b.WriteString("🛒 Pedido:\n")
		for _, it := range s.Cart {
			b.WriteString("• " + itemLabel(it) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func locationLabel(s models.Slots) string {
	switch {
	case s.SubRegion != "" && s.Region != "":
		return s.SubRegion + ", " + s.Region
	default:
		return s.Region
	}
}

func surfaceLabel(q string) string {
	if q == "" {
		return ""
	}
	return q + " ha"
}

func itemLabel(it models.CartItem) string {
	label := fmt.Sprintf("%s x%s", it.Name, formatNumber(it.Qty))
	if it.Price != nil {
		label += fmt.Sprintf(" @%.2f = %.2f", *it.Price, *it.Subtotal())
	}
	return label
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
