package nlu

import (
	"regexp"
	"strconv"
	"strings"
)

// IntentKind is a discrete user goal detected from free text
type IntentKind string

const (
	WantsCatalog      IntentKind = "wants_catalog"
	WantsLocation     IntentKind = "wants_location"
	WantsHuman        IntentKind = "wants_human"
	WantsClose        IntentKind = "wants_close"
	WantsPrice        IntentKind = "wants_price"
	WantsAvailability IntentKind = "wants_availability"
	WantsShipping     IntentKind = "wants_shipping"
	WantsPayment      IntentKind = "wants_payment"
	AddItem           IntentKind = "add_item"
)

// Intent is one detected intent. Qty and Item are only set for AddItem.
type Intent struct {
	Kind IntentKind
	Qty  float64
	Item string
}

type intentRule struct {
	kind IntentKind
	re   *regexp.Regexp
}

// Rules run on normalized text, in this order. Order only affects the order of the
// returned slice; priority between intents is decided by the caller (see Priority).
var intentRules = []intentRule{
	{WantsCatalog, regexp.MustCompile(`\b(catalogo|catalogos|lista de productos|que productos|que venden|folleto)\b`)},
	{WantsLocation, regexp.MustCompile(`\b(ubicacion|direccion|donde (estan|quedan|queda|los encuentro)|sucursal|como llego)\b`)},
	{WantsHuman, regexp.MustCompile(`\b(asesor|asesora|humano|una persona|vendedor|vendedora|operador|hablar con (alguien|una persona)|atencion personal)\b`)},
	{WantsClose, regexp.MustCompile(`\b(chau|adios|hasta luego|finalizar|terminar|cancelar|no gracias|no quiero (nada|seguir))\b`)},
	{WantsPrice, regexp.MustCompile(`\b(precio|precios|cuanto (sale|cuesta|cuestan|salen|vale|valen)|cotizacion|cotizar|cotizame|presupuesto|costo|costos)\b`)},
	{WantsAvailability, regexp.MustCompile(`\b(stock|disponible|disponibles|disponibilidad|tienen|hay)\b`)},
	{WantsShipping, regexp.MustCompile(`\b(envio|envios|enviar|entrega|entregan|entregas|flete|despacho|despachan|llevan)\b`)},
	{WantsPayment, regexp.MustCompile(`\b(pago|pagos|pagar|tarjeta|transferencia|cuotas|efectivo|financiacion|cheque|canje)\b`)},
}

// verb + number + noun, e.g. "agregame 3 bidones de glifosato"
var addItemRe = regexp.MustCompile(`\b(?:agrega|agregar|agregame|suma|sumar|sumame|quiero|necesito|anota|anotame|pone|poneme|mandame|dame)\s+(\d+(?:[.,]\d+)?)\s+(?:x\s+)?(?:unidades?\s+|u\s+)?(?:de\s+)?([a-z][a-z0-9 .\-]*[a-z0-9])`)

// surfaceUnits answer "how many hectares", they are never products.
var surfaceUnits = map[string]bool{"ha": true, "has": true, "hectarea": true, "hectareas": true}

// Classify returns every intent detected in text. The result is deterministic and
// independent of call order.
func Classify(text string) []Intent {
	n := Normalize(text)
	if n == "" {
		return nil
	}
	var out []Intent
	for _, r := range intentRules {
		if r.re.MatchString(n) {
			out = append(out, Intent{Kind: r.kind})
		}
	}
	if it, ok := parseAddItem(n); ok {
		out = append(out, it)
	}
	return out
}

func parseAddItem(n string) (Intent, bool) {
	m := addItemRe.FindStringSubmatch(n)
	if m == nil {
		return Intent{}, false
	}
	qty, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || qty <= 0 {
		return Intent{}, false
	}
	item := m[2]
	if i := strings.Index(item, " y "); i > 0 {
		item = item[:i]
	}
	item = strings.TrimSpace(item)
	if item == "" {
		return Intent{}, false
	}
	if f := strings.Fields(item); surfaceUnits[strings.TrimSuffix(f[0], ".")] {
		return Intent{}, false
	}
	return Intent{Kind: AddItem, Qty: qty, Item: item}, true
}

// Has reports whether kind is among intents.
func Has(intents []Intent, kind IntentKind) bool {
	for _, it := range intents {
		if it.Kind == kind {
			return true
		}
	}
	return false
}

// Find returns the first intent of the given kind.
func Find(intents []Intent, kind IntentKind) (Intent, bool) {
	for _, it := range intents {
		if it.Kind == kind {
			return it, true
		}
	}
	return Intent{}, false
}
