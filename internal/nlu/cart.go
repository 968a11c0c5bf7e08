package nlu

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// "• name xQTY @PRICE -> SUBTOTAL" with every part after the name optional
var cartLine = regexp.MustCompile(`^\s*[*•·\-–]\s*(.+?)(?:\s+[xX]\s*(\d+(?:[.,]\d+)?))?(?:\s*@\s*\$?\s*(\d+(?:[.,]\d+)?))?(?:\s*(?:->|→|=>)\s*\$?\s*\d+(?:[.,]\d+)?)?\s*$`)

// ParseCart recognizes a pasted shopping list. Lines without a bullet are ignored. A paste
// needs two bulleted items, or one carrying a quantity or a price, to count as a cart.
func ParseCart(text string) ([]models.CartItem, bool) {
	var items []models.CartItem
	marked := false
	for _, line := range strings.Split(text, "\n") {
		m := cartLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		item := models.CartItem{Name: name, Qty: 1}
		if m[2] != "" {
			if q, err := parseNumber(m[2]); err == nil && q > 0 {
				item.Qty = q
				marked = true
			}
		}
		if m[3] != "" {
			if p, err := parseNumber(m[3]); err == nil {
				item.Price = &p
				marked = true
			}
		}
		items = append(items, item)
	}
	if len(items) == 0 || (len(items) == 1 && !marked) {
		return nil, false
	}
	return items, true
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
