package models

import "time"

// QuoteSummary is the structured input of the document generator
type QuoteSummary struct {
	QuoteID    string     `json:"quote_id"`
	ClientName string     `json:"client_name"`
	Phone      string     `json:"phone"`
	Location   string     `json:"location"`
	Category   string     `json:"category"`
	Surface    string     `json:"surface"`
	Campaign   string     `json:"campaign"`
	Items      []CartItem `json:"items"`
	IssuedAt   time.Time  `json:"issued_at"`
}

// Total returns the sum of all priced lines and whether any line was unpriced.
func (q QuoteSummary) Total() (total float64, partial bool) {
	for _, it := range q.Items {
		sub := it.Subtotal()
		if sub == nil {
			partial = true
			continue
		}
		total += *sub
	}
	return total, partial
}

// QuoteDocument is the handle returned by the document generator
type QuoteDocument struct {
	QuoteID  string `json:"quote_id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}
