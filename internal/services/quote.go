package services

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// QuoteIDPrefix starts every quote number.
const QuoteIDPrefix = "COT-"

// QuoteIDs issues sortable quote numbers. Ids created in the same millisecond stay ordered.
type QuoteIDs struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewQuoteIDs() *QuoteIDs {
	return &QuoteIDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns a quote number for a quote issued at t.
func (q *QuoteIDs) New(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return QuoteIDPrefix + ulid.MustNew(ulid.Timestamp(t), q.entropy).String()
}
