// Package dedup suppresses duplicate deliveries of the same inbound event.
package dedup

import (
	"context"
	"time"
)

// Window is how long an event id is remembered.
const Window = 5 * time.Minute

// Guard reports whether an event id was already processed. The first call for an id
// records it and returns false; every later call inside the window returns true.
type Guard interface {
	Seen(ctx context.Context, eventID string) bool
}
