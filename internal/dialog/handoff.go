package dialog

import (
	"context"
	"time"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
	"github.com/Ananth-NQI/agrobot-backend/internal/nlu"
)

// PauseDuration is how long a human operator owns a conversation after a handoff.
const PauseDuration = 4 * time.Hour

// MetaHandoff marks a session currently handed to a human.
const MetaHandoff = "handoff"

var resumeKeywords = []string{"reanudar", "volver al bot", "bot", "menu"}

// IsResume reports whether text asks to give the conversation back to the bot.
func IsResume(text string) bool {
	n := nlu.Normalize(text)
	for _, kw := range resumeKeywords {
		if n == kw || nlu.ContainsWords(n, kw) {
			return true
		}
	}
	return false
}

// HandoffController owns the human-pause window of a session.
type HandoffController struct {
	duration time.Duration
}

// NewHandoffController returns a controller pausing for d; zero means PauseDuration.
func NewHandoffController(d time.Duration) *HandoffController {
	if d <= 0 {
		d = PauseDuration
	}
	return &HandoffController{duration: d}
}

// Pause hands the session to a human until now plus the pause duration.
func (h *HandoffController) Pause(s *models.Session, now time.Time) {
	until := now.Add(h.duration)
	s.PausedUntil = &until
	s.Metadata[MetaHandoff] = "true"
}

// Resume gives the session back to the bot.
func (h *HandoffController) Resume(s *models.Session) {
	s.PausedUntil = nil
	delete(s.Metadata, MetaHandoff)
}

// Gate decides whether the turn may continue. A paused session only continues when the
// text is a resume keyword, in which case the pause is cleared and resumed is true.
func (h *HandoffController) Gate(ctx context.Context, t *turn) (proceed, resumed bool) {
	if !t.sess.Paused(t.now) {
		if t.sess.PausedUntil != nil {
			h.Resume(t.sess)
		}
		return true, false
	}
	if IsResume(t.text) {
		h.Resume(t.sess)
		t.say(ctx, msgResumed)
		return true, true
	}
	t.say(ctx, msgStillHandoff)
	return false, false
}
