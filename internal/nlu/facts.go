package nlu

import (
	"sort"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// FactKind tags a Fact variant
type FactKind string

const (
	FactIntent FactKind = "intent"
	FactSlot   FactKind = "slot"
)

// Fact is one classified piece of a message: either an intent or a slot value.
type Fact struct {
	Kind   FactKind
	Intent Intent
	Slot   models.SlotKind
	Match  Match
}

// Priority decides which fact wins when several fire on one message. Lower runs first.
// Terminating intents come before anything that changes state, slot values come after the
// intents that short-circuit a turn and before the informational ones.
var Priority = map[string]int{
	string(WantsClose):           0,
	string(WantsHuman):           1,
	string(WantsCatalog):         2,
	string(WantsLocation):        3,
	string(AddItem):              4,
	string(WantsPrice):           5,
	string(models.SlotFullName):  10,
	string(models.SlotRegion):    11,
	string(models.SlotSubRegion): 12,
	string(models.SlotCategory):  13,
	string(models.SlotQuantity):  14,
	string(models.SlotCampaign):  15,
	string(WantsAvailability):    20,
	string(WantsShipping):        21,
	string(WantsPayment):         22,
}

func (f Fact) key() string {
	if f.Kind == FactIntent {
		return string(f.Intent.Kind)
	}
	return string(f.Slot)
}

// Rank returns the fact's position in the priority table.
func (f Fact) Rank() int {
	if r, ok := Priority[f.key()]; ok {
		return r
	}
	return len(Priority) + 100
}

// Analysis is the ordered result of classifying one message
type Analysis struct {
	Normalized        string
	Facts             []Fact
	AmbiguousCampaign bool
}

// Intents returns the intent facts in priority order.
func (a Analysis) Intents() []Intent {
	var out []Intent
	for _, f := range a.Facts {
		if f.Kind == FactIntent {
			out = append(out, f.Intent)
		}
	}
	return out
}

// Slot returns the detected value for kind.
func (a Analysis) Slot(kind models.SlotKind) (Match, bool) {
	for _, f := range a.Facts {
		if f.Kind == FactSlot && f.Slot == kind {
			return f.Match, true
		}
	}
	return Match{}, false
}

// Top returns the highest priority fact.
func (a Analysis) Top() (Fact, bool) {
	if len(a.Facts) == 0 {
		return Fact{}, false
	}
	return a.Facts[0], true
}

// Analyze classifies text into intents and slot values ordered by Priority.
func (d *Detector) Analyze(text, region string) Analysis {
	a := Analysis{Normalized: Normalize(text)}
	for _, it := range Classify(text) {
		a.Facts = append(a.Facts, Fact{Kind: FactIntent, Intent: it})
	}
	det := d.Extract(text, region)
	for kind, m := range det.Values {
		a.Facts = append(a.Facts, Fact{Kind: FactSlot, Slot: kind, Match: m})
	}
	a.AmbiguousCampaign = det.AmbiguousCampaign
	sort.SliceStable(a.Facts, func(i, j int) bool {
		return a.Facts[i].Rank() < a.Facts[j].Rank()
	})
	return a
}
