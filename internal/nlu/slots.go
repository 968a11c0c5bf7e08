package nlu

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/Ananth-NQI/agrobot-backend/internal/catalog"
	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// Tier is the confidence of a slot match. Higher is stronger.
type Tier int

const (
	TierNone Tier = iota
	TierFuzzy
	TierAlias
	TierExact
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierAlias:
		return "alias"
	case TierFuzzy:
		return "fuzzy"
	}
	return "none"
}

// Match is a detected slot value
type Match struct {
	Value string
	Tier  Tier
}

// Detection holds at most one value per slot kind.
type Detection struct {
	Values map[models.SlotKind]Match

	// AmbiguousCampaign is set when both campaign periods were mentioned; the campaign slot
	// is then left unresolved.
	AmbiguousCampaign bool
}

// Get returns the detected value for kind.
func (d Detection) Get(kind models.SlotKind) (Match, bool) {
	m, ok := d.Values[kind]
	return m, ok
}

// Detector extracts slot values against a catalog.
type Detector struct {
	cat       *catalog.Catalog
	synonyms  map[string]string // normalized synonym -> region name
	regionKey map[string]string // normalized region name -> region name
}

// NewDetector indexes the catalog for lookups.
func NewDetector(cat *catalog.Catalog) *Detector {
	d := &Detector{
		cat:       cat,
		synonyms:  make(map[string]string),
		regionKey: make(map[string]string),
	}
	for _, r := range cat.Regions {
		d.regionKey[Normalize(r.Name)] = r.Name
		for _, s := range r.Synonyms {
			d.synonyms[Normalize(s)] = r.Name
		}
	}
	return d
}

// Catalog returns the catalog the detector was built from.
func (d *Detector) Catalog() *catalog.Catalog {
	return d.cat
}

// Extract evaluates every slot kind independently against text. region scopes sub-region
// matching; when empty, a region detected in the same text is used.
func (d *Detector) Extract(text, region string) Detection {
	det := Detection{Values: make(map[models.SlotKind]Match)}
	n := Normalize(text)
	if n == "" {
		return det
	}

	if name, ok := FullName(text); ok {
		det.Values[models.SlotFullName] = Match{Value: name, Tier: TierExact}
	}
	if m, ok := d.Region(n); ok {
		det.Values[models.SlotRegion] = m
		if region == "" {
			region = m.Value
		}
	}
	if m, ok := d.SubRegion(n, region); ok {
		det.Values[models.SlotSubRegion] = m
	}
	if m, ok := d.Category(n); ok {
		det.Values[models.SlotCategory] = m
	}
	if v, ok := d.Quantity(text); ok {
		det.Values[models.SlotQuantity] = Match{Value: v, Tier: TierExact}
	}
	if v, ambiguous := d.Campaign(n); v != "" {
		det.Values[models.SlotCampaign] = Match{Value: v, Tier: TierExact}
	} else {
		det.AmbiguousCampaign = ambiguous
	}
	return det
}

var nameStopwords = map[string]bool{
	"hola": true, "buenas": true, "buen": true, "buenos": true, "dia": true, "dias": true,
	"tardes": true, "noches": true, "gracias": true, "quiero": true, "necesito": true,
	"si": true, "no": true, "ok": true, "consulta": true, "informacion": true,
}

// FullName accepts text made of at least two tokens of letters plus space, hyphen,
// apostrophe and period.
func FullName(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 || len(fields) > 6 {
		return "", false
	}
	for _, f := range fields {
		letters := 0
		for _, r := range f {
			switch {
			case unicode.IsLetter(r):
				letters++
			case r == '-' || r == '\'' || r == '’' || r == '.':
			default:
				return "", false
			}
		}
		if letters == 0 {
			return "", false
		}
		if nameStopwords[Normalize(f)] {
			return "", false
		}
	}
	return strings.Join(fields, " "), true
}

// Region matches exact names, then the synonym table, then substring containment.
func (d *Detector) Region(n string) (Match, bool) {
	if name, ok := d.regionKey[n]; ok {
		return Match{Value: name, Tier: TierExact}, true
	}
	if name, ok := d.synonyms[n]; ok {
		return Match{Value: name, Tier: TierAlias}, true
	}
	for _, r := range d.cat.Regions {
		if ContainsWords(n, Normalize(r.Name)) {
			return Match{Value: r.Name, Tier: TierFuzzy}, true
		}
		for _, s := range r.Synonyms {
			if ContainsWords(n, Normalize(s)) {
				return Match{Value: r.Name, Tier: TierFuzzy}, true
			}
		}
	}
	return Match{}, false
}

// SubRegion matches within one parent region: exact, substring, then aliases.
func (d *Detector) SubRegion(n, region string) (Match, bool) {
	r, ok := d.cat.Region(region)
	if !ok || len(r.SubRegions) == 0 {
		return Match{}, false
	}
	for _, sr := range r.SubRegions {
		if n == Normalize(sr.Name) || n == sr.Code {
			return Match{Value: sr.Name, Tier: TierExact}, true
		}
	}
	for _, sr := range r.SubRegions {
		if ContainsWords(n, Normalize(sr.Name)) {
			return Match{Value: sr.Name, Tier: TierFuzzy}, true
		}
	}
	for _, sr := range r.SubRegions {
		for _, a := range sr.Aliases {
			if ContainsWords(n, Normalize(a)) {
				return Match{Value: sr.Name, Tier: TierAlias}, true
			}
		}
	}
	return Match{}, false
}

// Category matches the option list exactly or by containment, plus the misspelling table.
func (d *Detector) Category(n string) (Match, bool) {
	for _, c := range d.cat.Categories {
		if n == Normalize(c) {
			return Match{Value: c, Tier: TierExact}, true
		}
	}
	for _, c := range d.cat.Categories {
		if ContainsWords(n, Normalize(c)) {
			return Match{Value: c, Tier: TierFuzzy}, true
		}
	}
	terms := make([]string, 0, len(d.cat.CategoryExceptions))
	for term := range d.cat.CategoryExceptions {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		if ContainsWords(n, Normalize(term)) {
			return Match{Value: d.cat.CategoryExceptions[term], Tier: TierAlias}, true
		}
	}
	return Match{}, false
}

// a number not glued to a range marker, so "50-200" and "500+" stay labels
var standaloneNumber = regexp.MustCompile(`(?:^|[^\d.,+\-])(\d+(?:[.,]\d+)?)(?:$|[^\d+\-])`)

// Quantity returns the first standalone decimal number in text, or a range label when the
// raw input is exactly one of them.
func (d *Detector) Quantity(text string) (string, bool) {
	if m := standaloneNumber.FindStringSubmatch(Normalize(text)); m != nil {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil {
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
	}
	raw := strings.TrimSpace(text)
	for _, label := range d.cat.QuantityRanges {
		if raw == label || raw == label+" ha" {
			return label, true
		}
	}
	return "", false
}

// Campaign classifies text into one of the two periods. When both match, the value is
// empty and ambiguous is true.
func (d *Detector) Campaign(n string) (value string, ambiguous bool) {
	var hits []string
	for i := range d.cat.Campaigns {
		if d.cat.Campaigns[i].Match(n) {
			hits = append(hits, d.cat.Campaigns[i].Name)
		}
	}
	switch len(hits) {
	case 1:
		return hits[0], false
	case 0:
		return "", false
	}
	return "", true
}

// MatchProduct finds the catalog product whose longest keyword appears in name.
func (d *Detector) MatchProduct(name string) (*catalog.Product, bool) {
	n := Normalize(name)
	var best *catalog.Product
	bestLen := 0
	for i := range d.cat.Products {
		p := &d.cat.Products[i]
		for _, kw := range append([]string{p.Name}, p.Keywords...) {
			k := Normalize(kw)
			if len(k) > bestLen && ContainsWords(n, k) {
				best, bestLen = p, len(k)
			}
		}
	}
	return best, best != nil
}
