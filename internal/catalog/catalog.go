// Package catalog holds the fixed enumerations the intake bot matches against: regions and
// their zones, crop categories, surface ranges, campaigns, products and canned answers.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

//go:embed catalog.yaml
var defaultYAML []byte

// Selection id prefixes used by interactive replies.
const (
	PrefixRegion    = "region_"
	PrefixSubRegion = "subregion_"
	PrefixCategory  = "category_"
	PrefixQuantity  = "qty_"
	PrefixCampaign  = "campaign_"

	SelectQuoteConfirm = "quote_confirm"
)

type Business struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	MapsURL string `yaml:"maps_url"`
	Hours   string `yaml:"hours"`
}

type SubRegion struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type Region struct {
	Name       string      `yaml:"name"`
	Synonyms   []string    `yaml:"synonyms"`
	SubRegions []SubRegion `yaml:"sub_regions"`
}

type Campaign struct {
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

// Match reports whether normalized text mentions the campaign.
func (c *Campaign) Match(norm string) bool {
	return c.re != nil && c.re.MatchString(norm)
}

type Product struct {
	SKU      string   `yaml:"sku"`
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Price    float64  `yaml:"price"`
}

// FAQ holds canned answers for informational intents.
type FAQ struct {
	Price        string `yaml:"price"`
	Availability string `yaml:"availability"`
	Shipping     string `yaml:"shipping"`
	Payment      string `yaml:"payment"`
}

// Catalog is the full set of enumerations.
type Catalog struct {
	Business           Business          `yaml:"business"`
	Regions            []Region          `yaml:"regions"`
	Categories         []string          `yaml:"categories"`
	CategoryExceptions map[string]string `yaml:"category_exceptions"`
	QuantityRanges     []string          `yaml:"quantity_ranges"`
	Campaigns          []Campaign        `yaml:"campaigns"`
	Products           []Product         `yaml:"products"`
	FAQ                FAQ               `yaml:"faq"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// MustDefault is Default for tests and package-level setup.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog from path, falling back to the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(c.Regions) == 0 || len(c.Categories) == 0 {
		return nil, fmt.Errorf("catalog needs at least one region and one category")
	}
	if len(c.Campaigns) != 2 {
		return nil, fmt.Errorf("catalog needs exactly two campaigns, got %d", len(c.Campaigns))
	}
	for i := range c.Campaigns {
		re, err := regexp.Compile(c.Campaigns[i].Pattern)
		if err != nil {
			return nil, fmt.Errorf("campaign %s pattern: %w", c.Campaigns[i].Code, err)
		}
		c.Campaigns[i].re = re
	}
	return &c, nil
}

// Region returns the region with the given display name.
func (c *Catalog) Region(name string) (*Region, bool) {
	for i := range c.Regions {
		if c.Regions[i].Name == name {
			return &c.Regions[i], true
		}
	}
	return nil, false
}

// HasSubRegions reports whether the named region is split into zones.
func (c *Catalog) HasSubRegions(region string) bool {
	r, ok := c.Region(region)
	return ok && len(r.SubRegions) > 0
}

// Campaign returns a campaign by code.
func (c *Catalog) Campaign(code string) (*Campaign, bool) {
	for i := range c.Campaigns {
		if c.Campaigns[i].Code == code {
			return &c.Campaigns[i], true
		}
	}
	return nil, false
}

// ResolveSelection maps an interactive reply id to the slot and value it selects. region is
// the already chosen region, used to scope sub-region codes.
func (c *Catalog) ResolveSelection(id, region string) (models.SlotKind, string, bool) {
	id = strings.TrimSpace(strings.ToLower(id))
	switch {
	case strings.HasPrefix(id, PrefixSubRegion):
		r, ok := c.Region(region)
		if !ok {
			return "", "", false
		}
		code := strings.TrimPrefix(id, PrefixSubRegion)
		for _, sr := range r.SubRegions {
			if sr.Code == code {
				return models.SlotSubRegion, sr.Name, true
			}
		}
	case strings.HasPrefix(id, PrefixRegion):
		if i, ok := index(id, PrefixRegion, len(c.Regions)); ok {
			return models.SlotRegion, c.Regions[i].Name, true
		}
	case strings.HasPrefix(id, PrefixCategory):
		if i, ok := index(id, PrefixCategory, len(c.Categories)); ok {
			return models.SlotCategory, c.Categories[i], true
		}
	case strings.HasPrefix(id, PrefixQuantity):
		if i, ok := index(id, PrefixQuantity, len(c.QuantityRanges)); ok {
			return models.SlotQuantity, c.QuantityRanges[i], true
		}
	case strings.HasPrefix(id, PrefixCampaign):
		if cp, ok := c.Campaign(strings.TrimPrefix(id, PrefixCampaign)); ok {
			return models.SlotCampaign, cp.Name, true
		}
	}
	return "", "", false
}

func index(id, prefix string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

// Options returns the interactive options offered for a slot.
func (c *Catalog) Options(kind models.SlotKind, region string) []models.MenuOption {
	var opts []models.MenuOption
	switch kind {
	case models.SlotRegion:
		for i, r := range c.Regions {
			opts = append(opts, models.MenuOption{ID: fmt.Sprintf("%s%d", PrefixRegion, i), Title: r.Name})
		}
	case models.SlotSubRegion:
		if r, ok := c.Region(region); ok {
			for _, sr := range r.SubRegions {
				opts = append(opts, models.MenuOption{ID: PrefixSubRegion + sr.Code, Title: sr.Name})
			}
		}
	case models.SlotCategory:
		for i, cat := range c.Categories {
			opts = append(opts, models.MenuOption{ID: fmt.Sprintf("%s%d", PrefixCategory, i), Title: cat})
		}
	case models.SlotQuantity:
		for i, q := range c.QuantityRanges {
			opts = append(opts, models.MenuOption{ID: fmt.Sprintf("%s%d", PrefixQuantity, i), Title: q + " ha"})
		}
	case models.SlotCampaign:
		for _, cp := range c.Campaigns {
			opts = append(opts, models.MenuOption{ID: PrefixCampaign + cp.Code, Title: cp.Name})
		}
	}
	return opts
}
