package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTables []byte

// GenericPattern maps a local term to an unbranded product
type GenericPattern struct {
	Term            string   `yaml:"term"`
	GenericName     string   `yaml:"genericName"`
	Category        string   `yaml:"category"`
	SuggestedBrands []string `yaml:"suggestedBrands"`
}

// BrandedProduct is a known branded product and the strings that refer to it
type BrandedProduct struct {
	Name       string    `yaml:"name"`
	Brand      string    `yaml:"brand"`
	Variants   []string  `yaml:"variants"`
	Category   string    `yaml:"category"`
	PriceRange []float64 `yaml:"priceRange"` // [min, max]
}

// InRange reports whether price lies inside the product's price range.
// Products without a range accept any price.
func (p BrandedProduct) InRange(price float64) bool {
	if len(p.PriceRange) != 2 {
		return true
	}
	return price >= p.PriceRange[0] && price <= p.PriceRange[1]
}

// UnitMapping maps a localized unit name to a canonical unit code
type UnitMapping struct {
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

// NumberWord maps a localized number word to its value
type NumberWord struct {
	Word  string `yaml:"word"`
	Value int    `yaml:"value"`
}

// Locale holds the language-specific vocabulary used to read quantities and units
type Locale struct {
	NumberWords  []NumberWord  `yaml:"numberWords"`
	Units        []UnitMapping `yaml:"units"`
	Conjunctions []string      `yaml:"conjunctions"`
}

// FallbackRule resolves a product from hard keywords when no table matches
type FallbackRule struct {
	Keywords []string `yaml:"keywords"`
	Name     string   `yaml:"name"`
	Brand    string   `yaml:"brand"`
	Category string   `yaml:"category"`
}

// CrossSellRule suggests a complementary product. It fires when some product
// name contains When and no product name contains Unless.
type CrossSellRule struct {
	When       string `yaml:"when"`
	Unless     string `yaml:"unless"`
	Suggestion string `yaml:"suggestion"`
}

// CategoryPrice is the base unit price for a category
type CategoryPrice struct {
	Category string  `yaml:"category"`
	Price    float64 `yaml:"price"`
}

// tables is the on-disk layout of a knowledge base
type tables struct {
	Version       string            `yaml:"version"`
	DefaultLocale string            `yaml:"defaultLocale"`
	PieceUnit     string            `yaml:"pieceUnit"`
	BulkUnits     []string          `yaml:"bulkUnits"`
	FallbackPrice float64           `yaml:"fallbackPrice"`
	Locales       map[string]Locale `yaml:"locales"`
	Generics      []GenericPattern  `yaml:"generics"`
	Products      []BrandedProduct  `yaml:"products"`
	Fallbacks     []FallbackRule    `yaml:"fallbacks"`
	Prices        []CategoryPrice   `yaml:"prices"`
	CrossSell     []CrossSellRule   `yaml:"crossSell"`
}

// Base is a read-only knowledge base. It is built once and shared by every
// interpretation; nothing mutates it after Parse returns, so it is safe for
// concurrent use. Accessors hand out copies.
type Base struct {
	t      tables
	prices map[string]float64
}

// Default returns the knowledge base compiled into the binary
func Default() (*Base, error) {
	return Parse(defaultTables)
}

// Load reads a knowledge base from a YAML file
func Load(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML knowledge base
func Parse(data []byte) (*Base, error) {
	var t tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshaling knowledge tables: %w", err)
	}
	normalize(&t)
	if err := validate(&t); err != nil {
		return nil, fmt.Errorf("validating knowledge tables: %w", err)
	}

	prices := make(map[string]float64, len(t.Prices))
	for _, p := range t.Prices {
		// First entry for a category wins, matching the table order.
		if _, ok := prices[p.Category]; !ok {
			prices[p.Category] = p.Price
		}
	}

	return &Base{t: t, prices: prices}, nil
}

// normalize lower-cases every string that is matched against input text
func normalize(t *tables) {
	t.DefaultLocale = strings.ToLower(strings.TrimSpace(t.DefaultLocale))
	if t.PieceUnit == "" {
		t.PieceUnit = "pc"
	}

	locales := make(map[string]Locale, len(t.Locales))
	for code, loc := range t.Locales {
		for i := range loc.NumberWords {
			loc.NumberWords[i].Word = strings.ToLower(strings.TrimSpace(loc.NumberWords[i].Word))
		}
		for i := range loc.Units {
			loc.Units[i].Name = strings.ToLower(strings.TrimSpace(loc.Units[i].Name))
		}
		for i := range loc.Conjunctions {
			loc.Conjunctions[i] = strings.ToLower(strings.TrimSpace(loc.Conjunctions[i]))
		}
		locales[strings.ToLower(strings.TrimSpace(code))] = loc
	}
	t.Locales = locales

	for i := range t.Generics {
		t.Generics[i].Term = strings.ToLower(strings.TrimSpace(t.Generics[i].Term))
	}
	for i := range t.Products {
		for j := range t.Products[i].Variants {
			t.Products[i].Variants[j] = strings.ToLower(strings.TrimSpace(t.Products[i].Variants[j]))
		}
	}
	for i := range t.Fallbacks {
		for j := range t.Fallbacks[i].Keywords {
			t.Fallbacks[i].Keywords[j] = strings.ToLower(strings.TrimSpace(t.Fallbacks[i].Keywords[j]))
		}
	}
	for i := range t.CrossSell {
		t.CrossSell[i].When = strings.ToLower(strings.TrimSpace(t.CrossSell[i].When))
		t.CrossSell[i].Unless = strings.ToLower(strings.TrimSpace(t.CrossSell[i].Unless))
	}
}

func validate(t *tables) error {
	if len(t.Locales) == 0 {
		return fmt.Errorf("at least one locale is required")
	}
	if _, ok := t.Locales[t.DefaultLocale]; !ok {
		return fmt.Errorf("default locale %q is not defined", t.DefaultLocale)
	}
	if t.FallbackPrice < 0 {
		return fmt.Errorf("fallback price must not be negative")
	}

	for code, loc := range t.Locales {
		for _, nw := range loc.NumberWords {
			if nw.Word == "" {
				return fmt.Errorf("locale %s: empty number word", code)
			}
			if nw.Value < 1 {
				return fmt.Errorf("locale %s: number word %q must be positive", code, nw.Word)
			}
		}
		// matching is first-substring-wins, so a word listed before a longer
		// word containing it would read "sixty" as six
		for i, nw := range loc.NumberWords {
			for _, later := range loc.NumberWords[i+1:] {
				if strings.Contains(later.Word, nw.Word) {
					return fmt.Errorf("locale %s: number word %q must be listed after %q", code, nw.Word, later.Word)
				}
			}
		}
		for _, u := range loc.Units {
			if u.Name == "" || u.Code == "" {
				return fmt.Errorf("locale %s: unit mapping needs a name and a code", code)
			}
		}
		for _, c := range loc.Conjunctions {
			if c == "" {
				return fmt.Errorf("locale %s: empty conjunction", code)
			}
		}
	}

	for _, g := range t.Generics {
		if g.Term == "" || g.GenericName == "" {
			return fmt.Errorf("generic pattern needs a term and a generic name")
		}
	}
	for _, p := range t.Products {
		if p.Name == "" {
			return fmt.Errorf("branded product needs a name")
		}
		if len(p.Variants) == 0 {
			return fmt.Errorf("branded product %s has no variants", p.Name)
		}
		if slices.Contains(p.Variants, "") {
			return fmt.Errorf("branded product %s has an empty variant", p.Name)
		}
		if len(p.PriceRange) != 0 {
			if len(p.PriceRange) != 2 {
				return fmt.Errorf("branded product %s: price range needs two values", p.Name)
			}
			if p.PriceRange[0] < 0 || p.PriceRange[0] > p.PriceRange[1] {
				return fmt.Errorf("branded product %s: invalid price range %v", p.Name, p.PriceRange)
			}
		}
	}
	for _, f := range t.Fallbacks {
		if f.Name == "" || len(f.Keywords) == 0 {
			return fmt.Errorf("fallback rule needs a name and keywords")
		}
	}
	for _, p := range t.Prices {
		if p.Price < 0 {
			return fmt.Errorf("price for category %s must not be negative", p.Category)
		}
	}
	for _, r := range t.CrossSell {
		if r.When == "" || r.Suggestion == "" {
			return fmt.Errorf("cross-sell rule needs a trigger and a suggestion")
		}
	}
	return nil
}

// Version identifies the table revision
func (b *Base) Version() string {
	return b.t.Version
}

// DefaultLocale is the locale used when a request does not declare one
func (b *Base) DefaultLocale() string {
	return b.t.DefaultLocale
}

// Locale returns the vocabulary for code, falling back to the default locale
// for unknown or empty codes.
func (b *Base) Locale(code string) Locale {
	loc, ok := b.t.Locales[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		loc = b.t.Locales[b.t.DefaultLocale]
	}
	return Locale{
		NumberWords:  slices.Clone(loc.NumberWords),
		Units:        slices.Clone(loc.Units),
		Conjunctions: slices.Clone(loc.Conjunctions),
	}
}

// PieceUnit is the canonical unit used when no unit is named
func (b *Base) PieceUnit() string {
	return b.t.PieceUnit
}

// IsBulkUnit reports whether unit is a weight/volume unit that can make an item bulk
func (b *Base) IsBulkUnit(unit string) bool {
	return slices.Contains(b.t.BulkUnits, unit)
}

// Generics returns the generic pattern table in priority order
func (b *Base) Generics() []GenericPattern {
	out := make([]GenericPattern, len(b.t.Generics))
	for i, g := range b.t.Generics {
		g.SuggestedBrands = slices.Clone(g.SuggestedBrands)
		out[i] = g
	}
	return out
}

// Products returns the branded product table in priority order
func (b *Base) Products() []BrandedProduct {
	out := make([]BrandedProduct, len(b.t.Products))
	for i, p := range b.t.Products {
		p.Variants = slices.Clone(p.Variants)
		p.PriceRange = slices.Clone(p.PriceRange)
		out[i] = p
	}
	return out
}

// Product finds a branded product by its canonical name
func (b *Base) Product(name string) (BrandedProduct, bool) {
	for _, p := range b.Products() {
		if p.Name == name {
			return p, true
		}
	}
	return BrandedProduct{}, false
}

// Fallbacks returns the keyword fallback rules in priority order
func (b *Base) Fallbacks() []FallbackRule {
	out := make([]FallbackRule, len(b.t.Fallbacks))
	for i, f := range b.t.Fallbacks {
		f.Keywords = slices.Clone(f.Keywords)
		out[i] = f
	}
	return out
}

// CrossSell returns the cross-sell rules in evaluation order
func (b *Base) CrossSell() []CrossSellRule {
	return slices.Clone(b.t.CrossSell)
}

// Price returns the base unit price for category and whether it was listed
func (b *Base) Price(category string) (float64, bool) {
	p, ok := b.prices[category]
	return p, ok
}

// FallbackPrice is charged for categories missing from the price table
func (b *Base) FallbackPrice() float64 {
	return b.t.FallbackPrice
}
