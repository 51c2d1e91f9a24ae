package interpret

import (
	"slices"
	"strings"

	"github.com/zombor/tindahan/internal/knowledge"
)

// Tier names the knowledge base table that resolved a product
type Tier int

const (
	TierGeneric Tier = iota + 1
	TierBranded
	TierFallback
)

// Product is a resolved product identity. Empty strings mean "not known".
type Product struct {
	Name            string
	Brand           string
	GenericName     string
	LocalName       string
	Category        string
	Unbranded       bool
	SuggestedBrands []string
	Tier            Tier
}

// Resolve identifies the product named in text. The generic table is tried
// first, then branded variants, then the keyword fallbacks; the first hit
// wins. ok is false when nothing matches.
func Resolve(text string, kb *knowledge.Base) (product Product, ok bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return Product{}, false
	}

	for _, g := range kb.Generics() {
		if strings.Contains(text, g.Term) {
			return Product{
				Name:            g.GenericName,
				GenericName:     g.GenericName,
				LocalName:       g.Term,
				Category:        g.Category,
				Unbranded:       true,
				SuggestedBrands: g.SuggestedBrands,
				Tier:            TierGeneric,
			}, true
		}
	}

	for _, p := range kb.Products() {
		if slices.ContainsFunc(p.Variants, func(v string) bool { return strings.Contains(text, v) }) {
			return Product{
				Name:     p.Name,
				Brand:    p.Brand,
				Category: p.Category,
				Tier:     TierBranded,
			}, true
		}
	}

	for _, f := range kb.Fallbacks() {
		if slices.ContainsFunc(f.Keywords, func(k string) bool { return strings.Contains(text, k) }) {
			return Product{
				Name:      f.Name,
				Brand:     f.Brand,
				Category:  f.Category,
				Unbranded: f.Brand == "",
				Tier:      TierFallback,
			}, true
		}
	}

	return Product{}, false
}
