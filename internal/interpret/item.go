package interpret

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/tindahan/internal/knowledge"
)

// EstimatePrice returns the base unit price of category. It stands in for a
// point-of-sale lookup and never fails: unlisted categories get the knowledge
// base's fallback price. The unit is accepted for per-unit pricing but the
// base table is priced per category only.
func EstimatePrice(kb *knowledge.Base, category, unit string) float64 {
	if price, ok := kb.Price(category); ok {
		return price
	}
	return kb.FallbackPrice()
}

// BuildItem combines an extraction, a resolved product and its unit price
// into a transcript item. now seeds the SKU suffix.
func BuildItem(ex Extraction, p Product, unitPrice float64, kb *knowledge.Base, now time.Time) TransactionItem {
	item := TransactionItem{
		BrandName:       strPtr(p.Brand),
		ProductName:     p.Name,
		GenericName:     strPtr(p.GenericName),
		LocalName:       strPtr(p.LocalName),
		SKU:             makeSKU(p, now),
		Quantity:        ex.Quantity,
		Unit:            ex.Unit,
		UnitPrice:       unitPrice,
		TotalPrice:      lineTotal(unitPrice, ex.Quantity),
		Category:        p.Category,
		IsUnbranded:     p.Unbranded,
		IsBulk:          isBulk(ex.Quantity, ex.Unit, kb),
		DetectionMethod: DetectionSTT,
		Confidence:      ConfidenceSTT,
	}
	if len(p.SuggestedBrands) > 0 {
		item.SuggestedBrands = append([]string(nil), p.SuggestedBrands...)
	}
	return item
}

func isBulk(quantity int, unit string, kb *knowledge.Base) bool {
	return quantity > 10 && kb.IsBulkUnit(unit)
}

func lineTotal(unitPrice float64, quantity int) float64 {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity))).InexactFloat64()
}

// makeSKU builds BRA-NAME-NNNNNN for branded products and UNB-NAME-NNNNNN
// otherwise. The suffix is the Unix time modulo one million, so two SKUs for
// the same product in the same second collide.
func makeSKU(p Product, now time.Time) string {
	suffix := now.Unix() % 1000000
	if p.Brand != "" {
		return fmt.Sprintf("%s-%s-%d", codePrefix(p.Brand, 3), codePrefix(p.Name, 4), suffix)
	}
	return fmt.Sprintf("UNB-%s-%d", codePrefix(p.Name, 4), suffix)
}

func receiptSKU(now time.Time) string {
	return fmt.Sprintf("OCR-%d", now.Unix()%1000000)
}

func codePrefix(s string, n int) string {
	r := []rune(strings.ToUpper(s))
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
