package interpret

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/tindahan/internal/knowledge"
)

// Aggregate computes the totals and insights of an item list. An empty list
// yields zero totals and a zero percentage split.
func Aggregate(items []TransactionItem, kb *knowledge.Base) (map[string]float64, Insights) {
	var (
		amount, branded, unbranded decimal.Decimal
		quantity                   int
		brandedN, unbrandedN       int
	)
	for _, item := range items {
		price := decimal.NewFromFloat(item.TotalPrice)
		amount = amount.Add(price)
		quantity += item.Quantity
		if item.IsUnbranded {
			unbranded = unbranded.Add(price)
			unbrandedN++
		} else {
			branded = branded.Add(price)
			brandedN++
		}
	}

	totals := map[string]float64{
		TotalAmount:     amount.InexactFloat64(),
		TotalItems:      float64(quantity),
		BrandedAmount:   branded.InexactFloat64(),
		UnbrandedAmount: unbranded.InexactFloat64(),
		BrandedCount:    float64(brandedN),
		UnbrandedCount:  float64(unbrandedN),
	}

	var split Split
	if n := len(items); n > 0 {
		split.BrandedPercentage = float64(brandedN) / float64(n) * 100
		split.UnbrandedPercentage = float64(unbrandedN) / float64(n) * 100
	}

	return totals, Insights{
		BrandedVsUnbranded: split,
		TopCategories:      RankCategories(items),
		Suggestions:        suggest(items, kb.CrossSell()),
		PriceAnomalies:     priceAnomalies(items, kb),
	}
}

// RankCategories groups items by category and orders the groups by value,
// highest first. Equal values keep the order in which categories first appear.
func RankCategories(items []TransactionItem) []CategoryStat {
	type acc struct {
		count int
		value decimal.Decimal
	}
	var order []string
	groups := make(map[string]*acc)
	for _, item := range items {
		g, ok := groups[item.Category]
		if !ok {
			g = &acc{}
			groups[item.Category] = g
			order = append(order, item.Category)
		}
		g.count += item.Quantity
		g.value = g.value.Add(decimal.NewFromFloat(item.TotalPrice))
	}

	stats := make([]CategoryStat, 0, len(order))
	for _, c := range order {
		stats = append(stats, CategoryStat{
			Category: c,
			Count:    groups[c].count,
			Value:    groups[c].value.InexactFloat64(),
		})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Value > stats[j].Value
	})
	return stats
}

func suggest(items []TransactionItem, rules []knowledge.CrossSellRule) []string {
	has := func(term string) bool {
		for _, item := range items {
			if strings.Contains(strings.ToLower(item.ProductName), term) {
				return true
			}
		}
		return false
	}

	suggestions := make([]string, 0)
	for _, r := range rules {
		if has(r.When) && (r.Unless == "" || !has(r.Unless)) {
			suggestions = append(suggestions, r.Suggestion)
		}
	}
	return suggestions
}

func priceAnomalies(items []TransactionItem, kb *knowledge.Base) []string {
	var anomalies []string
	for _, item := range items {
		if item.IsUnbranded {
			continue
		}
		p, ok := kb.Product(item.ProductName)
		if !ok || p.InRange(item.UnitPrice) {
			continue
		}
		anomalies = append(anomalies, fmt.Sprintf("%s priced at %.2f, expected %.2f-%.2f",
			item.ProductName, item.UnitPrice, p.PriceRange[0], p.PriceRange[1]))
	}
	return anomalies
}
