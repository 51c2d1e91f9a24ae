package interpret

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseReceipt reads OCR receipt text line by line. A line is
// "<quantity> <name...> <total>"; blank lines, lines mentioning TOTAL and
// lines whose quantity or total do not parse are skipped one at a time.
func ParseReceipt(text string, pieceUnit string, now time.Time) []TransactionItem {
	items := make([]TransactionItem, 0)
	for _, line := range strings.Split(text, "\n") {
		item, ok := parseReceiptLine(line, pieceUnit, now)
		if ok {
			items = append(items, item)
		}
	}
	return items
}

func parseReceiptLine(line string, pieceUnit string, now time.Time) (TransactionItem, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.Contains(strings.ToUpper(line), "TOTAL") {
		return TransactionItem{}, false
	}

	parts := strings.Fields(line)
	if len(parts) < 2 {
		return TransactionItem{}, false
	}

	quantity, err := strconv.Atoi(parts[0])
	if err != nil || quantity < 1 {
		return TransactionItem{}, false
	}
	total, ok := parseAmount(parts[len(parts)-1])
	if !ok {
		return TransactionItem{}, false
	}

	name := strings.Join(parts[1:len(parts)-1], " ")
	return TransactionItem{
		ProductName:     name,
		GenericName:     strPtr(name),
		SKU:             receiptSKU(now),
		Quantity:        quantity,
		Unit:            pieceUnit,
		UnitPrice:       total.Div(decimal.NewFromInt(int64(quantity))).InexactFloat64(),
		TotalPrice:      total.InexactFloat64(),
		Category:        "unknown",
		IsUnbranded:     true,
		IsBulk:          false,
		DetectionMethod: DetectionOCR,
		Confidence:      ConfidenceOCR,
	}, true
}

// parseAmount reads a non-negative price, tolerating a peso sign and
// thousands separators ("₱1,250.00").
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimPrefix(s, "₱")
	s = strings.TrimPrefix(strings.ToUpper(s), "PHP")
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}
