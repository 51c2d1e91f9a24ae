package interpret

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/zombor/tindahan/internal/knowledge"
)

var digitRun = regexp.MustCompile(`\d+`)

// Extraction is the quantity and unit read from a segment and the text left over
type Extraction struct {
	Quantity int
	Unit     string
	Residual string
}

// ExtractQuantityUnit reads the quantity and unit of a segment.
// Number words are tried in table order, then the first run of digits; the
// quantity defaults to 1. Units are tried in table order and default to
// pieceUnit. Every matched token is cut from the text so later stages do not
// see it again.
func ExtractQuantityUnit(segment string, loc knowledge.Locale, pieceUnit string) Extraction {
	text := segment
	quantity := 0

	for _, nw := range loc.NumberWords {
		if strings.Contains(text, nw.Word) {
			quantity = nw.Value
			text = strings.ReplaceAll(text, nw.Word, " ")
			break
		}
	}

	if quantity == 0 {
		if span := digitRun.FindStringIndex(text); span != nil {
			if n, err := strconv.Atoi(text[span[0]:span[1]]); err == nil && n > 0 {
				quantity = n
			}
			text = text[:span[0]] + " " + text[span[1]:]
		}
	}

	if quantity == 0 {
		quantity = 1
	}

	unit := pieceUnit
	for _, u := range loc.Units {
		if strings.Contains(text, u.Name) {
			unit = u.Code
			text = strings.ReplaceAll(text, u.Name, " ")
			break
		}
	}

	return Extraction{
		Quantity: quantity,
		Unit:     unit,
		Residual: strings.Join(strings.Fields(text), " "),
	}
}
