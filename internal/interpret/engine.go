package interpret

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/tindahan/internal/knowledge"
)

// IDGenerator generates transaction IDs
type IDGenerator interface {
	Generate(now time.Time) string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator keeps the legacy TXN-<unix seconds> prefix, then the
// zero-padded nanoseconds so IDs sort in capture order within a second, then a
// random suffix so two captures in the same nanosecond do not collide.
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate(now time.Time) string {
	return fmt.Sprintf("TXN-%d-%09d-%s", now.Unix(), now.Nanosecond(), uuid.NewString()[:8])
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Engine turns recognized text into transaction records. It holds no mutable
// state, so one Engine can serve any number of goroutines.
type Engine struct {
	kb          *knowledge.Base
	version     string
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewEngine creates an Engine with the default ID generator and clock
func NewEngine(kb *knowledge.Base, version string) *Engine {
	return NewEngineWithDeps(kb, version, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewEngineWithDeps creates an Engine with custom dependencies for testing
func NewEngineWithDeps(kb *knowledge.Base, version string, idGen IDGenerator, timeSrc TimeSource) *Engine {
	if version == "" {
		version = DefaultEdgeVersion
	}
	return &Engine{
		kb:          kb,
		version:     version,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Items interprets the input into line items. Segments that name no known
// product are dropped, so the result may be empty.
func (e *Engine) Items(in Input) []TransactionItem {
	now := e.timeSource.Now()
	if in.Source == DetectionOCR {
		return ParseReceipt(in.Text, e.kb.PieceUnit(), now)
	}

	loc := e.kb.Locale(in.Locale)
	items := make([]TransactionItem, 0)
	for _, segment := range Segment(strings.ToLower(in.Text), loc.Conjunctions) {
		ex := ExtractQuantityUnit(segment, loc, e.kb.PieceUnit())
		product, ok := Resolve(ex.Residual, e.kb)
		if !ok {
			continue
		}
		price := EstimatePrice(e.kb, product.Category, ex.Unit)
		items = append(items, BuildItem(ex, product, price, e.kb, now))
	}
	return items
}

// Interpret runs the full pipeline and assembles the output record
func (e *Engine) Interpret(in Input, meta Meta) TransactionOutput {
	return e.Assemble(e.Items(in), meta)
}

// Assemble packages items with their totals, insights and identifiers
func (e *Engine) Assemble(items []TransactionItem, meta Meta) TransactionOutput {
	if items == nil {
		items = make([]TransactionItem, 0)
	}
	now := e.timeSource.Now()
	totals, insights := Aggregate(items, e.kb)
	return TransactionOutput{
		StoreID:        meta.StoreID,
		DeviceID:       meta.DeviceID,
		Timestamp:      now.Format(time.RFC3339),
		TransactionID:  e.idGenerator.Generate(now),
		Items:          items,
		Totals:         totals,
		Insights:       insights,
		PaymentMethod:  DefaultPaymentMethod,
		ProcessingTime: meta.ProcessingTime.Seconds(),
		EdgeVersion:    e.version,
	}
}

// Knowledge exposes the engine's read-only knowledge base
func (e *Engine) Knowledge() *knowledge.Base {
	return e.kb
}
