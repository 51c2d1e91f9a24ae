package interpret

import "time"

// DetectionMethod records which capture path produced an item
type DetectionMethod string

const (
	// DetectionSTT marks items read from a speech transcript
	DetectionSTT DetectionMethod = "stt"
	// DetectionOCR marks items read from receipt text
	DetectionOCR DetectionMethod = "ocr"
)

// Fixed confidences per capture path. They are not derived from match quality.
const (
	ConfidenceSTT = 0.85
	ConfidenceOCR = 0.8
)

// Keys of TransactionOutput.Totals
const (
	TotalAmount     = "totalAmount"
	TotalItems      = "totalItems"
	BrandedAmount   = "brandedAmount"
	UnbrandedAmount = "unbrandedAmount"
	BrandedCount    = "brandedCount"
	UnbrandedCount  = "unbrandedCount"
)

const (
	// DefaultEdgeVersion tags outputs when no build version is supplied
	DefaultEdgeVersion = "v1.0.0"
	// DefaultPaymentMethod is reported until payment detection exists
	DefaultPaymentMethod = "cash"
)

// TransactionItem is one resolved line of a purchase.
// TotalPrice is always UnitPrice * Quantity, and IsBulk is true only for more
// than ten units of a weight or volume unit.
type TransactionItem struct {
	BrandName       *string         `json:"brandName"`
	ProductName     string          `json:"productName"`
	GenericName     *string         `json:"genericName"`
	LocalName       *string         `json:"localName"`
	SKU             string          `json:"sku"`
	Quantity        int             `json:"quantity"`
	Unit            string          `json:"unit"`
	UnitPrice       float64         `json:"unitPrice"`
	TotalPrice      float64         `json:"totalPrice"`
	Category        string          `json:"category"`
	IsUnbranded     bool            `json:"isUnbranded"`
	IsBulk          bool            `json:"isBulk"`
	DetectionMethod DetectionMethod `json:"detectionMethod"`
	Confidence      float64         `json:"confidence"`
	BrandConfidence *float64        `json:"brandConfidence,omitempty"`
	SuggestedBrands []string        `json:"suggestedBrands,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
}

// Split is the share of branded and unbranded items, in percent of item count
type Split struct {
	BrandedPercentage   float64 `json:"brandedPercentage"`
	UnbrandedPercentage float64 `json:"unbrandedPercentage"`
}

// CategoryStat aggregates the items of one category
type CategoryStat struct {
	Category string  `json:"category"`
	Count    int     `json:"count"` // summed quantity
	Value    float64 `json:"value"`
}

// Insights summarizes a transaction
type Insights struct {
	BrandedVsUnbranded Split          `json:"brandedVsUnbranded"`
	TopCategories      []CategoryStat `json:"topCategories"`
	Suggestions        []string       `json:"suggestions"`
	PriceAnomalies     []string       `json:"priceAnomalies,omitempty"`
}

// TransactionOutput is the record produced for one interpreted capture
type TransactionOutput struct {
	StoreID        string             `json:"storeId"`
	DeviceID       string             `json:"deviceId"`
	Timestamp      string             `json:"timestamp"` // ISO 8601
	TransactionID  string             `json:"transactionId"`
	Items          []TransactionItem  `json:"items"`
	Totals         map[string]float64 `json:"totals"`
	Insights       Insights           `json:"insights"`
	PaymentMethod  string             `json:"paymentMethod"`
	ProcessingTime float64            `json:"processingTime"` // seconds
	EdgeVersion    string             `json:"edgeVersion"`
}

// Input is raw recognized text and where it came from
type Input struct {
	Text   string
	Source DetectionMethod
	// Locale selects number and unit words; empty uses the knowledge base default
	Locale string
}

// Meta carries the caller-owned fields of an output
type Meta struct {
	StoreID        string
	DeviceID       string
	ProcessingTime time.Duration
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
