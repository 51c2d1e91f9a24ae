package capture

import "context"

// Scanner reads the text of a receipt capture
type Scanner interface {
	// ScanText returns the receipt as "<qty> <name> <total>" lines
	ScanText(ctx context.Context, imageData []byte, contentType string) (string, error)
	// Close releases the scanner's resources
	Close() error
}

// Transcriber turns recorded speech into text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType, locale string) (string, error)
}

// Brand is a brand logo found in a capture
type Brand struct {
	Name       string
	Confidence float64
}

// BrandDetector finds brand logos in a receipt or shelf photo
type BrandDetector interface {
	DetectBrands(ctx context.Context, imageData []byte, contentType string) ([]Brand, error)
}

// NoBrands is the BrandDetector used until logo templates exist; it never finds anything
type NoBrands struct{}

func (NoBrands) DetectBrands(ctx context.Context, imageData []byte, contentType string) ([]Brand, error) {
	return nil, nil
}

// receiptTextPrompt is shared by every OCR model
const receiptTextPrompt = `You are reading a receipt from a small Philippine retail store (sari-sari store). Transcribe every purchased line.

Write one purchased item per line in exactly this form:
<quantity> <product name> <line total>

Rules:
- quantity is a whole number; use 1 when the receipt does not show one
- line total is the amount paid for that line, digits and a decimal point only, no currency sign
- keep the product name as printed
- copy the TOTAL line last, as printed
- do not add any other text, headings or markdown`

// transcriptPrompt asks for a verbatim transcript of a spoken order
const transcriptPrompt = `Transcribe this recording of a customer ordering at a small store. Write exactly what is said, in the language spoken (often Filipino/Tagalog mixed with English). Write numbers the way they are spoken. Return only the transcript text.`
