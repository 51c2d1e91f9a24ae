package edge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/tindahan/internal/capture"
	"github.com/zombor/tindahan/internal/interpret"
)

// ErrCaptureUnavailable is returned when no model is configured for a capture path
var ErrCaptureUnavailable = errors.New("capture model not configured")

// ErrStorage marks failures of the local store, as opposed to bad input
var ErrStorage = errors.New("storage failure")

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Notifier is told when a new transaction is waiting in the outbox
type Notifier interface {
	Notify(id string)
}

// Station identifies the store and device stamped on every transaction
type Station struct {
	StoreID  string
	DeviceID string
	// Locale is used for speech when a request names none
	Locale string
}

// Capture groups the models that turn raw captures into text. Nil Scanner or
// Transcriber disables that path; a nil BrandDetector never finds brands.
type Capture struct {
	Scanner       capture.Scanner
	Transcriber   capture.Transcriber
	BrandDetector capture.BrandDetector
}

// Service records sales captured on the edge device
type Service struct {
	engine     *interpret.Engine
	db         DB
	archive    Archive
	capture    Capture
	notifier   Notifier
	station    Station
	timeSource TimeSource
}

// NewService creates a new Service using the wall clock
func NewService(engine *interpret.Engine, db DB, archive Archive, c Capture, notifier Notifier, station Station) *Service {
	return NewServiceWithDeps(engine, db, archive, c, notifier, station, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with a custom clock for testing
func NewServiceWithDeps(engine *interpret.Engine, db DB, archive Archive, c Capture, notifier Notifier, station Station, timeSrc TimeSource) *Service {
	if c.BrandDetector == nil {
		c.BrandDetector = capture.NoBrands{}
	}
	return &Service{
		engine:     engine,
		db:         db,
		archive:    archive,
		capture:    c,
		notifier:   notifier,
		station:    station,
		timeSource: timeSrc,
	}
}

// ProcessTranscript interprets a spoken-order transcript
func (s *Service) ProcessTranscript(text, locale string) (*interpret.TransactionOutput, error) {
	start := s.timeSource.Now()
	items := s.engine.Items(interpret.Input{Text: text, Source: interpret.DetectionSTT, Locale: s.locale(locale)})
	return s.record(text, items, start, nil)
}

// ProcessAudio archives a recording, transcribes it and interprets the transcript
func (s *Service) ProcessAudio(ctx context.Context, filename string, data []byte, contentType, locale string) (*interpret.TransactionOutput, error) {
	if s.capture.Transcriber == nil {
		return nil, fmt.Errorf("transcribing audio: %w", ErrCaptureUnavailable)
	}
	start := s.timeSource.Now()
	locale = s.locale(locale)

	path, err := s.archive.Save(start, captureName(start, filename, "audio"), data)
	if err != nil {
		return nil, fmt.Errorf("archiving audio: %w: %w", ErrStorage, err)
	}

	text, err := s.capture.Transcriber.Transcribe(ctx, data, contentType, locale)
	if err != nil {
		slog.Error("Failed to transcribe audio",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.discard(path)
		return nil, fmt.Errorf("transcribing audio: %w", err)
	}
	slog.Debug("Transcribed audio", "archive", path, "text", text)

	items := s.engine.Items(interpret.Input{Text: text, Source: interpret.DetectionSTT, Locale: locale})
	return s.record(text, items, start, &CaptureRef{Path: path, ContentType: contentType})
}

// ProcessReceiptText interprets receipt text that was already OCR'd
func (s *Service) ProcessReceiptText(text string) (*interpret.TransactionOutput, error) {
	start := s.timeSource.Now()
	items := s.engine.Items(interpret.Input{Text: text, Source: interpret.DetectionOCR})
	return s.record(text, items, start, nil)
}

// ProcessReceiptImage archives a receipt photo or PDF, reads it and interprets the lines
func (s *Service) ProcessReceiptImage(ctx context.Context, filename string, data []byte, contentType string) (*interpret.TransactionOutput, error) {
	if s.capture.Scanner == nil {
		return nil, fmt.Errorf("scanning receipt: %w", ErrCaptureUnavailable)
	}
	start := s.timeSource.Now()

	path, err := s.archive.Save(start, captureName(start, filename, "receipt"), data)
	if err != nil {
		return nil, fmt.Errorf("archiving receipt: %w: %w", ErrStorage, err)
	}

	brands, err := s.capture.BrandDetector.DetectBrands(ctx, data, contentType)
	if err != nil {
		// brand detection only enriches items, the scan can go on without it
		slog.Warn("Brand detection failed", "filename", filename, "error", err)
		brands = nil
	}

	text, err := s.capture.Scanner.ScanText(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.discard(path)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	items := s.engine.Items(interpret.Input{Text: text, Source: interpret.DetectionOCR})
	return s.record(text, applyBrands(items, brands), start, &CaptureRef{Path: path, ContentType: contentType})
}

// GetTransaction retrieves a recorded transaction by ID
func (s *Service) GetTransaction(id string) (*interpret.TransactionOutput, error) {
	out, err := s.db.GetTransaction(id)
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return out, nil
}

// GetTransactionCapture returns the archived audio or receipt a transaction was
// read from, with the content type it was uploaded as
func (s *Service) GetTransactionCapture(id string) ([]byte, string, error) {
	ref, err := s.db.GetCapture(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting capture: %w", err)
	}
	data, err := s.archive.Get(ref.Path)
	if err != nil {
		return nil, "", fmt.Errorf("reading capture %s: %w", ref.Path, err)
	}
	return data, ref.ContentType, nil
}

// ListTransactions returns all recorded transactions
func (s *Service) ListTransactions() ([]*interpret.TransactionOutput, error) {
	outputs, err := s.db.ListTransactions()
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return outputs, nil
}

// PendingDeliveries returns the IDs not yet accepted by the hub
func (s *Service) PendingDeliveries() ([]string, error) {
	ids, err := s.db.ListOutbox()
	if err != nil {
		return nil, fmt.Errorf("listing outbox: %w", err)
	}
	return ids, nil
}

// KnowledgeVersion reports the version of the loaded tables
func (s *Service) KnowledgeVersion() string {
	return s.engine.Knowledge().Version()
}

func (s *Service) locale(requested string) string {
	if requested == "" {
		return s.station.Locale
	}
	return requested
}

// record assembles the output and, when it has items, stores and queues it
// along with the capture it was read from
func (s *Service) record(text string, items []interpret.TransactionItem, start time.Time, ref *CaptureRef) (*interpret.TransactionOutput, error) {
	out := s.engine.Assemble(items, interpret.Meta{
		StoreID:        s.station.StoreID,
		DeviceID:       s.station.DeviceID,
		ProcessingTime: s.timeSource.Now().Sub(start),
	})

	if len(out.Items) == 0 {
		slog.Info("No products recognized, transaction not recorded", "transaction_id", out.TransactionID)
		slog.Debug("Unrecognized text", "text", text)
		if ref != nil {
			s.discard(ref.Path)
		}
		return &out, nil
	}

	if err := s.db.RecordTransaction(&out, ref, s.timeSource.Now()); err != nil {
		return nil, fmt.Errorf("saving transaction: %w: %w", ErrStorage, err)
	}
	slog.Info("Recorded transaction",
		"transaction_id", out.TransactionID,
		"items", len(out.Items),
		"total", out.Totals[interpret.TotalAmount],
	)

	if s.notifier != nil {
		s.notifier.Notify(out.TransactionID)
	}
	return &out, nil
}

// discard removes an archived capture whose processing failed
func (s *Service) discard(path string) {
	if err := s.archive.Delete(path); err != nil {
		slog.Warn("Failed to delete capture", "path", path, "error", err)
	}
}

// applyBrands marks receipt lines whose name mentions a detected brand as branded
func applyBrands(items []interpret.TransactionItem, brands []capture.Brand) []interpret.TransactionItem {
	if len(brands) == 0 {
		return items
	}
	for i := range items {
		if !items[i].IsUnbranded {
			continue
		}
		name := strings.ToLower(items[i].ProductName)
		for _, b := range brands {
			if b.Name == "" || !strings.Contains(name, strings.ToLower(b.Name)) {
				continue
			}
			brand := b.Name
			confidence := b.Confidence
			items[i].BrandName = &brand
			items[i].BrandConfidence = &confidence
			items[i].IsUnbranded = false
			break
		}
	}
	return items
}
