package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/tindahan/internal/capture"
	"github.com/zombor/tindahan/internal/edge"
	"github.com/zombor/tindahan/internal/hub"
	"github.com/zombor/tindahan/internal/interpret"
	"github.com/zombor/tindahan/internal/knowledge"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("tindahan-edge")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "tindahan.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./captures", "Directory for archived audio and receipt captures")
		storeID       = fs.StringLong("store-id", "SM-001", "Store identifier stamped on transactions")
		deviceID      = fs.StringLong("device-id", "RPI-001", "Edge device identifier stamped on transactions")
		hubURL        = fs.StringLong("hub-url", "http://localhost:4000", "Central hub base URL (empty disables delivery)")
		hubInterval   = fs.DurationLong("hub-interval", time.Second, "Retry interval for undelivered transactions")
		knowledgePath = fs.StringLong("knowledge", "", "Knowledge base YAML file (defaults to the built-in tables)")
		locale        = fs.StringLong("locale", "fil", "Default speech locale")
		scannerType   = fs.StringLong("scanner", "gemini", "Capture model: 'gemini', 'ollama' or 'none'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama vision model name (e.g., llava, qwen2-vl)")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		transcript    = fs.StringLong("transcript", "", "Interpret this transcript, print the transaction and exit")
		receiptText   = fs.StringLong("receipt-text", "", "Interpret the receipt text in this file, print the transaction and exit")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("TINDAHAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	kb, err := loadKnowledge(*knowledgePath)
	if err != nil {
		slog.Error("Failed to load knowledge base", "error", err)
		os.Exit(1)
	}
	engine := interpret.NewEngine(kb, version)
	station := edge.Station{StoreID: *storeID, DeviceID: *deviceID, Locale: *locale}

	// One-shot modes print the transaction and never touch the database
	switch {
	case *transcript != "":
		printTransaction(engine, interpret.Input{Text: *transcript, Source: interpret.DetectionSTT, Locale: *locale}, station)
		return
	case *receiptText != "":
		data, err := os.ReadFile(*receiptText)
		if err != nil {
			slog.Error("Failed to read receipt text", "path", *receiptText, "error", err)
			os.Exit(1)
		}
		printTransaction(engine, interpret.Input{Text: string(data), Source: interpret.DetectionOCR}, station)
		return
	}

	slog.Info("Initializing database...")
	db, err := edge.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Initializing capture archive...")
	archive, err := edge.NewLocalArchive(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize capture archive", "error", err)
		os.Exit(1)
	}

	captures, closeCapture, err := newCapture(*scannerType, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel)
	if err != nil {
		slog.Error("Failed to initialize capture model", "type", *scannerType, "error", err)
		os.Exit(1)
	}
	defer closeCapture()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier edge.Notifier
	if *hubURL != "" {
		forwarder := hub.NewForwarder(db, hub.NewClient(*hubURL), *hubInterval)
		forwarder.Start(ctx)
		defer forwarder.Stop()
		notifier = forwarder
		slog.Info("Hub delivery enabled", "url", *hubURL, "interval", *hubInterval)
	}

	service := edge.NewService(engine, db, archive, captures, notifier, station)

	basicAuth := edge.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := edge.NewServer(service, basicAuth, version)

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Edge server starting",
		"address", fmt.Sprintf("http://localhost%s", addr),
		"store_id", *storeID,
		"device_id", *deviceID,
		"knowledge_version", kb.Version(),
		"version", version,
	)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	if err := server.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutting down...")
}

func loadKnowledge(path string) (*knowledge.Base, error) {
	if path == "" {
		return knowledge.Default()
	}
	slog.Info("Loading knowledge base", "path", path)
	return knowledge.Load(path)
}

// newCapture builds the capture models for scannerType. Gemini serves both
// receipts and audio; Ollama reads receipts only.
func newCapture(scannerType, geminiKey, geminiModel, ollamaURL, ollamaModel string) (edge.Capture, func(), error) {
	noop := func() {}
	switch scannerType {
	case "gemini":
		apiKey := geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return edge.Capture{}, noop, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini capture...", "model", geminiModel)
		gemini, err := capture.NewGemini(apiKey, geminiModel)
		if err != nil {
			return edge.Capture{}, noop, err
		}
		return edge.Capture{Scanner: gemini, Transcriber: gemini}, func() { gemini.Close() }, nil
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", ollamaURL, "model", ollamaModel)
		ollama, err := capture.NewOllama(ollamaURL, ollamaModel)
		if err != nil {
			return edge.Capture{}, noop, err
		}
		slog.Warn("Ollama has no speech model, audio uploads are disabled")
		return edge.Capture{Scanner: ollama}, func() { ollama.Close() }, nil
	case "none":
		slog.Warn("No capture model configured, only text endpoints are available")
		return edge.Capture{}, noop, nil
	default:
		return edge.Capture{}, noop, fmt.Errorf("invalid scanner type %q (valid: gemini, ollama, none)", scannerType)
	}
}

func printTransaction(engine *interpret.Engine, in interpret.Input, station edge.Station) {
	start := time.Now()
	items := engine.Items(in)
	out := engine.Assemble(items, interpret.Meta{
		StoreID:        station.StoreID,
		DeviceID:       station.DeviceID,
		ProcessingTime: time.Since(start),
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		slog.Error("Error encoding transaction", "error", err)
		os.Exit(1)
	}
}
