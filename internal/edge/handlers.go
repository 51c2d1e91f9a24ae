package edge

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/tindahan/internal/interpret"
)

// maxUploadSize covers high-resolution phone photos and a few minutes of audio
const maxUploadSize = int64(50 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// corsError writes a plain-text error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes {"error": message}
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeOutput answers 201 when the transaction was recorded and 200 when nothing was recognized
func writeOutput(w http.ResponseWriter, out *interpret.TransactionOutput) {
	code := http.StatusCreated
	if len(out.Items) == 0 {
		code = http.StatusOK
	}
	writeJSON(w, code, out)
}

// processError maps service errors onto status codes
func processError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrCaptureUnavailable) {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if errors.Is(err, ErrStorage) {
		slog.Error("Error storing transaction", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	jsonError(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":           "ok",
		"edgeVersion":      s.version,
		"knowledgeVersion": s.service.KnowledgeVersion(),
	})
}

// handleTranscript interprets a transcript produced by an on-device recognizer
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string `json:"text"`
		Locale string `json:"locale"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}

	out, err := s.service.ProcessTranscript(req.Text, req.Locale)
	if err != nil {
		slog.Error("Error processing transcript", "error", err)
		processError(w, err)
		return
	}
	writeOutput(w, out)
}

// handleReceiptText interprets receipt text that the client already OCR'd
func (s *Server) handleReceiptText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}

	out, err := s.service.ProcessReceiptText(req.Text)
	if err != nil {
		slog.Error("Error processing receipt text", "error", err)
		processError(w, err)
		return
	}
	writeOutput(w, out)
}

// handleAudio accepts a recorded order as multipart field "file", with an optional "locale" field
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	upload, ok := readUpload(w, r)
	if !ok {
		return
	}

	out, err := s.service.ProcessAudio(r.Context(), upload.filename, upload.data, upload.contentType, r.FormValue("locale"))
	if err != nil {
		slog.Error("Error processing audio", "filename", upload.filename, "error", err)
		processError(w, err)
		return
	}
	writeOutput(w, out)
}

// handleReceiptImage accepts a receipt photo or PDF as multipart field "file"
func (s *Server) handleReceiptImage(w http.ResponseWriter, r *http.Request) {
	upload, ok := readUpload(w, r)
	if !ok {
		return
	}

	out, err := s.service.ProcessReceiptImage(r.Context(), upload.filename, upload.data, upload.contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", upload.filename, "error", err)
		processError(w, err)
		return
	}
	writeOutput(w, out)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	outputs, err := s.service.ListTransactions()
	if err != nil {
		slog.Error("Error listing transactions", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, outputs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	out, err := s.service.GetTransaction(id)
	if errors.Is(err, ErrNotFound) {
		corsError(w, "Transaction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting transaction", "id", id, "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetCapture serves the archived audio or receipt behind a transaction
func (s *Server) handleGetCapture(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, contentType, err := s.service.GetTransactionCapture(id)
	if errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		corsError(w, "Capture not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting capture", "id", id, "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleOutbox lists the transactions the hub has not accepted yet
func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	ids, err := s.service.PendingDeliveries()
	if err != nil {
		slog.Error("Error listing outbox", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending": ids,
		"count":   len(ids),
	})
}

type upload struct {
	filename    string
	contentType string
	data        []byte
}

// readUpload reads multipart field "file" and writes the error response itself when it fails
func readUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "File is too large. Maximum size is 50MB.", http.StatusRequestEntityTooLarge)
			return upload{}, false
		}
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return upload{}, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file provided", http.StatusBadRequest)
		return upload{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return upload{}, false
	}
	if len(data) == 0 {
		jsonError(w, "Uploaded file is empty", http.StatusBadRequest)
		return upload{}, false
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromExt(header.Filename)
	}

	return upload{filename: header.Filename, contentType: contentType, data: data}, true
}

// contentTypeFromExt guesses the MIME type of captures sent without one.
// HEIC/HEIF stay as declared so the OCR path can convert them.
func contentTypeFromExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
