package uploads

import (
	"context"
	"errors"
	"io"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/gabrielmiguelok/applyform/pkg/logging"
)

// ErrUnknownTarget is returned by a Sink when no session matches the target.
var ErrUnknownTarget = errors.New("unknown upload target")

// Sink receives the entries read from one request. target is the value of
// the {session} path segment.
type Sink func(ctx context.Context, target string, entries []Entry) error

// Handler reads multipart uploads and forwards entry metadata to a Sink.
// File contents are read to measure and sniff them, then discarded.
type Handler struct {
	config Config
	sink   Sink
	logger logging.Logger
}

// NewHandler creates an upload handler. Mount it on a pattern carrying a
// {session} wildcard, e.g. "POST /uploads/{session}".
func NewHandler(config Config, sink Sink, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Handler{config: config, sink: sink, logger: logger}
}

// ServeHTTP handles upload requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	target := r.PathValue("session")
	if target == "" {
		http.Error(w, "Missing upload target", http.StatusBadRequest)
		return
	}

	if h.config.MaxRequestBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxRequestBytes)
	}
	entries, err := h.readEntries(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	if len(entries) == 0 {
		http.Error(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	if err := h.sink(r.Context(), target, entries); err != nil {
		h.logger.Warn("upload rejected", logging.String("target", target), logging.Err(err))
		if errors.Is(err, ErrUnknownTarget) {
			http.Error(w, "Unknown session", http.StatusNotFound)
			return
		}
		http.Error(w, "Upload not accepted", http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug("upload received",
		logging.String("target", target),
		logging.Int("files", len(entries)),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(entries)
}

func (h *Handler) readEntries(r *http.Request) ([]Entry, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		head := make([]byte, 512)
		n, err := io.ReadFull(part, head)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			part.Close()
			return nil, err
		}
		rest, err := io.Copy(io.Discard, part)
		part.Close()
		if err != nil {
			return nil, err
		}

		contentType := part.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			if n > 0 {
				contentType = http.DetectContentType(head[:n])
			}
		}
		entries = append(entries, NewEntry(part.FileName(), int64(n)+rest, contentType))
	}
}
