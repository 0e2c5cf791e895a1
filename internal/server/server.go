// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the translation backend over local HTTP, mirroring
// the API routes of the web front end: streaming translation and prompt
// generation over SSE, OCR, transcription, and speech synthesis as
// request/response, plus the model catalog.
//
// Failures are returned as JSON {"error": "..."} bodies with a status code
// mapped from the backend's typed errors. Request bodies are size-capped
// and clients are rate limited per remote address.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lingualens/lingualens-tui/internal/config"
	"github.com/lingualens/lingualens-tui/internal/gemini"
	"github.com/lingualens/lingualens-tui/internal/models"
	"github.com/lingualens/lingualens-tui/internal/scene"
)

// ============================================================================
// SIZE LIMITS
// ============================================================================

const (
	// maxTextBody caps JSON bodies for text endpoints.
	maxTextBody = 1 * 1024 * 1024
	// maxMediaBody caps bodies carrying base64 images or audio.
	maxMediaBody = 15 * 1024 * 1024
)

// ============================================================================
// SERVER
// ============================================================================

// Server is the local HTTP proxy.
type Server struct {
	client *gemini.Client
	scenes *scene.Store
	cfg    config.ServerConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a server around a backend client and scene store.
func New(client *gemini.Client, scenes *scene.Store, cfg config.ServerConfig) *Server {
	return &Server{
		client:   client,
		scenes:   scenes,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Handler returns the route table wrapped with logging and rate limiting.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/translate", s.handleTranslate)
	mux.HandleFunc("POST /api/generate-prompt", s.handleGeneratePrompt)
	mux.HandleFunc("POST /api/ocr", s.handleOCR)
	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /api/tts", s.handleTTS)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.logRequests(s.rateLimit(mux))
}

// ListenAndServe runs the proxy until the listener fails.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("server: listening on %s", s.cfg.Addr)
	return srv.ListenAndServe()
}

// ============================================================================
// MIDDLEWARE
// ============================================================================

// logRequests logs method, path, and duration. Bodies and headers are
// never logged.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("server: %s %s (%v)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

// rateLimit enforces a per-client token bucket. A zero configured rate
// disables limiting.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit > 0 && !s.limiterFor(clientKey(r)).Allow() {
			writeJSONError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiterFor(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)
		s.limiters[key] = lim
	}
	return lim
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ============================================================================
// ERROR MAPPING
// ============================================================================

type errorBody struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

// writeBackendError maps a backend error onto an HTTP status.
func writeBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gemini.ErrNotConfigured):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, gemini.ErrAuthFailed):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, gemini.ErrModelNotFound), errors.Is(err, models.ErrUnknownModel):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, gemini.ErrRateLimited):
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeJSONError(w, http.StatusBadGateway, err.Error())
	}
}

// decodeJSON reads a size-capped JSON body.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		}
		return err
	}
	return nil
}

// ============================================================================
// SSE
// ============================================================================

// sseWriter streams text deltas as data: events.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) delta(text string) {
	payload, _ := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	fmt.Fprintf(s.w, "data: %s\n\n", payload)
	s.flusher.Flush()
}

func (s *sseWriter) done() {
	fmt.Fprint(s.w, "data: [DONE]\n\n")
	s.flusher.Flush()
}

// fail reports a mid-stream error as an SSE event; the status line is
// already out, a plain error body is no longer possible.
func (s *sseWriter) fail(err error) {
	payload, _ := json.Marshal(errorBody{Error: err.Error()})
	fmt.Fprintf(s.w, "data: %s\n\n", payload)
	s.flusher.Flush()
}

// ============================================================================
// HANDLERS
// ============================================================================

type translateRequest struct {
	Text     string           `json:"text"`
	Messages []gemini.Message `json:"messages"`
	Scene    string           `json:"scene"`
	Model    string           `json:"model"`
}

// handleTranslate streams a translation. The scene resolves to the system
// prompt; "messages" carries prior turns, "text" the new user input.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeJSON(w, r, maxTextBody, &req); err != nil {
		return
	}
	if req.Text == "" && len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "text or messages required")
		return
	}

	sc, ok := s.scenes.FindByID(req.Scene)
	if !ok {
		sc = s.scenes.Fallback()
	}

	client := s.client
	if req.Model != "" {
		if err := models.Validate(req.Model); err != nil {
			writeBackendError(w, err)
			return
		}
		client = client.WithModel(req.Model)
	}

	msgs := req.Messages
	if req.Text != "" {
		msgs = append(msgs, gemini.NewUserMessage(req.Text))
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	err := client.ChatStream(r.Context(), sc.Prompt, msgs, sse.delta)
	if err != nil && !errors.Is(err, context.Canceled) {
		sse.fail(err)
		return
	}
	sse.done()
}

type generatePromptRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleGeneratePrompt streams a generated scene prompt body.
func (s *Server) handleGeneratePrompt(w http.ResponseWriter, r *http.Request) {
	var req generatePromptRequest
	if err := decodeJSON(w, r, maxTextBody, &req); err != nil {
		return
	}
	if req.Name == "" || req.Description == "" {
		writeJSONError(w, http.StatusBadRequest, "name and description required")
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	err := s.client.GeneratePrompt(r.Context(), req.Name, req.Description, sse.delta)
	if err != nil && !errors.Is(err, context.Canceled) {
		sse.fail(err)
		return
	}
	sse.done()
}

type mediaRequest struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mime_type"`
}

type textResponse struct {
	Text string `json:"text"`
}

// handleOCR extracts text from a base64-encoded image.
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	var req mediaRequest
	if err := decodeJSON(w, r, maxMediaBody, &req); err != nil {
		return
	}
	if len(req.Data) == 0 || req.MIMEType == "" {
		writeJSONError(w, http.StatusBadRequest, "data and mime_type required")
		return
	}
	if !strings.HasPrefix(req.MIMEType, "image/") {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unsupported mime type %q", req.MIMEType))
		return
	}

	text, err := s.client.OCR(r.Context(), req.Data, req.MIMEType)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(textResponse{Text: text})
}

// handleTranscribe converts base64-encoded audio to text.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req mediaRequest
	if err := decodeJSON(w, r, maxMediaBody, &req); err != nil {
		return
	}
	if len(req.Data) == 0 || req.MIMEType == "" {
		writeJSONError(w, http.StatusBadRequest, "data and mime_type required")
		return
	}
	if !strings.HasPrefix(req.MIMEType, "audio/") {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unsupported mime type %q", req.MIMEType))
		return
	}

	text, err := s.client.Transcribe(r.Context(), req.Data, req.MIMEType)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(textResponse{Text: text})
}

type ttsRequest struct {
	Text string `json:"text"`
}

// handleTTS synthesizes speech and returns raw audio bytes.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := decodeJSON(w, r, maxTextBody, &req); err != nil {
		return
	}
	if req.Text == "" {
		writeJSONError(w, http.StatusBadRequest, "text required")
		return
	}

	audio, err := s.client.Synthesize(r.Context(), req.Text)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(audio)
}

// handleModels returns the static model catalog.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Models  []models.Model `json:"models"`
		Default string         `json:"default"`
	}{Models: models.Catalog(), Default: models.DefaultID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
	}{Status: "ok"})
}
