// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini implements the client for the Gemini generative language
// API: chat completion (blocking and streaming), scene prompt generation,
// OCR, audio transcription, and speech synthesis.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lingualens/lingualens-tui/internal/models"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultBaseURL is the base URL for the Gemini API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the number of attempts for transient errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay caps the exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize caps response bodies. Synthesized audio is the
	// largest payload this client receives.
	MaxResponseSize = 20 * 1024 * 1024
)

// ============================================================================
// ERRORS
// ============================================================================

var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("Gemini API key not configured")

	// ErrAuthFailed indicates an invalid or expired API key.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the request quota is exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrEmptyResponse indicates the API returned no candidates.
	ErrEmptyResponse = errors.New("empty response")
)

// APIError is a structured error decoded from a non-2xx response body.
type APIError struct {
	Code    int
	Status  string
	Message string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("Gemini error [%s] (HTTP %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("Gemini error (HTTP %d): %s", e.Code, e.Message)
}

// apiErrorResponse is the JSON error envelope the API wraps failures in.
type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ============================================================================
// WIRE TYPES
// ============================================================================

// Message is a single conversation turn as the caller sees it. Role is
// "user", "assistant", or "system"; the wire mapping to the API's
// user/model vocabulary happens inside the client.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user turn.
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// NewAssistantMessage creates an assistant turn.
func NewAssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// inlineData carries binary payloads (images, audio) in a request part.
type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// part is one piece of request or response content.
type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

// content is an ordered list of parts attributed to a role.
type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

// generationConfig tunes a generation request.
type generationConfig struct {
	Temperature        float64  `json:"temperature,omitempty"`
	MaxOutputTokens    int      `json:"maxOutputTokens,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// generateRequest is the body for generateContent and streamGenerateContent.
type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

// generateResponse is the body of a successful generateContent call and of
// each streaming chunk.
type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	ModelVersion string `json:"modelVersion"`
}

// Text returns the concatenated text parts of the first candidate.
func (r *generateResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// audioData returns the first inline payload of the first candidate.
func (r *generateResponse) audioData() []byte {
	if len(r.Candidates) == 0 {
		return nil
	}
	for _, p := range r.Candidates[0].Content.Parts {
		if p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData.Data
		}
	}
	return nil
}

// ============================================================================
// CLIENT
// ============================================================================

// Client talks to the Gemini API. The zero value is not usable; construct
// with NewClient.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int

	httpClient *http.Client
	// streamClient has no timeout; streaming lifetime is context-controlled.
	streamClient *http.Client
}

// NewClient creates a client with the given API key. An empty key still
// yields a usable value whose requests fail with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		model:      models.DefaultID,
		maxRetries: DefaultMaxRetries,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		streamClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// WithBaseURL overrides the API base URL.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithTimeout overrides the non-streaming request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithMaxRetries overrides how many times a failed request is retried.
func (c *Client) WithMaxRetries(n int) *Client {
	c.maxRetries = n
	return c
}

// SetModel selects the model used for subsequent requests.
func (c *Client) SetModel(model string) {
	c.model = model
}

// Model returns the currently selected model.
func (c *Client) Model() string {
	return c.model
}

// WithModel returns a copy of the client bound to the given model. The
// copy shares the underlying HTTP transports; use it for per-request
// model overrides without mutating the original.
func (c *Client) WithModel(model string) *Client {
	clone := *c
	clone.model = model
	return &clone
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("User-Agent", "lingualens/0.1.0")
}

func (c *Client) generateURL(model string) string {
	return c.baseURL + "/models/" + model + ":generateContent"
}

func (c *Client) streamURL(model string) string {
	return c.baseURL + "/models/" + model + ":streamGenerateContent?alt=sse"
}

// buildRequest maps caller-side messages onto the wire request. System
// turns fold into the system instruction; assistant turns become "model".
func buildRequest(system string, messages []Message) generateRequest {
	var req generateRequest
	var sys strings.Builder
	if system != "" {
		sys.WriteString(system)
	}

	for _, m := range messages {
		switch m.Role {
		case "system":
			if sys.Len() > 0 {
				sys.WriteString("\n\n")
			}
			sys.WriteString(m.Content)
		case "assistant", "model":
			req.Contents = append(req.Contents, content{
				Role:  "model",
				Parts: []part{{Text: m.Content}},
			})
		default:
			req.Contents = append(req.Contents, content{
				Role:  "user",
				Parts: []part{{Text: m.Content}},
			})
		}
	}

	if sys.Len() > 0 {
		req.SystemInstruction = &content{Parts: []part{{Text: sys.String()}}}
	}
	return req
}

// ============================================================================
// CHAT
// ============================================================================

// Chat performs a blocking completion. The system instruction may be empty.
// Transient failures (rate limiting, 5xx) are retried with exponential
// backoff; context cancellation is returned immediately.
func (c *Client) Chat(ctx context.Context, system string, messages []Message) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	resp, err := c.generate(ctx, c.model, buildRequest(system, messages))
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// generate posts a generateRequest with retries and decodes the response.
func (c *Client) generate(ctx context.Context, model string, reqBody generateRequest) (*generateResponse, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		resp, err := c.doGenerate(ctx, model, reqBody)
		if err != nil {
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return resp, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doGenerate(ctx context.Context, model string, reqBody generateRequest) (*generateResponse, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL(model), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	log.Printf("gemini: POST %s -> %d (%v)", req.URL.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, body)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}

// readBody reads a response body under the size cap.
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", int64(MaxResponseSize))
	}
	return body, nil
}

// decodeError maps a non-2xx response onto the typed error set. The API
// wraps failures in an {"error": {...}} envelope; an unparseable body
// falls back to the status code alone.
func decodeError(statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		ge := &APIError{
			Code:    statusCode,
			Status:  apiErr.Error.Status,
			Message: apiErr.Error.Message,
		}
		switch statusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuthFailed, ge.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrModelNotFound, ge.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, ge.Message)
		default:
			return ge
		}
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &APIError{Code: statusCode, Message: strings.TrimSpace(string(body))}
	}
}

// isRetryable reports whether an error warrants another attempt.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	return false
}

// backoff returns the delay before retry attempt n.
func backoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// ============================================================================
// OCR / TRANSCRIPTION / SYNTHESIS
// ============================================================================

const (
	ocrInstruction        = "Extract all text from this image. Return only the extracted text, preserving the original layout as line breaks. Do not add commentary."
	transcribeInstruction = "Transcribe this audio exactly. Return only the transcript text without commentary."

	// TTSModel is the speech-capable model used by Synthesize.
	TTSModel = "gemini-2.5-flash-preview-tts"
)

// OCR extracts text from an image.
func (c *Client) OCR(ctx context.Context, image []byte, mimeType string) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	req := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: ocrInstruction},
				{InlineData: &inlineData{MIMEType: mimeType, Data: image}},
			},
		}},
	}

	resp, err := c.generate(ctx, c.model, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Transcribe converts speech audio to text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	req := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: transcribeInstruction},
				{InlineData: &inlineData{MIMEType: mimeType, Data: audio}},
			},
		}},
	}

	resp, err := c.generate(ctx, c.model, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Synthesize renders text as speech audio (PCM bytes as returned by the
// API). It always uses the dedicated speech model, not the chat model.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	req := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: text}},
		}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}

	resp, err := c.generate(ctx, TTSModel, req)
	if err != nil {
		return nil, err
	}
	audio := resp.audioData()
	if len(audio) == 0 {
		return nil, ErrEmptyResponse
	}
	return audio, nil
}
