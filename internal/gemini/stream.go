// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ============================================================================
// STREAMING TYPES
// ============================================================================

// MaxChunkSize caps a single SSE event.
const MaxChunkSize = 64 * 1024

// StreamCallback receives each text delta as it arrives.
type StreamCallback func(delta string)

// StreamError preserves content received before a mid-stream failure, so
// an interrupted generation still yields its partial text.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// ============================================================================
// SSE READER
// ============================================================================

// sseReader parses Server-Sent Events from a response body.
type sseReader struct {
	reader *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReader(r)}
}

// readEvent returns the data of the next event, or io.EOF when the stream
// ends. Non-data fields (event:, id:, retry:, comments) are skipped.
func (s *sseReader) readEvent() ([]byte, error) {
	var dataLines [][]byte
	var size int

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line terminates the event.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			data := bytes.TrimSpace(line[5:])
			size += len(data)
			if size > MaxChunkSize {
				return nil, fmt.Errorf("chunk too large: %d bytes", size)
			}
			dataLines = append(dataLines, data)
		}
	}
}

// ============================================================================
// STREAMING CHAT
// ============================================================================

// ChatStream performs a streaming completion, invoking the callback for
// each text delta. The stream ends at server close or context
// cancellation; a mid-stream failure is returned as a StreamError carrying
// the partial text.
func (c *Client) ChatStream(ctx context.Context, system string, messages []Message, callback StreamCallback) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	return c.stream(ctx, c.model, buildRequest(system, messages), callback)
}

// GeneratePrompt streams a generated scene prompt body built from a scene
// name and description. The output is the prompt text itself, delivered
// incrementally through the callback.
func (c *Client) GeneratePrompt(ctx context.Context, name, description string, callback StreamCallback) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	system := "You write system prompts for a translation assistant. Given a scene name and description, produce the complete prompt body that tailors translations to that scene: tone, register, terminology, formatting. Output only the prompt text, no preamble."
	req := buildRequest(system, []Message{
		NewUserMessage(fmt.Sprintf("Scene name: %s\nScene description: %s", name, description)),
	})
	return c.stream(ctx, c.model, req, callback)
}

func (c *Client) stream(ctx context.Context, model string, reqBody generateRequest, callback StreamCallback) error {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.streamURL(model), bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxChunkSize))
		return decodeError(resp.StatusCode, body)
	}

	return processStream(ctx, resp.Body, callback)
}

// processStream reads SSE events and forwards their text deltas.
func processStream(ctx context.Context, body io.Reader, callback StreamCallback) error {
	reader := newSSEReader(body)
	var accumulated strings.Builder

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, err := reader.readEvent()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return &StreamError{Partial: accumulated.String(), Err: err}
		}

		var chunk generateResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed chunks rather than abort the stream.
			continue
		}

		if delta := chunk.Text(); delta != "" {
			accumulated.WriteString(delta)
			callback(delta)
		}

		if len(chunk.Candidates) > 0 && chunk.Candidates[0].FinishReason != "" {
			return nil
		}
	}
}

// ChatStreamAccumulate streams a completion and returns the full text at
// the end. On a mid-stream failure the partial text is returned alongside
// the error.
func (c *Client) ChatStreamAccumulate(ctx context.Context, system string, messages []Message) (string, error) {
	var accumulated strings.Builder

	err := c.ChatStream(ctx, system, messages, func(delta string) {
		accumulated.WriteString(delta)
	})
	if err != nil {
		var streamErr *StreamError
		if errors.As(err, &streamErr) && streamErr.Partial != "" {
			return streamErr.Partial, err
		}
		return accumulated.String(), err
	}
	return accumulated.String(), nil
}
