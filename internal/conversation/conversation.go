// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation owns the active conversation: which scene and model
// are selected, the visible message list, the streaming exchange with the
// backend, and persistence of the running session into the history store.
//
// One instance drives one conversation view. State transitions:
//
//	Idle     no session id, no messages; the first send allocates a session
//	Active   session id set; every message change is upserted into history
//	Loading  a load request arrived on the signal channel; adopt and go Active
//	Reset    a clear pulse arrived; drop everything and go Idle
//
// When a load request and a clear pulse are observable in the same pass,
// the load wins and the pulse is consumed without effect.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/lingualens/lingualens-tui/internal/gemini"
	"github.com/lingualens/lingualens-tui/internal/history"
	"github.com/lingualens/lingualens-tui/internal/kvstore"
	"github.com/lingualens/lingualens-tui/internal/models"
	"github.com/lingualens/lingualens-tui/internal/scene"
	"github.com/lingualens/lingualens-tui/internal/signal"
)

// Status is the transport-facing state of the conversation.
type Status int

const (
	// StatusReady means no exchange is in flight.
	StatusReady Status = iota
	// StatusSubmitted means a request was sent and no token has arrived yet.
	StatusSubmitted
	// StatusStreaming means assistant tokens are arriving.
	StatusStreaming
	// StatusError means the last exchange failed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusSubmitted:
		return "submitted"
	case StatusStreaming:
		return "streaming"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrBusy is returned when a send is attempted while one is in flight.
var ErrBusy = errors.New("a request is already in flight")

// stoppedMarker is appended to an assistant message cut short by Stop.
const stoppedMarker = "\n\n[stopped]"

// Transport streams assistant text for a conversation. *gemini.Client
// satisfies it.
type Transport interface {
	ChatStream(ctx context.Context, system string, messages []gemini.Message, callback gemini.StreamCallback) error
}

// Controller is the active conversation. Safe for concurrent use; Send
// blocks for the duration of the stream and is expected to run off the UI
// goroutine.
type Controller struct {
	mu sync.Mutex

	scenes    *scene.Store
	history   *history.Store
	signals   *signal.Channel
	kv        *kvstore.Store
	transport Transport

	sessionID string
	messages  []history.Message
	sceneID   string
	modelID   string
	status    Status
	lastErr   error

	cancel context.CancelFunc

	// onChange, when set, fires after every state mutation. Used by the UI
	// to schedule a redraw; must not call back into the controller.
	onChange func()

	msgSeq int
}

// New creates a controller and restores the last-used scene and model from
// the key-value store. Unknown or absent selections fall back to defaults.
func New(scenes *scene.Store, hist *history.Store, signals *signal.Channel, kv *kvstore.Store, transport Transport) *Controller {
	c := &Controller{
		scenes:    scenes,
		history:   hist,
		signals:   signals,
		kv:        kv,
		transport: transport,
		sceneID:   scene.DefaultSceneID,
		modelID:   models.DefaultID,
	}

	if v, ok, err := kv.Get(kvstore.KeySelectedScene); err == nil && ok {
		if s, found := scenes.FindByID(v); found {
			c.sceneID = s.ID
		}
	}
	if v, ok, err := kv.Get(kvstore.KeySelectedModel); err == nil && ok {
		if models.Validate(v) == nil {
			c.modelID = v
		}
	}
	return c
}

// SetOnChange registers the change notification hook.
func (c *Controller) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

// ============================================================================
// ACCESSORS
// ============================================================================

// Messages returns a copy of the visible message list.
func (c *Controller) Messages() []history.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]history.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// SessionID returns the current session id, empty when idle.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SceneID returns the selected scene id.
func (c *Controller) SceneID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sceneID
}

// ModelID returns the selected model id.
func (c *Controller) ModelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modelID
}

// Status returns the transport-facing state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastError returns the error of the last failed exchange, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Scene returns the full record of the selected scene, falling back to the
// default when the selection no longer exists.
func (c *Controller) Scene() scene.Scene {
	c.mu.Lock()
	id := c.sceneID
	c.mu.Unlock()

	if s, ok := c.scenes.FindByID(id); ok {
		return s
	}
	return c.scenes.Fallback()
}

// ============================================================================
// SELECTION
// ============================================================================

// SelectScene switches the active scene and persists the choice so a
// restart restores it. The write error is surfaced; the in-memory
// selection sticks either way.
func (c *Controller) SelectScene(id string) error {
	s, ok := c.scenes.FindByID(id)
	if !ok {
		return fmt.Errorf("scene %q not found", id)
	}

	c.mu.Lock()
	c.sceneID = s.ID
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}

	return c.kv.Set(kvstore.KeySelectedScene, s.ID)
}

// SelectModel switches the active model and persists the choice.
func (c *Controller) SelectModel(id string) error {
	if err := models.Validate(id); err != nil {
		return err
	}

	c.mu.Lock()
	c.modelID = id
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}

	return c.kv.Set(kvstore.KeySelectedModel, id)
}

// RefreshScenes re-reads the scene list from storage. Called when the
// store directory changes underneath us or the terminal regains focus. If
// the selected scene disappeared, selection falls back to the default.
func (c *Controller) RefreshScenes() {
	c.scenes.Load()

	c.mu.Lock()
	id := c.sceneID
	c.mu.Unlock()

	if _, ok := c.scenes.FindByID(id); !ok {
		fb := c.scenes.Fallback()
		c.mu.Lock()
		c.sceneID = fb.ID
		fn := c.onChange
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}

// ============================================================================
// SEND / STOP
// ============================================================================

// Send appends a user message and streams the assistant reply, persisting
// the session after every change including streaming partials. It blocks
// until the stream completes, fails, or is stopped. On the first message
// of a fresh conversation a session id is allocated.
func (c *Controller) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.status == StatusSubmitted || c.status == StatusStreaming {
		c.mu.Unlock()
		return ErrBusy
	}

	if c.sessionID == "" {
		c.sessionID = c.history.CreateSession(c.sceneID, c.modelID)
	}

	c.messages = append(c.messages, history.Message{
		ID:        c.nextMessageIDLocked(),
		Role:      "user",
		Content:   text,
		CreatedAt: time.Now().UnixMilli(),
	})

	// Pre-allocate the assistant message so the UI shows the turn while
	// tokens stream into it.
	assistantIdx := len(c.messages)
	assistantID := c.nextMessageIDLocked()
	c.messages = append(c.messages, history.Message{
		ID:        assistantID,
		Role:      "assistant",
		CreatedAt: time.Now().UnixMilli(),
	})

	c.status = StatusSubmitted
	c.lastErr = nil

	ctx, c.cancel = context.WithCancel(ctx)
	sessionID := c.sessionID
	sceneID := c.sceneID
	modelID := c.modelID
	system := c.systemPromptLocked()
	wire := c.wireMessagesLocked(assistantIdx)
	c.persistLocked(sessionID, sceneID, modelID)
	c.notify()
	c.mu.Unlock()

	err := c.transport.ChatStream(ctx, system, wire, func(delta string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		// A reset or session load may have replaced the transcript while
		// this stream was in flight. Drop deltas that no longer have a home.
		if assistantIdx >= len(c.messages) || c.messages[assistantIdx].ID != assistantID {
			return
		}
		c.status = StatusStreaming
		c.messages[assistantIdx].Content += delta
		c.persistLocked(sessionID, sceneID, modelID)
		c.notify()
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if assistantIdx >= len(c.messages) || c.messages[assistantIdx].ID != assistantID {
		// The turn was replaced mid-stream; whoever replaced it canceled
		// the stream and settled the state already.
		return nil
	}
	c.cancel = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// User stop: keep the partial, mark the cut.
			if c.messages[assistantIdx].Content != "" {
				c.messages[assistantIdx].Content += stoppedMarker
			} else {
				c.messages[assistantIdx].Content = "[stopped]"
			}
			c.status = StatusReady
		} else {
			c.status = StatusError
			c.lastErr = err
		}
		c.persistLocked(sessionID, sceneID, modelID)
		c.notify()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	c.status = StatusReady
	c.persistLocked(sessionID, sceneID, modelID)
	c.notify()
	return nil
}

// cancelLocked aborts the in-flight stream, if any. Callers hold c.mu.
func (c *Controller) cancelLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Stop cancels the in-flight stream. The partial assistant message stays
// in the conversation and in history. No-op when nothing is streaming.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// systemPromptLocked resolves the selected scene's prompt body.
func (c *Controller) systemPromptLocked() string {
	if s, ok := c.scenes.FindByID(c.sceneID); ok {
		return s.Prompt
	}
	return c.scenes.Fallback().Prompt
}

// wireMessagesLocked converts the visible list up to (not including) the
// pending assistant slot into transport shape.
func (c *Controller) wireMessagesLocked(limit int) []gemini.Message {
	out := make([]gemini.Message, 0, limit)
	for _, m := range c.messages[:limit] {
		out = append(out, gemini.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// persistLocked upserts the current message list into history. Persistence
// is best effort here; a failing write must not take down the exchange.
func (c *Controller) persistLocked(sessionID, sceneID, modelID string) {
	if sessionID == "" {
		return
	}
	msgs := make([]history.Message, len(c.messages))
	copy(msgs, c.messages)
	if err := c.history.Upsert(sessionID, msgs, sceneID, modelID); err != nil {
		log.Printf("conversation: failed to persist session %s: %v", sessionID, err)
	}
}

func (c *Controller) nextMessageIDLocked() string {
	c.msgSeq++
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strconv.Itoa(c.msgSeq)
}

// ============================================================================
// SIGNALS
// ============================================================================

// ApplySignals drains the signal channel: a pending load request replaces
// the conversation with a stored session; a clear pulse resets to a fresh
// one. Load takes precedence; a pulse raised alongside a load is consumed
// without effect. Returns true when state changed.
func (c *Controller) ApplySignals() bool {
	if req, ok := c.signals.TakeLoad(); ok {
		c.signals.TakeClear()
		c.applyLoad(req)
		return true
	}
	if c.signals.TakeClear() {
		c.Reset()
		return true
	}
	return false
}

// applyLoad adopts a stored session: id, messages, scene, and model. Any
// in-flight stream is canceled first so it cannot write into the adopted
// transcript.
func (c *Controller) applyLoad(req signal.LoadRequest) {
	c.mu.Lock()
	c.cancelLocked()
	c.sessionID = req.SessionID
	c.messages = make([]history.Message, len(req.Messages))
	copy(c.messages, req.Messages)

	if s, ok := c.scenes.FindByID(req.SceneID); ok {
		c.sceneID = s.ID
	}
	if models.Validate(req.ModelID) == nil {
		c.modelID = req.ModelID
	}
	sceneID := c.sceneID
	modelID := c.modelID
	c.status = StatusReady
	c.lastErr = nil
	fn := c.onChange
	c.mu.Unlock()

	c.history.MarkCurrent(req.SessionID)
	if err := c.kv.Set(kvstore.KeySelectedScene, sceneID); err != nil {
		log.Printf("conversation: failed to persist scene selection: %v", err)
	}
	if err := c.kv.Set(kvstore.KeySelectedModel, modelID); err != nil {
		log.Printf("conversation: failed to persist model selection: %v", err)
	}
	if fn != nil {
		fn()
	}
}

// Reset drops the current session and returns to the idle state. The
// stored session, if any, is untouched.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.cancelLocked()
	c.sessionID = ""
	c.messages = nil
	c.status = StatusReady
	c.lastErr = nil
	fn := c.onChange
	c.mu.Unlock()

	c.history.ClearCurrent()
	if fn != nil {
		fn()
	}
}
