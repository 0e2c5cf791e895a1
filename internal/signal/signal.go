// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package signal carries requests between the history UI and the active
// conversation without a direct reference between them. It exposes exactly
// two primitives: a single-slot mailbox holding a "load this session"
// request, and an edge-triggered "start a new conversation" pulse.
//
// The mailbox is last-writer-wins: posting a second load request before the
// first is consumed replaces it. The pulse auto-resets after a short delay
// so an unconsumed press cannot linger and fire on a later, unrelated
// update; each press is a distinct rising edge.
package signal

import (
	"sync"
	"time"

	"github.com/lingualens/lingualens-tui/internal/history"
)

// DefaultPulse is how long a clear pulse stays observable before it
// auto-resets.
const DefaultPulse = 100 * time.Millisecond

// ============================================================================
// LOAD REQUEST
// ============================================================================

// LoadRequest asks the active conversation to replace its state with a
// stored session. It is applied only when complete; a partially filled
// request sits in the mailbox until the remaining fields arrive or it is
// overwritten.
type LoadRequest struct {
	SessionID string
	Messages  []history.Message
	SceneID   string
	ModelID   string
}

// Complete reports whether all four fields are populated.
func (r LoadRequest) Complete() bool {
	return r.SessionID != "" && len(r.Messages) > 0 && r.SceneID != "" && r.ModelID != ""
}

// ============================================================================
// CHANNEL
// ============================================================================

// Channel is the shared signal state. Safe for concurrent use.
type Channel struct {
	mu    sync.Mutex
	load  LoadRequest
	armed bool

	clear      bool
	clearTimer *time.Timer
	pulse      time.Duration

	notify chan struct{}
}

// NewChannel returns a channel whose clear pulse resets after DefaultPulse.
func NewChannel() *Channel {
	return NewChannelWithPulse(DefaultPulse)
}

// NewChannelWithPulse returns a channel with an explicit pulse duration.
func NewChannelWithPulse(pulse time.Duration) *Channel {
	return &Channel{
		pulse:  pulse,
		notify: make(chan struct{}, 1),
	}
}

// Updates delivers a wakeup whenever a signal is posted. The channel has
// capacity one and posts coalesce, so a receiver must drain both signal
// kinds after each wakeup.
func (c *Channel) Updates() <-chan struct{} {
	return c.notify
}

func (c *Channel) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// ============================================================================
// LOAD MAILBOX
// ============================================================================

// RequestLoad posts a load request, replacing any pending one.
func (c *Channel) RequestLoad(req LoadRequest) {
	c.mu.Lock()
	c.load = req
	c.armed = true
	c.mu.Unlock()
	c.wake()
}

// TakeLoad consumes the pending load request. It returns false when no
// request is pending or the pending request is incomplete; an incomplete
// request stays in the mailbox.
func (c *Channel) TakeLoad() (LoadRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed || !c.load.Complete() {
		return LoadRequest{}, false
	}
	req := c.load
	c.load = LoadRequest{}
	c.armed = false
	return req, true
}

// ClearLoad drops any pending load request without consuming it.
func (c *Channel) ClearLoad() {
	c.mu.Lock()
	c.load = LoadRequest{}
	c.armed = false
	c.mu.Unlock()
}

// ============================================================================
// CLEAR PULSE
// ============================================================================

// RequestClear raises the new-conversation pulse. A second call before the
// pulse resets restarts the timer, so rapid presses each produce an
// observable edge for a consumer polling between them.
func (c *Channel) RequestClear() {
	c.mu.Lock()
	c.clear = true
	if c.clearTimer != nil {
		c.clearTimer.Stop()
	}
	c.clearTimer = time.AfterFunc(c.pulse, c.expireClear)
	c.mu.Unlock()
	c.wake()
}

// TakeClear consumes the pulse if it is raised.
func (c *Channel) TakeClear() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.clear {
		return false
	}
	c.clear = false
	if c.clearTimer != nil {
		c.clearTimer.Stop()
		c.clearTimer = nil
	}
	return true
}

func (c *Channel) expireClear() {
	c.mu.Lock()
	c.clear = false
	c.clearTimer = nil
	c.mu.Unlock()
}

// Close stops the pulse timer. The channel must not be used afterwards.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.clearTimer != nil {
		c.clearTimer.Stop()
		c.clearTimer = nil
	}
	c.mu.Unlock()
}
