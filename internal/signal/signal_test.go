// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingualens/lingualens-tui/internal/history"
)

func completeRequest(id string) LoadRequest {
	return LoadRequest{
		SessionID: id,
		Messages:  []history.Message{{ID: "m1", Role: "user", Content: "hello"}},
		SceneID:   "builtin-daily-conversation",
		ModelID:   "gemini-2.5-flash",
	}
}

func TestTakeLoad_EmptyMailbox(t *testing.T) {
	c := NewChannel()
	defer c.Close()

	_, ok := c.TakeLoad()
	assert.False(t, ok)
}

func TestTakeLoad_ConsumesOnce(t *testing.T) {
	c := NewChannel()
	defer c.Close()

	c.RequestLoad(completeRequest("s1"))

	req, ok := c.TakeLoad()
	require.True(t, ok)
	assert.Equal(t, "s1", req.SessionID)

	_, ok = c.TakeLoad()
	assert.False(t, ok, "a consumed request must not fire again")
}

func TestTakeLoad_IncompleteStaysPending(t *testing.T) {
	c := NewChannel()
	defer c.Close()

	// Missing messages: not applicable yet.
	c.RequestLoad(LoadRequest{SessionID: "s1", SceneID: "x", ModelID: "y"})
	_, ok := c.TakeLoad()
	assert.False(t, ok)

	// A complete overwrite makes it consumable.
	c.RequestLoad(completeRequest("s1"))
	_, ok = c.TakeLoad()
	assert.True(t, ok)
}

func TestRequestLoad_LastWriterWins(t *testing.T) {
	c := NewChannel()
	defer c.Close()

	c.RequestLoad(completeRequest("first"))
	c.RequestLoad(completeRequest("second"))

	req, ok := c.TakeLoad()
	require.True(t, ok)
	assert.Equal(t, "second", req.SessionID)

	_, ok = c.TakeLoad()
	assert.False(t, ok, "the overwritten request is gone, not queued")
}

func TestClearPulse_ConsumedOnce(t *testing.T) {
	c := NewChannelWithPulse(time.Hour)
	defer c.Close()

	assert.False(t, c.TakeClear())

	c.RequestClear()
	assert.True(t, c.TakeClear())
	assert.False(t, c.TakeClear(), "pulse is one-shot")
}

func TestClearPulse_AutoResets(t *testing.T) {
	c := NewChannelWithPulse(10 * time.Millisecond)
	defer c.Close()

	c.RequestClear()
	time.Sleep(50 * time.Millisecond)

	assert.False(t, c.TakeClear(), "an unconsumed pulse expires on its own")
}

func TestClearPulse_RapidPressesEachObservable(t *testing.T) {
	c := NewChannelWithPulse(time.Hour)
	defer c.Close()

	c.RequestClear()
	require.True(t, c.TakeClear())

	// A second press after the first was consumed is a fresh edge.
	c.RequestClear()
	assert.True(t, c.TakeClear())
}

func TestUpdates_WakesAndCoalesces(t *testing.T) {
	c := NewChannel()
	defer c.Close()

	c.RequestLoad(completeRequest("s1"))
	c.RequestClear()

	select {
	case <-c.Updates():
	case <-time.After(time.Second):
		t.Fatal("expected a wakeup after posting signals")
	}

	// Both posts coalesced into one wakeup; both signals are drainable.
	_, ok := c.TakeLoad()
	assert.True(t, ok)
	assert.True(t, c.TakeClear())
}

func TestClearLoad_DropsPending(t *testing.T) {
	c := NewChannel()
	defer c.Close()

	c.RequestLoad(completeRequest("s1"))
	c.ClearLoad()

	_, ok := c.TakeLoad()
	assert.False(t, ok)
}
