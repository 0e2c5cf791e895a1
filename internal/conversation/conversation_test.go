// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingualens/lingualens-tui/internal/gemini"
	"github.com/lingualens/lingualens-tui/internal/history"
	"github.com/lingualens/lingualens-tui/internal/kvstore"
	"github.com/lingualens/lingualens-tui/internal/scene"
	"github.com/lingualens/lingualens-tui/internal/signal"
)

// fakeTransport streams a scripted reply, one delta per element.
type fakeTransport struct {
	deltas []string
	err    error

	gotSystem   string
	gotMessages []gemini.Message

	// blockUntilCancel makes the stream hang after its deltas until the
	// context is cancelled.
	blockUntilCancel bool
}

func (f *fakeTransport) ChatStream(ctx context.Context, system string, messages []gemini.Message, callback gemini.StreamCallback) error {
	f.gotSystem = system
	f.gotMessages = messages
	for _, d := range f.deltas {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		callback(d)
	}
	if f.blockUntilCancel {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

type fixture struct {
	ctrl    *Controller
	scenes  *scene.Store
	hist    *history.Store
	signals *signal.Channel
	kv      *kvstore.Store
	tr      *fakeTransport
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		scenes:  scene.NewStore(kv),
		hist:    history.NewStore(kv),
		signals: signal.NewChannelWithPulse(time.Hour),
		kv:      kv,
		tr:      &fakeTransport{deltas: []string{"Hel", "lo"}},
	}
	t.Cleanup(f.signals.Close)
	f.ctrl = New(f.scenes, f.hist, f.signals, kv, f.tr)
	return f
}

func TestNew_DefaultsWhenUnset(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, scene.DefaultSceneID, f.ctrl.SceneID())
	assert.Equal(t, "gemini-2.5-flash", f.ctrl.ModelID())
	assert.Empty(t, f.ctrl.SessionID())
	assert.Equal(t, StatusReady, f.ctrl.Status())
}

func TestNew_RestoresPersistedSelection(t *testing.T) {
	kv, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Set(kvstore.KeySelectedScene, scene.IDBusinessEmail))
	require.NoError(t, kv.Set(kvstore.KeySelectedModel, "gemini-2.5-pro"))

	sig := signal.NewChannelWithPulse(time.Hour)
	defer sig.Close()
	c := New(scene.NewStore(kv), history.NewStore(kv), sig, kv, &fakeTransport{})
	assert.Equal(t, scene.IDBusinessEmail, c.SceneID())
	assert.Equal(t, "gemini-2.5-pro", c.ModelID())
}

func TestNew_IgnoresUnknownPersistedSelection(t *testing.T) {
	kv, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Set(kvstore.KeySelectedScene, "no-such-scene"))
	require.NoError(t, kv.Set(kvstore.KeySelectedModel, "no-such-model"))

	sig := signal.NewChannelWithPulse(time.Hour)
	defer sig.Close()
	c := New(scene.NewStore(kv), history.NewStore(kv), sig, kv, &fakeTransport{})
	assert.Equal(t, scene.DefaultSceneID, c.SceneID())
	assert.Equal(t, "gemini-2.5-flash", c.ModelID())
}

func TestSend_FirstMessageAllocatesSession(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.Send(context.Background(), "hello"))

	id := f.ctrl.SessionID()
	require.NotEmpty(t, id)

	s, ok := f.hist.Load(id)
	require.True(t, ok, "session is persisted in history")
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "user", s.Messages[0].Role)
	assert.Equal(t, "hello", s.Messages[0].Content)
	assert.Equal(t, "assistant", s.Messages[1].Role)
	assert.Equal(t, "Hello", s.Messages[1].Content)
}

func TestSend_SecondMessageKeepsSession(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.Send(context.Background(), "one"))
	first := f.ctrl.SessionID()
	require.NoError(t, f.ctrl.Send(context.Background(), "two"))

	assert.Equal(t, first, f.ctrl.SessionID())
	assert.Len(t, f.ctrl.Messages(), 4)
}

func TestSend_UsesScenePromptAsSystem(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.Send(context.Background(), "hi"))

	want, ok := f.scenes.FindByID(scene.DefaultSceneID)
	require.True(t, ok)
	assert.Equal(t, want.Prompt, f.tr.gotSystem)
	// The pending assistant slot is not sent to the transport.
	require.Len(t, f.tr.gotMessages, 1)
	assert.Equal(t, "user", f.tr.gotMessages[0].Role)
}

func TestSend_PersistsStreamingPartials(t *testing.T) {
	f := newFixture(t)

	var partials []string
	f.tr.deltas = nil
	f.tr.blockUntilCancel = false
	f.tr.err = nil

	// Snapshot what history holds after each delta.
	scripted := []string{"par", "tial"}
	f.ctrl.transport = transportFunc(func(ctx context.Context, system string, messages []gemini.Message, cb gemini.StreamCallback) error {
		for _, d := range scripted {
			cb(d)
			if s, ok := f.hist.Load(f.ctrl.SessionID()); ok {
				partials = append(partials, s.Messages[len(s.Messages)-1].Content)
			}
		}
		return nil
	})

	require.NoError(t, f.ctrl.Send(context.Background(), "hi"))
	assert.Equal(t, []string{"par", "partial"}, partials, "each delta lands in history immediately")
}

type transportFunc func(ctx context.Context, system string, messages []gemini.Message, callback gemini.StreamCallback) error

func (f transportFunc) ChatStream(ctx context.Context, system string, messages []gemini.Message, callback gemini.StreamCallback) error {
	return f(ctx, system, messages, callback)
}

func TestSend_TransportErrorKeepsMessages(t *testing.T) {
	f := newFixture(t)
	f.tr.deltas = []string{"part"}
	f.tr.err = errors.New("backend down")

	err := f.ctrl.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, StatusError, f.ctrl.Status())
	assert.Error(t, f.ctrl.LastError())

	msgs := f.ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "part", msgs[1].Content, "partial reply survives the failure")
}

func TestStop_KeepsPartialMarksStopped(t *testing.T) {
	f := newFixture(t)
	f.tr.deltas = []string{"partial "}
	f.tr.blockUntilCancel = true

	done := make(chan error, 1)
	go func() {
		done <- f.ctrl.Send(context.Background(), "hi")
	}()

	// Wait for the delta to land, then stop.
	require.Eventually(t, func() bool {
		return f.ctrl.Status() == StatusStreaming
	}, 2*time.Second, 5*time.Millisecond)
	f.ctrl.Stop()

	require.NoError(t, <-done, "a user stop is not an error")
	assert.Equal(t, StatusReady, f.ctrl.Status())

	msgs := f.ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "partial")
	assert.Contains(t, msgs[1].Content, "[stopped]")

	// The marked partial is persisted too.
	s, ok := f.hist.Load(f.ctrl.SessionID())
	require.True(t, ok)
	assert.Contains(t, s.Messages[1].Content, "[stopped]")
}

func TestSend_BusyWhileStreaming(t *testing.T) {
	f := newFixture(t)
	f.tr.blockUntilCancel = true

	done := make(chan error, 1)
	go func() {
		done <- f.ctrl.Send(context.Background(), "first")
	}()

	require.Eventually(t, func() bool {
		return f.ctrl.Status() != StatusReady
	}, 2*time.Second, 5*time.Millisecond)

	err := f.ctrl.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	f.ctrl.Stop()

	// Join the first Send so it is done writing before TempDir cleanup.
	<-done
}

func TestSelectScene_PersistsAndValidates(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.SelectScene(scene.IDBusinessEmail))
	assert.Equal(t, scene.IDBusinessEmail, f.ctrl.SceneID())

	v, ok, err := f.kv.Get(kvstore.KeySelectedScene)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, scene.IDBusinessEmail, v)

	assert.Error(t, f.ctrl.SelectScene("no-such-scene"))
	assert.Equal(t, scene.IDBusinessEmail, f.ctrl.SceneID(), "failed select leaves selection alone")
}

func TestSelectModel_PersistsAndValidates(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.SelectModel("gemini-2.5-pro"))
	v, ok, err := f.kv.Get(kvstore.KeySelectedModel)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gemini-2.5-pro", v)

	assert.Error(t, f.ctrl.SelectModel("bogus"))
	assert.Equal(t, "gemini-2.5-pro", f.ctrl.ModelID())
}

func TestApplySignals_Load(t *testing.T) {
	f := newFixture(t)

	// A stored session the history UI would pick.
	msgs := []history.Message{
		{ID: "m1", Role: "user", Content: "stored question"},
		{ID: "m2", Role: "assistant", Content: "stored answer"},
	}
	require.NoError(t, f.hist.Upsert("stored-1", msgs, scene.IDBusinessEmail, "gemini-2.5-pro"))
	f.hist.ClearCurrent()

	f.signals.RequestLoad(signal.LoadRequest{
		SessionID: "stored-1",
		Messages:  msgs,
		SceneID:   scene.IDBusinessEmail,
		ModelID:   "gemini-2.5-pro",
	})

	require.True(t, f.ctrl.ApplySignals())
	assert.Equal(t, "stored-1", f.ctrl.SessionID())
	assert.Equal(t, scene.IDBusinessEmail, f.ctrl.SceneID())
	assert.Equal(t, "gemini-2.5-pro", f.ctrl.ModelID())
	assert.Len(t, f.ctrl.Messages(), 2)
	assert.Equal(t, "stored-1", f.hist.Current(), "loaded session becomes the upsert target")

	// Consumed: a second pass is a no-op.
	assert.False(t, f.ctrl.ApplySignals())
}

func TestApplySignals_Clear(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.Send(context.Background(), "hello"))
	stored := f.ctrl.SessionID()

	f.signals.RequestClear()
	require.True(t, f.ctrl.ApplySignals())

	assert.Empty(t, f.ctrl.SessionID())
	assert.Empty(t, f.ctrl.Messages())
	assert.Empty(t, f.hist.Current())

	// The stored session itself is untouched.
	_, ok := f.hist.Load(stored)
	assert.True(t, ok)
}

func TestApplySignals_LoadWinsOverClear(t *testing.T) {
	f := newFixture(t)

	msgs := []history.Message{{ID: "m1", Role: "user", Content: "q"}}
	require.NoError(t, f.hist.Upsert("stored-1", msgs, scene.IDDailyConversation, "gemini-2.5-flash"))

	f.signals.RequestClear()
	f.signals.RequestLoad(signal.LoadRequest{
		SessionID: "stored-1",
		Messages:  msgs,
		SceneID:   scene.IDDailyConversation,
		ModelID:   "gemini-2.5-flash",
	})

	require.True(t, f.ctrl.ApplySignals())
	assert.Equal(t, "stored-1", f.ctrl.SessionID(), "load applies")

	// The pulse was swallowed, it must not reset the loaded session later.
	assert.False(t, f.ctrl.ApplySignals())
	assert.Equal(t, "stored-1", f.ctrl.SessionID())
}

func TestApplySignals_ClearMidStreamDropsLateDeltas(t *testing.T) {
	f := newFixture(t)

	// The clear arrives between two deltas, the way the UI delivers it
	// when Ctrl+N is pressed during a stream.
	f.ctrl.transport = transportFunc(func(ctx context.Context, system string, messages []gemini.Message, cb gemini.StreamCallback) error {
		cb("first")
		f.signals.RequestClear()
		require.True(t, f.ctrl.ApplySignals())
		cb("late")
		return ctx.Err()
	})

	require.NoError(t, f.ctrl.Send(context.Background(), "hi"))
	assert.Empty(t, f.ctrl.Messages())
	assert.Empty(t, f.ctrl.SessionID())
	assert.Equal(t, StatusReady, f.ctrl.Status())
}

func TestApplySignals_LoadMidStreamAbortsStream(t *testing.T) {
	f := newFixture(t)

	stored := []history.Message{
		{ID: "m1", Role: "user", Content: "stored question"},
		{ID: "m2", Role: "assistant", Content: "stored answer"},
	}
	require.NoError(t, f.hist.Upsert("stored-1", stored, scene.IDBusinessEmail, "gemini-2.5-pro"))
	f.hist.ClearCurrent()

	f.ctrl.transport = transportFunc(func(ctx context.Context, system string, messages []gemini.Message, cb gemini.StreamCallback) error {
		cb("par")
		f.signals.RequestLoad(signal.LoadRequest{
			SessionID: "stored-1",
			Messages:  stored,
			SceneID:   scene.IDBusinessEmail,
			ModelID:   "gemini-2.5-pro",
		})
		require.True(t, f.ctrl.ApplySignals())
		cb("late")
		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
			t.Error("load did not cancel the in-flight stream")
		}
		return ctx.Err()
	})

	require.NoError(t, f.ctrl.Send(context.Background(), "hi"))
	assert.Equal(t, "stored-1", f.ctrl.SessionID())

	msgs := f.ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "stored answer", msgs[1].Content, "late delta never lands in the loaded transcript")
}

func TestRefreshScenes_FallsBackWhenSelectionVanishes(t *testing.T) {
	f := newFixture(t)

	added, err := f.scenes.Add(scene.Scene{Name: "测试", NameEN: "Test", Description: "d", Prompt: "p"})
	require.NoError(t, err)
	require.NoError(t, f.ctrl.SelectScene(added.ID))

	// Another process resets the list to defaults.
	other, err := kvstore.Open(f.kv.Dir())
	require.NoError(t, err)
	require.NoError(t, scene.NewStore(other).ResetToDefaults())

	f.ctrl.RefreshScenes()
	assert.Equal(t, scene.DefaultSceneID, f.ctrl.SceneID())
}
